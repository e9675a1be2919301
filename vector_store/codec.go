package vector_store

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/serisow/coalmind/pipeline_type"
)

const (
	vectorFileName = "index.vec"
	chunksFileName = "chunks.json"
	codecVersion   = 1
)

var vectorMagic = [4]byte{'C', 'M', 'V', 'I'}

const vectorHeaderSize = 16

type vectorHeader struct {
	Magic   [4]byte
	Version uint32
	Count   uint32
	Dim     uint32
}

type chunkSidecar struct {
	Version int                           `json:"version"`
	Dim     int                           `json:"dim"`
	Chunks  []pipeline_type.DocumentChunk `json:"chunks"`
}

func writeVectors(w io.Writer, vectors [][]float32, dim int) error {
	bw := bufio.NewWriter(w)
	header := vectorHeader{
		Magic:   vectorMagic,
		Version: codecVersion,
		Count:   uint32(len(vectors)),
		Dim:     uint32(dim),
	}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("writing vector header: %w", err)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("writing vector %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// readVectors decodes an index.vec of size bytes. The header is checked
// against size before anything is allocated.
func readVectors(r io.Reader, size int64) ([][]float32, int, error) {
	br := bufio.NewReader(r)
	var header vectorHeader
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("reading vector header: %w", err)
	}
	if header.Magic != vectorMagic {
		return nil, 0, fmt.Errorf("bad magic %q", header.Magic[:])
	}
	if header.Version != codecVersion {
		return nil, 0, fmt.Errorf("unsupported index version %d", header.Version)
	}

	if header.Dim == 0 && header.Count > 0 {
		return nil, 0, fmt.Errorf("%d vectors of dimension 0", header.Count)
	}
	// Count and Dim are uint32, so the product fits in uint64 and the
	// byte length only overflows when multiplied by 4.
	floats := uint64(header.Count) * uint64(header.Dim)
	if floats > (math.MaxUint64-vectorHeaderSize)/4 {
		return nil, 0, fmt.Errorf("header declares %d x %d vectors", header.Count, header.Dim)
	}
	if want := vectorHeaderSize + floats*4; size < 0 || want != uint64(size) {
		return nil, 0, fmt.Errorf("header declares %d x %d vectors (%d bytes), file has %d bytes", header.Count, header.Dim, want, size)
	}

	dim := int(header.Dim)
	vectors := make([][]float32, header.Count)
	for i := range vectors {
		v := make([]float32, dim)
		if err := binary.Read(br, binary.LittleEndian, v); err != nil {
			return nil, 0, fmt.Errorf("reading vector %d: %w", i, err)
		}
		vectors[i] = v
	}
	return vectors, dim, nil
}

func writeChunks(w io.Writer, chunks []pipeline_type.DocumentChunk, dim int) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(chunkSidecar{Version: codecVersion, Dim: dim, Chunks: chunks})
}

func readChunks(r io.Reader) (chunkSidecar, error) {
	var sidecar chunkSidecar
	if err := json.NewDecoder(r).Decode(&sidecar); err != nil {
		return sidecar, fmt.Errorf("decoding chunk metadata: %w", err)
	}
	return sidecar, nil
}
