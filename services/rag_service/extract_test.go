package rag_service

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/serisow/coalmind/pipeline_type"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtract(t *testing.T) {
	e := NewDocumentExtractor(discardLogger())

	tests := []struct {
		name     string
		filename string
		data     string
		wantType pipeline_type.DocType
		want     []string
		notWant  []string
	}{
		{
			name:     "plain text",
			filename: "notes.TXT",
			data:     "Roof bolts must be installed within 1m of the face.",
			wantType: pipeline_type.DocTypeText,
			want:     []string{"Roof bolts"},
		},
		{
			name:     "markdown",
			filename: "guide.md",
			data:     "# Ventilation\nCheck methane every shift.",
			wantType: pipeline_type.DocTypeText,
			want:     []string{"Check methane"},
		},
		{
			name:     "html strips scripts",
			filename: "page.html",
			data:     `<html><head><style>p{color:red}</style></head><body><nav>Home</nav><h1>Blasting</h1><script>alert(1)</script><p>Clear   the area.</p></body></html>`,
			wantType: pipeline_type.DocTypeText,
			want:     []string{"Blasting", "Clear the area."},
			notWant:  []string{"alert", "color", "Home"},
		},
		{
			name:     "csv table",
			filename: "readings.csv",
			data:     "sensor,value\nCH4,0.8\nCO,12\n",
			wantType: pipeline_type.DocTypeTable,
			want:     []string{"sensor: CH4, value: 0.8", "sensor: CO, value: 12"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, docType, err := e.Extract(tt.filename, []byte(tt.data))
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if docType != tt.wantType {
				t.Errorf("DocType = %q, want %q", docType, tt.wantType)
			}
			for _, w := range tt.want {
				if !strings.Contains(text, w) {
					t.Errorf("text %q missing %q", text, w)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(text, nw) {
					t.Errorf("text %q should not contain %q", text, nw)
				}
			}
		})
	}
}

func TestExtractFailures(t *testing.T) {
	e := NewDocumentExtractor(discardLogger())

	if _, _, err := e.Extract("image.png", []byte("x")); !errors.Is(err, ErrUnsupportedFileType) {
		t.Errorf("png err = %v, want ErrUnsupportedFileType", err)
	}
	if _, _, err := e.Extract("empty.txt", []byte("  \n ")); err == nil {
		t.Error("expected error for empty text")
	}
	if _, _, err := e.Extract("header_only.csv", []byte("a,b\n")); err == nil {
		t.Error("expected error for table without rows")
	}
	if _, _, err := e.Extract("broken.pdf", []byte("not a pdf")); err == nil {
		t.Error("expected error for invalid pdf")
	}
}

func TestSupported(t *testing.T) {
	for name, want := range map[string]bool{
		"a.pdf": true, "b.DOCX": true, "c.htm": true, "d.csv": true, "e.exe": false, "noext": false,
	} {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q) = %v", name, got)
		}
	}
}
