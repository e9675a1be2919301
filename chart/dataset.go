// Package chart turns questions about a tabular dataset into validated chart
// configurations. Drawing the chart is left to the client.
package chart

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrNoDataset = errors.New("no dataset found")

const (
	DescribeHead   = "head"
	DescribeDtypes = "dtypes"
	headRows       = 5
)

type Column struct {
	Name string
	Type string
}

type Dataset struct {
	Name    string
	Columns []Column
	Rows    [][]string
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02", "02-01-2006 15:04", "02/01/2006"}

func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCSV(filepath.Base(path), f)
}

func ParseCSV(name string, r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s has no header row", name)
	}

	header := records[0]
	rows := records[1:]
	ds := &Dataset{Name: name, Rows: rows, Columns: make([]Column, len(header))}
	for i, h := range header {
		ds.Columns[i] = Column{Name: strings.TrimSpace(h), Type: inferType(rows, i)}
	}
	return ds, nil
}

// inferType names column types the way the plotting prompt expects them.
func inferType(rows [][]string, col int) string {
	isInt, isFloat, isBool, isTime := true, true, true, true
	seen := 0
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		seen++
		_, ierr := strconv.ParseInt(v, 10, 64)
		_, ferr := strconv.ParseFloat(v, 64)
		_, berr := strconv.ParseBool(v)
		if ierr != nil {
			isInt = false
		}
		if ferr != nil {
			isFloat = false
		}
		if berr != nil || ferr == nil {
			isBool = false
		}
		if !parsesAsTime(v) {
			isTime = false
		}
	}
	switch {
	case seen == 0:
		return "object"
	case isInt:
		return "int64"
	case isFloat:
		return "float64"
	case isBool:
		return "bool"
	case isTime:
		return "datetime64"
	}
	return "object"
}

func parsesAsTime(v string) bool {
	for _, layout := range timeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Describe summarizes the dataset for a prompt. The head strategy adds the
// first rows to the column types.
func (d *Dataset) Describe(strategy string) (string, error) {
	if strategy == "" {
		strategy = DescribeHead
	}
	if strategy != DescribeHead && strategy != DescribeDtypes {
		return "", fmt.Errorf("unknown description strategy %q", strategy)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dataset %s with %d rows.\nColumns:\n", d.Name, len(d.Rows))
	for _, c := range d.Columns {
		fmt.Fprintf(&b, "- %s (%s)\n", c.Name, c.Type)
	}
	if strategy == DescribeDtypes {
		return b.String(), nil
	}

	b.WriteString("First rows:\n")
	w := csv.NewWriter(&b)
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	_ = w.Write(names)
	for i := 0; i < len(d.Rows) && i < headRows; i++ {
		_ = w.Write(d.Rows[i])
	}
	w.Flush()
	return b.String(), w.Error()
}

var datasetPattern = regexp.MustCompile(`^iot_data_(\d+)\.csv$`)

// LatestDataset returns the iot_data_<n>.csv file in dir with the highest n.
func LatestDataset(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	best, bestN := "", int64(-1)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := datasetPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if n > bestN {
			best, bestN = e.Name(), n
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w in %s", ErrNoDataset, dir)
	}
	return filepath.Join(dir, best), nil
}

// LoadLatest loads the newest dataset in dir.
func LoadLatest(dir string) (*Dataset, error) {
	path, err := LatestDataset(dir)
	if err != nil {
		return nil, err
	}
	return LoadCSV(path)
}
