// Package upload parses the delimited-text files attached to bulk
// reconciliation requests.
package upload

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ChunkSize bounds how many data rows are pulled into memory per read.
const ChunkSize = 200

// Row maps lower-cased header names to trimmed cell values.
type Row map[string]string

// Get returns the trimmed value for a column, or "" when the cell is blank
// or missing.
func (r Row) Get(col string) string {
	return r[strings.ToLower(col)]
}

// CheckExtension rejects anything that is not a .csv attachment. The check
// runs before any parsing so a mislabeled binary never reaches the reader.
func CheckExtension(filename string) error {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return fmt.Errorf("unsupported file type %q, expected a .csv file", filepath.Ext(filename))
	}
	return nil
}

// Reader reads a CSV upload after validating its header row.
type Reader struct {
	cr   *csv.Reader
	cols map[string]int
}

// NewReader reads and validates the header row. Every name in required must
// appear in the header; the whole upload is rejected otherwise. Header
// matching is case-insensitive and ignores surrounding whitespace.
func NewReader(r io.Reader, required ...string) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range required {
		if _, ok := cols[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}

	return &Reader{cr: cr, cols: cols}, nil
}

// Chunk reads up to n data rows. It returns io.EOF alongside the final
// (possibly empty) chunk once the file is exhausted.
func (r *Reader) Chunk(n int) ([]Row, error) {
	var rows []Row
	for len(rows) < n {
		record, err := r.cr.Read()
		if err == io.EOF {
			return rows, io.EOF
		}
		if err != nil {
			return rows, fmt.Errorf("read row: %w", err)
		}

		row := make(Row, len(r.cols))
		for name, idx := range r.cols {
			if idx < len(record) {
				row[name] = strings.TrimSpace(record[idx])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadAll drains the file in ChunkSize batches and returns every data row.
func (r *Reader) ReadAll() ([]Row, error) {
	var all []Row
	for {
		rows, err := r.Chunk(ChunkSize)
		all = append(all, rows...)
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
