package trainer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Table is a parsed CSV file. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

func ParseCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("No columns to parse from file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read headers: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading record: %w", err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" && len(header) > 1 {
			continue
		}
		if len(rec) > len(header) {
			return nil, fmt.Errorf("Error tokenizing data. Expected %d fields in line %d, saw %d", len(header), len(t.Rows)+2, len(rec))
		}
		row := make([]string, len(header))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func ParseCSVBytes(b []byte) (*Table, error) { return ParseCSV(bytes.NewReader(b)) }

func (t *Table) Index(col string) int {
	for i, h := range t.Header {
		if h == col {
			return i
		}
	}
	return -1
}

// Missing lists requested columns absent from the header, in request order.
func (t *Table) Missing(cols []string) []string {
	out := []string{}
	for _, c := range cols {
		if t.Index(c) < 0 {
			out = append(out, c)
		}
	}
	return out
}

func isMissing(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", "na", "nan", "null", "none", "n/a":
		return true
	}
	return false
}

// NonNullCount counts the non-missing cells of col.
func (t *Table) NonNullCount(col string) int {
	i := t.Index(col)
	if i < 0 {
		return 0
	}
	n := 0
	for _, row := range t.Rows {
		if !isMissing(row[i]) {
			n++
		}
	}
	return n
}

func (t *Table) MissingCounts() map[string]int {
	out := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		n := 0
		for _, row := range t.Rows {
			if isMissing(row[i]) {
				n++
			}
		}
		out[h] = n
	}
	return out
}

// IsNumeric reports whether every present value of col parses as a number.
func (t *Table) IsNumeric(col string) bool {
	i := t.Index(col)
	if i < 0 {
		return false
	}
	for _, row := range t.Rows {
		if isMissing(row[i]) {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64); err != nil {
			return false
		}
	}
	return true
}
