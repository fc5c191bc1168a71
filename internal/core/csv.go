package core

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errNoHeader = errors.New("no header row")

// CSVCodec reads and writes comma-delimited text with a header row.
// No index column is written.
type CSVCodec struct{}

var _ TextCodec = CSVCodec{}

func (CSVCodec) Format() Format { return FormatCSV }
func (CSVCodec) Text() bool     { return true }

// Decode parses data as CSV. The first record is the header; every other
// record is a row. Rows shorter than the header are padded with nulls and
// rows longer than the header are rejected.
func (CSVCodec) Decode(data []byte) (*Table, error) {
	r := csv.NewReader(NewBOMSkippingReader(bytes.NewReader(data)))
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	header, err := r.Read()
	if err == io.EOF {
		return nil, errNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	cells := make([][]string, len(header))
	absent := make([][]bool, len(header))
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		line++
		if len(record) > len(header) {
			return nil, fmt.Errorf("invalid csv: line %d has %d fields, header has %d", line, len(record), len(header))
		}
		for i := range header {
			if i < len(record) && record[i] != "" {
				cells[i] = append(cells[i], record[i])
				absent[i] = append(absent[i], false)
			} else {
				cells[i] = append(cells[i], "")
				absent[i] = append(absent[i], true)
			}
		}
	}

	columns := make([]*Column, len(header))
	for i, name := range header {
		columns[i] = &Column{
			Name:   name,
			Type:   TypeText,
			Values: inferColumn(cells[i], absent[i]),
		}
	}
	return NewTable(columns...)
}

// Encode writes the header followed by one line per row.
func (CSVCodec) Encode(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.ColumnNames()); err != nil {
		return nil, serializationError(FormatCSV, err)
	}

	record := make([]string, t.NumColumns())
	for r := 0; r < t.NumRows(); r++ {
		for c, col := range t.columns {
			s, err := formatText(col.Values[r])
			if err != nil {
				return nil, serializationError(FormatCSV, fmt.Errorf("column %q row %d: %w", col.Name, r, err))
			}
			record[c] = s
		}
		if err := w.Write(record); err != nil {
			return nil, serializationError(FormatCSV, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, serializationError(FormatCSV, err)
	}
	return buf.Bytes(), nil
}

// checkHeader rejects headers with blank or repeated names.
func checkHeader(header []string) error {
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("invalid csv header: column %d has no name", i+1)
		}
		if _, dup := seen[h]; dup {
			return fmt.Errorf("invalid csv header: duplicate column %q", h)
		}
		seen[h] = struct{}{}
	}
	return nil
}
