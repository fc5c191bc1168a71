package core

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
)

var errInvalidJSON = errors.New("invalid json")

// JSONCodec reads record-oriented JSON and writes column-oriented JSON.
//
// Accepted shapes, with document key order preserved:
//
//	{"col": {"0": v, "1": v}}    column-oriented (the encoded shape)
//	{"col": [v, v]}              column lists
//	{"0": {"col": v}}            row-oriented, keyed by row index
//	[{"col": v}, {"col": v}]     row-oriented list
//
// An object of objects is read as row-oriented only when every outer key is
// a row index and at least one inner key is not; otherwise it is read as
// column-oriented.
//
// Row labels are not kept. Rows are ordered by first appearance of their
// label and Encode numbers them from "0", so {"a": {"5": x, "3": y}} comes
// back as {"a": {"0": x, "1": y}}.
type JSONCodec struct{}

var _ TextCodec = JSONCodec{}

func (JSONCodec) Format() Format { return FormatJSON }
func (JSONCodec) Text() bool     { return true }

// Decode parses data into a table.
func (JSONCodec) Decode(data []byte) (*Table, error) {
	data = stripBOM(data)
	if !json.Valid(data) {
		return nil, errInvalidJSON
	}

	value, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}

	switch typ {
	case jsonparser.Array:
		return decodeRecordList(value)
	case jsonparser.Object:
		return decodeObject(value)
	default:
		return nil, fmt.Errorf("%w: top-level %s is not an object or array", errInvalidJSON, typ)
	}
}

// Encode writes {"col":{"0":v,...},...} with columns in table order.
func (JSONCodec) Encode(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for c, col := range t.columns {
		if c > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, col.Name); err != nil {
			return nil, serializationError(FormatJSON, err)
		}
		buf.WriteString(":{")
		for r, v := range col.Values {
			if r > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('"')
			buf.WriteString(strconv.Itoa(r))
			buf.WriteString(`":`)
			if err := writeJSONValue(&buf, v); err != nil {
				return nil, serializationError(FormatJSON, fmt.Errorf("column %q row %d: %w", col.Name, r, err))
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type jsonEntry struct {
	key   string
	value []byte
	typ   jsonparser.ValueType
}

func objectEntries(data []byte) ([]jsonEntry, error) {
	var entries []jsonEntry
	err := jsonparser.ObjectEach(data, func(key, value []byte, typ jsonparser.ValueType, _ int) error {
		k, err := jsonparser.ParseString(key)
		if err != nil {
			return err
		}
		entries = append(entries, jsonEntry{key: k, value: value, typ: typ})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return entries, nil
}

func decodeObject(data []byte) (*Table, error) {
	outer, err := objectEntries(data)
	if err != nil {
		return nil, err
	}
	if len(outer) == 0 {
		return NewTable()
	}

	switch commonType(outer) {
	case jsonparser.Array:
		return decodeColumnLists(outer)
	case jsonparser.Object:
		inner := make([][]jsonEntry, len(outer))
		for i, e := range outer {
			if inner[i], err = objectEntries(e.value); err != nil {
				return nil, err
			}
		}
		if isRowOriented(outer, inner) {
			return decodeRows(outer, inner)
		}
		return decodeColumns(outer, inner)
	default:
		return nil, fmt.Errorf("%w: object values must all be objects or all be arrays", errInvalidJSON)
	}
}

// decodeColumns reads {"col": {"row": v}}.
func decodeColumns(outer []jsonEntry, inner [][]jsonEntry) (*Table, error) {
	g := newJSONGrid()
	for i, col := range outer {
		c := g.column(col.key)
		for _, cell := range inner[i] {
			if err := g.set(c, g.row(cell.key), cell); err != nil {
				return nil, err
			}
		}
	}
	return g.table()
}

// decodeRows reads {"row": {"col": v}}.
func decodeRows(outer []jsonEntry, inner [][]jsonEntry) (*Table, error) {
	g := newJSONGrid()
	for i, row := range outer {
		r := g.row(row.key)
		for _, cell := range inner[i] {
			if err := g.set(g.column(cell.key), r, cell); err != nil {
				return nil, err
			}
		}
	}
	return g.table()
}

// decodeColumnLists reads {"col": [v, v]}.
func decodeColumnLists(outer []jsonEntry) (*Table, error) {
	g := newJSONGrid()
	length := -1
	for _, col := range outer {
		c := g.column(col.key)
		n := 0
		var cellErr error
		_, err := jsonparser.ArrayEach(col.value, func(value []byte, typ jsonparser.ValueType, _ int, _ error) {
			if cellErr != nil {
				return
			}
			cellErr = g.set(c, g.row(strconv.Itoa(n)), jsonEntry{value: value, typ: typ})
			n++
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
		}
		if cellErr != nil {
			return nil, cellErr
		}
		if length >= 0 && n != length {
			return nil, fmt.Errorf("%w: column %q has %d values, expected %d", errInvalidJSON, col.key, n, length)
		}
		length = n
	}
	return g.table()
}

// decodeRecordList reads [{"col": v}, ...].
func decodeRecordList(data []byte) (*Table, error) {
	g := newJSONGrid()
	n := 0
	var cellErr error
	_, err := jsonparser.ArrayEach(data, func(value []byte, typ jsonparser.ValueType, _ int, _ error) {
		if cellErr != nil {
			return
		}
		if typ != jsonparser.Object {
			cellErr = fmt.Errorf("%w: record %d is a %s, expected object", errInvalidJSON, n, typ)
			return
		}
		cells, err := objectEntries(value)
		if err != nil {
			cellErr = err
			return
		}
		r := g.row(strconv.Itoa(n))
		for _, cell := range cells {
			if err := g.set(g.column(cell.key), r, cell); err != nil {
				cellErr = err
				return
			}
		}
		n++
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	if cellErr != nil {
		return nil, cellErr
	}
	return g.table()
}

func commonType(entries []jsonEntry) jsonparser.ValueType {
	typ := entries[0].typ
	for _, e := range entries[1:] {
		if e.typ != typ {
			return jsonparser.Unknown
		}
	}
	return typ
}

func isRowOriented(outer []jsonEntry, inner [][]jsonEntry) bool {
	for _, e := range outer {
		if !isRowIndex(e.key) {
			return false
		}
	}
	for _, cells := range inner {
		for _, c := range cells {
			if !isRowIndex(c.key) {
				return true
			}
		}
	}
	return false
}

func isRowIndex(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return false
		}
	}
	return true
}

// jsonGrid accumulates cells keyed by column name and row label, keeping
// first-seen order for both.
type jsonGrid struct {
	columns []string
	colIdx  map[string]int
	rowIdx  map[string]int
	cells   []map[int]Value
}

func newJSONGrid() *jsonGrid {
	return &jsonGrid{
		colIdx: make(map[string]int),
		rowIdx: make(map[string]int),
	}
}

func (g *jsonGrid) column(name string) int {
	if i, ok := g.colIdx[name]; ok {
		return i
	}
	g.colIdx[name] = len(g.columns)
	g.columns = append(g.columns, name)
	g.cells = append(g.cells, make(map[int]Value))
	return len(g.columns) - 1
}

func (g *jsonGrid) row(label string) int {
	if i, ok := g.rowIdx[label]; ok {
		return i
	}
	i := len(g.rowIdx)
	g.rowIdx[label] = i
	return i
}

func (g *jsonGrid) set(col, row int, e jsonEntry) error {
	v, err := parseJSONScalar(e.value, e.typ)
	if err != nil {
		return fmt.Errorf("%w: column %q: %v", errInvalidJSON, g.columns[col], err)
	}
	g.cells[col][row] = v
	return nil
}

func (g *jsonGrid) table() (*Table, error) {
	rows := len(g.rowIdx)
	columns := make([]*Column, len(g.columns))
	for i, name := range g.columns {
		values := make([]Value, rows)
		for r, v := range g.cells[i] {
			values[r] = v
		}
		columns[i] = &Column{Name: name, Type: TypeText, Values: values}
	}
	return NewTable(columns...)
}

func parseJSONScalar(value []byte, typ jsonparser.ValueType) (Value, error) {
	switch typ {
	case jsonparser.Null:
		return nil, nil
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(value)
	case jsonparser.Number:
		if n, err := jsonparser.ParseInt(value); err == nil {
			return n, nil
		}
		return jsonparser.ParseFloat(value)
	default:
		return nil, fmt.Errorf("nested %s values are not supported", typ)
	}
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encoder terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

func writeJSONValue(buf *bytes.Buffer, v Value) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return writeJSONString(buf, x)
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(x, 10))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf.WriteString("null")
			return nil
		}
		s := formatFloat(x)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	case bool:
		buf.WriteString(strconv.FormatBool(x))
	case []byte:
		return writeJSONString(buf, base64.StdEncoding.EncodeToString(x))
	case time.Time:
		return writeJSONString(buf, x.Format(time.RFC3339Nano))
	default:
		return fmt.Errorf("unsupported cell type %T", v)
	}
	return nil
}
