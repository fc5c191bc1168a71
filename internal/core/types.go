package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// Format identifies the serialization of a tabular object.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatColumnar Format = "parquet"
)

// ParseFormat converts a user-provided format name to a Format.
// "columnar" is accepted as an alias for parquet. The empty string is
// returned as an empty Format with no error (no hint).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "parquet", "columnar":
		return FormatColumnar, nil
	default:
		return "", fmt.Errorf("unknown format %q (want csv, json or parquet)", s)
	}
}

// ContentType returns the MIME type used when the format is served or stored.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatColumnar:
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}

// ColumnType records the cell type of a column.
//
// Columns decoded from text formats use TypeText, whose cells may hold
// strings, int64 or float64 values. Columns decoded from the columnar format
// carry their exact physical type so re-encoding is lossless.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeString    ColumnType = "string"
	TypeBool      ColumnType = "bool"
	TypeInt8      ColumnType = "int8"
	TypeInt16     ColumnType = "int16"
	TypeInt32     ColumnType = "int32"
	TypeInt64     ColumnType = "int64"
	TypeUint8     ColumnType = "uint8"
	TypeUint16    ColumnType = "uint16"
	TypeUint32    ColumnType = "uint32"
	TypeUint64    ColumnType = "uint64"
	TypeFloat32   ColumnType = "float32"
	TypeFloat64   ColumnType = "float64"
	TypeBinary    ColumnType = "binary"
	TypeDate      ColumnType = "date32"
	TypeTimestamp ColumnType = "timestamp"

	// TypeTimestampTZ is a zone-aware timestamp, normalized to UTC.
	TypeTimestampTZ ColumnType = "timestamptz"
)

// Value is a single cell. Allowed dynamic types are nil, string, int64,
// uint64, float64, bool, []byte and time.Time.
type Value = any

// Column is a named, ordered sequence of cells.
type Column struct {
	Name   string
	Type   ColumnType
	Values []Value

	// arrowType is the exact type read from a columnar object, nil for
	// columns decoded from text or built in memory. Encode writes it back.
	arrowType arrow.DataType
}

// Table is an ordered set of uniquely named columns of equal length.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// FieldSet is the set of column names requested for obfuscation.
type FieldSet map[string]struct{}

// NewFieldSet builds a FieldSet, ignoring blank names and duplicates.
func NewFieldSet(names ...string) FieldSet {
	fs := make(FieldSet, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		fs[n] = struct{}{}
	}
	return fs
}

// Len returns the number of names in the set.
func (fs FieldSet) Len() int { return len(fs) }

// Contains reports whether name is in the set.
func (fs FieldSet) Contains(name string) bool {
	_, ok := fs[name]
	return ok
}

// Names returns the names in the set in sorted order.
func (fs FieldSet) Names() []string {
	out := make([]string, 0, len(fs))
	for n := range fs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Missing returns the names of the set that are absent from columns, sorted.
func (fs FieldSet) Missing(columns []string) []string {
	have := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		have[c] = struct{}{}
	}
	var missing []string
	for _, n := range fs.Names() {
		if _, ok := have[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// SubsetOf reports whether every name in the set is one of columns.
func (fs FieldSet) SubsetOf(columns []string) bool {
	return len(fs.Missing(columns)) == 0
}

// Result is the outcome of a full decode, obfuscate and encode pass.
type Result struct {
	Payload []byte
	Format  Format
	Rows    int
	Columns []string
	Masked  []string
	Elapsed time.Duration
}
