package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

var parquetMagic = []byte("PAR1")

var errNotParquet = errors.New("not a parquet file")

// RowGroupSize is the maximum number of rows written per parquet row group.
var RowGroupSize int64 = 64 * 1024

// ColumnarCodec reads and writes Apache Parquet. It is the only codec that
// keeps exact cell types across a round trip.
//
// Every decoded column remembers its arrow type, and Encode writes unmasked
// columns back with that type: timestamp unit and zone, decimal precision,
// dictionary encoding. Types without a native cell mapping (decimals,
// nested types) hold their string rendering in Values.
type ColumnarCodec struct{}

var _ Codec = ColumnarCodec{}

func (ColumnarCodec) Format() Format { return FormatColumnar }

// Decode reads every row group of a parquet file into a table.
func (ColumnarCodec) Decode(data []byte) (*Table, error) {
	if len(data) < 2*len(parquetMagic) ||
		!bytes.HasPrefix(data, parquetMagic) ||
		!bytes.HasSuffix(data, parquetMagic) {
		return nil, errNotParquet
	}

	mem := memory.NewGoAllocator()
	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(data),
		parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNotParquet, err)
	}
	defer tbl.Release()

	schema := tbl.Schema()
	columns := make([]*Column, tbl.NumCols())
	for i := range columns {
		field := schema.Field(i)
		col := &Column{
			Name:      field.Name,
			Type:      columnTypeOf(field.Type),
			Values:    make([]Value, 0, tbl.NumRows()),
			arrowType: field.Type,
		}
		for _, chunk := range tbl.Column(i).Data().Chunks() {
			col.Values = appendArrowValues(col.Values, chunk, col.Type)
		}
		columns[i] = col
	}
	return NewTable(columns...)
}

// Encode writes the table as a single parquet file with snappy compression
// and the arrow schema embedded.
func (ColumnarCodec) Encode(t *Table) ([]byte, error) {
	if t.NumColumns() == 0 {
		return nil, serializationError(FormatColumnar, errors.New("table has no columns"))
	}

	mem := memory.NewGoAllocator()
	fields := make([]arrow.Field, t.NumColumns())
	arrays := make([]arrow.Array, 0, t.NumColumns())
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()

	for i, col := range t.columns {
		arr, dt, err := encodeColumn(mem, col)
		if err != nil {
			return nil, serializationError(FormatColumnar, fmt.Errorf("column %q: %w", col.Name, err))
		}
		fields[i] = arrow.Field{Name: col.Name, Type: dt, Nullable: true}
		arrays = append(arrays, arr)
	}

	schema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(schema, arrays, int64(t.NumRows()))
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(
		parquet.WithAllocator(mem),
		parquet.WithCompression(compress.Codecs.Snappy),
	)
	arrProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	if err := pqarrow.WriteTable(tbl, &buf, RowGroupSize, props, arrProps); err != nil {
		return nil, serializationError(FormatColumnar, err)
	}
	return buf.Bytes(), nil
}

func columnTypeOf(dt arrow.DataType) ColumnType {
	switch dt.ID() {
	case arrow.BOOL:
		return TypeBool
	case arrow.INT8:
		return TypeInt8
	case arrow.INT16:
		return TypeInt16
	case arrow.INT32:
		return TypeInt32
	case arrow.INT64:
		return TypeInt64
	case arrow.UINT8:
		return TypeUint8
	case arrow.UINT16:
		return TypeUint16
	case arrow.UINT32:
		return TypeUint32
	case arrow.UINT64:
		return TypeUint64
	case arrow.FLOAT32:
		return TypeFloat32
	case arrow.FLOAT64:
		return TypeFloat64
	case arrow.BINARY, arrow.LARGE_BINARY:
		return TypeBinary
	case arrow.DATE32:
		return TypeDate
	case arrow.TIMESTAMP:
		if dt.(*arrow.TimestampType).TimeZone != "" {
			return TypeTimestampTZ
		}
		return TypeTimestamp
	default:
		return TypeString
	}
}

func appendArrowValues(out []Value, arr arrow.Array, typ ColumnType) []Value {
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			out = append(out, nil)
			continue
		}
		out = append(out, arrowValue(arr, i, typ))
	}
	return out
}

func arrowValue(arr arrow.Array, i int, typ ColumnType) Value {
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return uint64(a.Value(i))
	case *array.Uint16:
		return uint64(a.Value(i))
	case *array.Uint32:
		return uint64(a.Value(i))
	case *array.Uint64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return bytes.Clone(a.Value(i))
	case *array.LargeBinary:
		return bytes.Clone(a.Value(i))
	case *array.Date32:
		return a.Value(i).ToTime()
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit)
	case *array.Dictionary:
		dict := a.Dictionary()
		j := a.GetValueIndex(i)
		if dict.IsNull(j) {
			return nil
		}
		return arrowValue(dict, j, typ)
	default:
		return arr.ValueStr(i)
	}
}

// encodeColumn builds the arrow array for one column, using the source
// arrow type when the column was read from a columnar object.
func encodeColumn(mem memory.Allocator, col *Column) (arrow.Array, arrow.DataType, error) {
	typ := col.Type
	if typ == TypeText {
		typ = resolveTextType(col.Values)
	}

	switch dt := col.arrowType.(type) {
	case nil:
	case *arrow.TimestampType:
		if typ == TypeTimestamp || typ == TypeTimestampTZ {
			return buildTimestamps(mem, dt, col.Values)
		}
	default:
		if typ == columnTypeOf(dt) && !builtExactly(dt) {
			return buildFromText(mem, dt, col.Values)
		}
	}
	return buildArrowArray(mem, typ, col.Values)
}

// builtExactly reports whether buildArrowArray reproduces dt for the
// matching column type.
func builtExactly(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.BOOL,
		arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64,
		arrow.STRING, arrow.BINARY, arrow.DATE32:
		return true
	default:
		return false
	}
}

// buildFromText rebuilds a column of type dt from the text rendering of its
// cells. Cells that no longer parse as dt (edited after decode) fall back
// to a plain string column.
func buildFromText(mem memory.Allocator, dt arrow.DataType, values []Value) (arrow.Array, arrow.DataType, error) {
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	for _, v := range values {
		if v == nil {
			b.AppendNull()
			continue
		}
		s, err := formatText(v)
		if err != nil {
			return nil, nil, err
		}
		if err := b.AppendValueFromString(s); err != nil {
			return buildArrowArray(mem, TypeString, values)
		}
	}
	return b.NewArray(), dt, nil
}

var (
	minNanoTime = time.Unix(0, math.MinInt64).UTC()
	maxNanoTime = time.Unix(0, math.MaxInt64).UTC()
)

// buildTimestamps writes time values with the unit and zone of dt.
func buildTimestamps(mem memory.Allocator, dt *arrow.TimestampType, values []Value) (arrow.Array, arrow.DataType, error) {
	b := array.NewTimestampBuilder(mem, dt)
	defer b.Release()
	for _, v := range values {
		if v == nil {
			b.AppendNull()
			continue
		}
		x, ok := v.(time.Time)
		if !ok {
			return nil, nil, fmt.Errorf("%T value does not fit column type %s", v, dt)
		}
		if dt.Unit == arrow.Nanosecond && (x.Before(minNanoTime) || x.After(maxNanoTime)) {
			return nil, nil, fmt.Errorf("time %s out of range for %s", x.Format(time.RFC3339), dt)
		}
		ts, err := arrow.TimestampFromTime(x, dt.Unit)
		if err != nil {
			return nil, nil, err
		}
		b.Append(ts)
	}
	return b.NewArray(), dt, nil
}

// resolveTextType picks a physical type for a column decoded from text.
func resolveTextType(values []Value) ColumnType {
	sawInt, sawFloat, sawBool, sawOther := false, false, false, false
	for _, v := range values {
		switch v.(type) {
		case nil:
		case int64:
			sawInt = true
		case float64:
			sawFloat = true
		case bool:
			sawBool = true
		default:
			sawOther = true
		}
	}
	switch {
	case sawOther, sawBool && (sawInt || sawFloat):
		return TypeString
	case sawBool:
		return TypeBool
	case sawFloat:
		return TypeFloat64
	case sawInt:
		return TypeInt64
	default:
		return TypeString
	}
}

func buildArrowArray(mem memory.Allocator, typ ColumnType, values []Value) (arrow.Array, arrow.DataType, error) {
	switch typ {
	case TypeBool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		for _, v := range values {
			if v == nil {
				b.AppendNull()
				continue
			}
			x, ok := v.(bool)
			if !ok {
				return nil, nil, typeMismatch(typ, v)
			}
			b.Append(x)
		}
		return b.NewArray(), arrow.FixedWidthTypes.Boolean, nil

	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return buildSigned(mem, typ, values)

	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return buildUnsigned(mem, typ, values)

	case TypeFloat32:
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		for _, v := range values {
			if v == nil {
				b.AppendNull()
				continue
			}
			f, err := floatValue(typ, v)
			if err != nil {
				return nil, nil, err
			}
			b.Append(float32(f))
		}
		return b.NewArray(), arrow.PrimitiveTypes.Float32, nil

	case TypeFloat64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for _, v := range values {
			if v == nil {
				b.AppendNull()
				continue
			}
			f, err := floatValue(typ, v)
			if err != nil {
				return nil, nil, err
			}
			b.Append(f)
		}
		return b.NewArray(), arrow.PrimitiveTypes.Float64, nil

	case TypeBinary:
		b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
		defer b.Release()
		for _, v := range values {
			switch x := v.(type) {
			case nil:
				b.AppendNull()
			case []byte:
				b.Append(x)
			case string:
				b.Append([]byte(x))
			default:
				return nil, nil, typeMismatch(typ, v)
			}
		}
		return b.NewArray(), arrow.BinaryTypes.Binary, nil

	case TypeDate:
		b := array.NewDate32Builder(mem)
		defer b.Release()
		for _, v := range values {
			if v == nil {
				b.AppendNull()
				continue
			}
			x, ok := v.(time.Time)
			if !ok {
				return nil, nil, typeMismatch(typ, v)
			}
			b.Append(arrow.Date32FromTime(x))
		}
		return b.NewArray(), arrow.FixedWidthTypes.Date32, nil

	case TypeTimestamp, TypeTimestampTZ:
		dt := &arrow.TimestampType{Unit: arrow.Nanosecond}
		if typ == TypeTimestampTZ {
			dt.TimeZone = "UTC"
		}
		return buildTimestamps(mem, dt, values)

	case TypeString:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for _, v := range values {
			if v == nil {
				b.AppendNull()
				continue
			}
			s, err := formatText(v)
			if err != nil {
				return nil, nil, err
			}
			b.Append(s)
		}
		return b.NewArray(), arrow.BinaryTypes.String, nil

	default:
		return nil, nil, fmt.Errorf("unknown column type %q", typ)
	}
}

func buildSigned(mem memory.Allocator, typ ColumnType, values []Value) (arrow.Array, arrow.DataType, error) {
	lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
	switch typ {
	case TypeInt8:
		lo, hi = math.MinInt8, math.MaxInt8
	case TypeInt16:
		lo, hi = math.MinInt16, math.MaxInt16
	case TypeInt32:
		lo, hi = math.MinInt32, math.MaxInt32
	}

	ints := make([]int64, len(values))
	valid := make([]bool, len(values))
	for i, v := range values {
		var n int64
		switch x := v.(type) {
		case nil:
			continue
		case int64:
			n = x
		case uint64:
			if x > math.MaxInt64 {
				return nil, nil, fmt.Errorf("value %d out of range for %s", x, typ)
			}
			n = int64(x)
		default:
			return nil, nil, typeMismatch(typ, v)
		}
		if n < lo || n > hi {
			return nil, nil, fmt.Errorf("value %d out of range for %s", n, typ)
		}
		ints[i], valid[i] = n, true
	}

	switch typ {
	case TypeInt8:
		b := array.NewInt8Builder(mem)
		defer b.Release()
		b.AppendValues(narrow[int8](ints), valid)
		return b.NewArray(), arrow.PrimitiveTypes.Int8, nil
	case TypeInt16:
		b := array.NewInt16Builder(mem)
		defer b.Release()
		b.AppendValues(narrow[int16](ints), valid)
		return b.NewArray(), arrow.PrimitiveTypes.Int16, nil
	case TypeInt32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		b.AppendValues(narrow[int32](ints), valid)
		return b.NewArray(), arrow.PrimitiveTypes.Int32, nil
	default:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(ints, valid)
		return b.NewArray(), arrow.PrimitiveTypes.Int64, nil
	}
}

func buildUnsigned(mem memory.Allocator, typ ColumnType, values []Value) (arrow.Array, arrow.DataType, error) {
	hi := uint64(math.MaxUint64)
	switch typ {
	case TypeUint8:
		hi = math.MaxUint8
	case TypeUint16:
		hi = math.MaxUint16
	case TypeUint32:
		hi = math.MaxUint32
	}

	uints := make([]uint64, len(values))
	valid := make([]bool, len(values))
	for i, v := range values {
		var n uint64
		switch x := v.(type) {
		case nil:
			continue
		case uint64:
			n = x
		case int64:
			if x < 0 {
				return nil, nil, fmt.Errorf("value %d out of range for %s", x, typ)
			}
			n = uint64(x)
		default:
			return nil, nil, typeMismatch(typ, v)
		}
		if n > hi {
			return nil, nil, fmt.Errorf("value %d out of range for %s", n, typ)
		}
		uints[i], valid[i] = n, true
	}

	switch typ {
	case TypeUint8:
		b := array.NewUint8Builder(mem)
		defer b.Release()
		b.AppendValues(narrow[uint8](uints), valid)
		return b.NewArray(), arrow.PrimitiveTypes.Uint8, nil
	case TypeUint16:
		b := array.NewUint16Builder(mem)
		defer b.Release()
		b.AppendValues(narrow[uint16](uints), valid)
		return b.NewArray(), arrow.PrimitiveTypes.Uint16, nil
	case TypeUint32:
		b := array.NewUint32Builder(mem)
		defer b.Release()
		b.AppendValues(narrow[uint32](uints), valid)
		return b.NewArray(), arrow.PrimitiveTypes.Uint32, nil
	default:
		b := array.NewUint64Builder(mem)
		defer b.Release()
		b.AppendValues(uints, valid)
		return b.NewArray(), arrow.PrimitiveTypes.Uint64, nil
	}
}

// narrow converts range-checked values to a smaller integer type.
func narrow[T int8 | int16 | int32 | uint8 | uint16 | uint32, S int64 | uint64](in []S) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = T(v)
	}
	return out
}

func floatValue(typ ColumnType, v Value) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	default:
		return 0, typeMismatch(typ, v)
	}
}

func typeMismatch(typ ColumnType, v Value) error {
	return fmt.Errorf("%T value does not fit column type %s", v, typ)
}
