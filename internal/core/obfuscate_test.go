package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObfuscate(t *testing.T) {
	tbl := peopleTable()

	got, err := Obfuscate(tbl, NewFieldSet("name", "email"))
	require.NoError(t, err)

	assert.Equal(t, tbl.ColumnNames(), got.ColumnNames())
	assert.Equal(t, tbl.NumRows(), got.NumRows())

	name, _ := got.Column("name")
	assert.Equal(t, []Value{Sentinel, Sentinel, Sentinel}, name.Values, "nulls are masked too")
	assert.Equal(t, TypeText, name.Type)

	id, _ := got.Column("id")
	origID, _ := tbl.Column("id")
	assert.Equal(t, origID.Values, id.Values)
}

func TestObfuscate_DoesNotMutateInput(t *testing.T) {
	tbl := typedTable()
	before := tbl.Clone()

	got, err := Obfuscate(tbl, NewFieldSet("email", "blob"))
	require.NoError(t, err)
	assert.True(t, before.Equal(tbl))
	assert.NotSame(t, tbl, got)

	// Mutating the output must not reach the input either.
	born, _ := got.Column("born")
	born.Values[0] = nil
	u64, _ := got.Column("u64")
	u64.Values[1] = uint64(0)
	assert.True(t, before.Equal(tbl))
}

func TestObfuscate_TypedColumnsBecomeStrings(t *testing.T) {
	got, err := Obfuscate(typedTable(), NewFieldSet("id", "born"))
	require.NoError(t, err)

	for _, name := range []string{"id", "born"} {
		col, _ := got.Column(name)
		assert.Equal(t, TypeString, col.Type, name)
		assert.Equal(t, []Value{Sentinel, Sentinel}, col.Values, name)
	}

	data, err := Encode(got, FormatColumnar)
	require.NoError(t, err)
	back, err := ColumnarCodec{}.Decode(data)
	require.NoError(t, err)
	assert.True(t, got.Equal(back))
}

func TestObfuscate_Idempotent(t *testing.T) {
	fields := NewFieldSet("email")

	once, err := Obfuscate(peopleTable(), fields)
	require.NoError(t, err)
	twice, err := Obfuscate(once, fields)
	require.NoError(t, err)

	assert.True(t, once.Equal(twice))
}

func TestObfuscate_UnknownField(t *testing.T) {
	_, err := Obfuscate(peopleTable(), NewFieldSet("nonexistent_column", "name"))
	require.ErrorIs(t, err, ErrUnknownField)

	var ferr *FieldError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, []string{"nonexistent_column"}, ferr.Missing)
	assert.Contains(t, err.Error(), `"nonexistent_column"`)
}

func TestObfuscate_EmptyFieldsCopies(t *testing.T) {
	tbl := peopleTable()

	got, err := Obfuscate(tbl, NewFieldSet())
	require.NoError(t, err)
	assert.True(t, tbl.Equal(got))
}

func TestObfuscate_NilTable(t *testing.T) {
	_, err := Obfuscate(nil, NewFieldSet("a"))
	assert.Error(t, err)
}

func TestEncode_Errors(t *testing.T) {
	_, err := Encode(nil, FormatCSV)
	assert.ErrorIs(t, err, ErrSerialization)

	_, err = Encode(peopleTable(), Format("xml"))
	assert.ErrorIs(t, err, ErrSerialization)

	bad := MustTable(&Column{Name: "when", Type: TypeDate, Values: []Value{"yesterday"}})
	_, err = Encode(bad, FormatColumnar)
	assert.ErrorIs(t, err, ErrSerialization)
}
