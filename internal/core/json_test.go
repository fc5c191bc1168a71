package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodec_DecodeShapes(t *testing.T) {
	want := MustTable(
		&Column{Name: "id", Values: []Value{int64(1), int64(2)}},
		&Column{Name: "name", Values: []Value{"Jane", nil}},
	)

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "column oriented",
			input: `{"id":{"0":1,"1":2},"name":{"0":"Jane","1":null}}`,
		},
		{
			name:  "column oriented with missing cell",
			input: `{"id":{"0":1,"1":2},"name":{"0":"Jane"}}`,
		},
		{
			name:  "column lists",
			input: `{"id":[1,2],"name":["Jane",null]}`,
		},
		{
			name:  "row oriented object",
			input: `{"0":{"id":1,"name":"Jane"},"1":{"id":2}}`,
		},
		{
			name:  "record list",
			input: `[{"id":1,"name":"Jane"},{"id":2,"name":null}]`,
		},
		{
			name:  "pretty printed with byte order mark",
			input: "\xEF\xBB\xBF{\n  \"id\": {\"0\": 1, \"1\": 2},\n  \"name\": {\"0\": \"Jane\"}\n}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSONCodec{}.Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, want.ColumnNames(), got.ColumnNames())
			assert.True(t, want.Equal(got))
		})
	}
}

func TestJSONCodec_DecodeKeepsDocumentOrder(t *testing.T) {
	got, err := JSONCodec{}.Decode([]byte(`{"zeta":{"0":1},"alpha":{"0":2},"mid":{"0":3}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, got.ColumnNames())
}

func TestJSONCodec_DecodeScalars(t *testing.T) {
	got, err := JSONCodec{}.Decode([]byte(`{"v":{"0":true,"1":1.5,"2":"a\"bé","3":-4}}`))
	require.NoError(t, err)

	col, _ := got.Column("v")
	assert.Equal(t, true, col.Values[0])
	assert.Equal(t, 1.5, col.Values[1])
	assert.Equal(t, "a\"bé", col.Values[2])
	assert.Equal(t, int64(-4), col.Values[3])
}

func TestJSONCodec_DecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"invalid", `{"id":`},
		{"trailing garbage", `{"id":{"0":1}} x`},
		{"scalar", `42`},
		{"mixed values", `{"id":{"0":1},"name":["x"]}`},
		{"nested value", `{"id":{"0":{"deep":1}}}`},
		{"ragged lists", `{"a":[1,2],"b":[1]}`},
		{"list of scalars", `[1,2]`},
		{"csv", "id,name\n1,Jane\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSONCodec{}.Decode([]byte(tt.input))
			assert.ErrorIs(t, err, errInvalidJSON)
		})
	}
}

func TestJSONCodec_Encode(t *testing.T) {
	tbl := MustTable(
		&Column{Name: "id", Values: []Value{int64(1), int64(2)}},
		&Column{Name: "name", Values: []Value{"<Jane>", nil}},
		&Column{Name: "score", Values: []Value{float64(2), 0.5}},
	)

	got, err := JSONCodec{}.Encode(tbl)
	require.NoError(t, err)
	assert.Equal(t,
		`{"id":{"0":1,"1":2},"name":{"0":"<Jane>","1":null},"score":{"0":2.0,"1":0.5}}`,
		string(got))
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	tbl := peopleTable()

	data, err := JSONCodec{}.Encode(tbl)
	require.NoError(t, err)

	got, err := JSONCodec{}.Decode(data)
	require.NoError(t, err)
	assert.True(t, tbl.Equal(got))
}

func TestJSONCodec_EncodeEmptyTable(t *testing.T) {
	tbl := MustTable(&Column{Name: "id", Values: []Value{}})

	data, err := JSONCodec{}.Encode(tbl)
	require.NoError(t, err)
	assert.Equal(t, `{"id":{}}`, string(data))

	got, err := JSONCodec{}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, got.ColumnNames())
	assert.Equal(t, 0, got.NumRows())
}

func TestJSONCodec_RenumbersRowLabels(t *testing.T) {
	tbl, err := JSONCodec{}.Decode([]byte(`{"a":{"5":"x","3":"y"}}`))
	require.NoError(t, err)

	out, err := JSONCodec{}.Encode(tbl)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"0":"x","1":"y"}}`, string(out))
}
