package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		fields     []string
		wantFormat Format
		want       string
	}{
		{
			name:       "csv masks two columns",
			input:      "id,name,email\n1,Jane,jane@x.com\n",
			fields:     []string{"name", "email"},
			wantFormat: FormatCSV,
			want:       "id,name,email\n1,***,***\n",
		},
		{
			name:       "json column oriented",
			input:      `{"id":{"0":1},"name":{"0":"Jane"}}`,
			fields:     []string{"name"},
			wantFormat: FormatJSON,
			want:       `{"id":{"0":1},"name":{"0":"***"}}`,
		},
		{
			name:       "csv every column",
			input:      "id,name\n1,Jane\n2,Omar\n",
			fields:     []string{"id", "name"},
			wantFormat: FormatCSV,
			want:       "id,name\n***,***\n***,***\n",
		},
		{
			name:       "json records come back column oriented",
			input:      `[{"id":1,"ssn":"123-45-6789"},{"id":2,"ssn":null}]`,
			fields:     []string{"ssn"},
			wantFormat: FormatJSON,
			want:       `{"id":{"0":1,"1":2},"ssn":{"0":"***","1":"***"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Process([]byte(tt.input), NewFieldSet(tt.fields...))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, res.Format)
			assert.Equal(t, tt.want, string(res.Payload))
		})
	}
}

func TestProcess_Result(t *testing.T) {
	res, err := Process([]byte("id,name,email\n1,Jane,jane@x.com\n"), NewFieldSet("name", "email"))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, []string{"id", "name", "email"}, res.Columns)
	assert.Equal(t, []string{"email", "name"}, res.Masked)
	assert.Positive(t, res.Elapsed)
}

func TestProcess_Parquet(t *testing.T) {
	res, err := Process(parquetFixture(t), NewFieldSet("name"))
	require.NoError(t, err)
	require.Equal(t, FormatColumnar, res.Format)

	tbl, format, err := Decode(res.Payload, NewFieldSet("name"))
	require.NoError(t, err)
	assert.Equal(t, FormatColumnar, format)

	name, _ := tbl.Column("name")
	assert.Equal(t, []Value{Sentinel, Sentinel}, name.Values)
	id, _ := tbl.Column("id")
	assert.Equal(t, TypeInt64, id.Type)
	assert.Equal(t, []Value{int64(1), int64(2)}, id.Values)
}

func TestProcess_Failures(t *testing.T) {
	_, err := Process(parquetFixture(t), NewFieldSet("email"))
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)

	_, err = Process(nil, NewFieldSet("name"))
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)

	_, err = Process([]byte("a\n1\n"), NewFieldSet(), WithEmptyFieldsPolicy(EmptyFieldsReject))
	assert.ErrorIs(t, err, ErrNoFields)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		format Format
		table  *Table
	}{
		{FormatCSV, peopleTable()},
		{FormatJSON, peopleTable()},
		{FormatColumnar, typedTable()},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			data, err := Encode(tt.table, tt.format)
			require.NoError(t, err)

			got, format, err := Decode(data, NewFieldSet(tt.table.ColumnNames()...))
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.True(t, tt.table.Equal(got))
		})
	}
}

func TestProcess_Concurrent(t *testing.T) {
	input := []byte("id,name,email\n1,Jane,jane@x.com\n")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Process(input, NewFieldSet("email"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
