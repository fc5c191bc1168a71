package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----------------------------------------------------------------------------
// Column inference
// ----------------------------------------------------------------------------

func TestInferColumn(t *testing.T) {
	tests := []struct {
		name   string
		cells  []string
		absent []bool
		want   []Value
	}{
		{
			name:   "all integers",
			cells:  []string{"1", "-2", "30"},
			absent: []bool{false, false, false},
			want:   []Value{int64(1), int64(-2), int64(30)},
		},
		{
			name:   "mixed integers and decimals become floats",
			cells:  []string{"1", "2.5"},
			absent: []bool{false, false},
			want:   []Value{float64(1), 2.5},
		},
		{
			name:   "leading zero keeps strings",
			cells:  []string{"007", "8"},
			absent: []bool{false, false},
			want:   []Value{"007", "8"},
		},
		{
			name:   "trailing zero decimal keeps strings",
			cells:  []string{"1.50"},
			absent: []bool{false},
			want:   []Value{"1.50"},
		},
		{
			name:   "explicit plus sign keeps strings",
			cells:  []string{"+3"},
			absent: []bool{false},
			want:   []Value{"+3"},
		},
		{
			name:   "absent cells are nil and ignored for inference",
			cells:  []string{"4", "", "5"},
			absent: []bool{false, true, false},
			want:   []Value{int64(4), nil, int64(5)},
		},
		{
			name:   "any text makes the column text",
			cells:  []string{"1", "Jane"},
			absent: []bool{false, false},
			want:   []Value{"1", "Jane"},
		},
		{
			name:   "integer overflow stays text",
			cells:  []string{"99999999999999999999"},
			absent: []bool{false},
			want:   []Value{"99999999999999999999"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferColumn(tt.cells, tt.absent))
		})
	}
}

func TestCanonicalFloat(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"0.25", 0.25, true},
		{"-12.5", -12.5, true},
		{"1e3", 0, false},
		{".5", 0, false},
		{"5.", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := canonicalFloat(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Text rendering
// ----------------------------------------------------------------------------

func TestFormatText(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 500, time.UTC)

	tests := []struct {
		name  string
		input Value
		want  string
	}{
		{"nil", nil, ""},
		{"string", "Jane", "Jane"},
		{"int", int64(-7), "-7"},
		{"uint", uint64(7), "7"},
		{"float", 2.5, "2.5"},
		{"integral float", float64(3), "3"},
		{"nan", math.NaN(), ""},
		{"inf", math.Inf(1), ""},
		{"bool", true, "true"},
		{"bytes", []byte("hi"), "aGk="},
		{"time", ts, "2024-01-15T10:30:00.0000005Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatText(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatText_Unsupported(t *testing.T) {
	_, err := formatText(struct{}{})
	assert.Error(t, err)
	assert.Error(t, checkValue(3))
	assert.NoError(t, checkValue("x"))
}
