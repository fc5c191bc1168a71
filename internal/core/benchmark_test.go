package core

import (
	"bytes"
	"fmt"
	"testing"
)

// ============================================================================
// Fixtures
// ============================================================================

func benchCSV(rows int) []byte {
	var buf bytes.Buffer
	buf.WriteString("id,name,email,amount\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&buf, "%d,User %d,user%d@example.com,%d.25\n", i, i, i, i)
	}
	return buf.Bytes()
}

func benchTable(b *testing.B, rows int) *Table {
	b.Helper()
	t, err := CSVCodec{}.Decode(benchCSV(rows))
	if err != nil {
		b.Fatal(err)
	}
	return t
}

// ============================================================================
// Detection Benchmarks
// ============================================================================

// BenchmarkDecode_CSV measures the common path: parquet rejected by magic,
// CSV accepted.
func BenchmarkDecode_CSV(b *testing.B) {
	data := benchCSV(10000)
	fields := NewFieldSet("name", "email")

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Decode(data, fields); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDecode_JSON measures the full fallthrough: parquet and CSV both
// rejected before JSON is accepted.
func BenchmarkDecode_JSON(b *testing.B) {
	data, err := JSONCodec{}.Encode(benchTable(b, 10000))
	if err != nil {
		b.Fatal(err)
	}
	fields := NewFieldSet("name", "email")

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Decode(data, fields); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Encoding Benchmarks
// ============================================================================

func BenchmarkEncode(b *testing.B) {
	tbl := benchTable(b, 10000)

	for _, f := range []Format{FormatCSV, FormatJSON, FormatColumnar} {
		b.Run(string(f), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Encode(tbl, f); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkProcess_CSV measures a full decode, mask and encode pass.
func BenchmarkProcess_CSV(b *testing.B) {
	data := benchCSV(10000)
	fields := NewFieldSet("email")

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Process(data, fields); err != nil {
			b.Fatal(err)
		}
	}
}
