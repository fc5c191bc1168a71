package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the engine. Match with errors.Is.
var (
	// ErrEncoding is returned when text decoding is attempted on bytes that
	// are not valid UTF-8.
	ErrEncoding = errors.New("encoding error: input is not valid utf-8")

	// ErrUnrecognizedFormat is returned when no candidate format yields a
	// table containing every requested field.
	ErrUnrecognizedFormat = errors.New("unrecognized format")

	// ErrUnknownField is returned when obfuscation names a column the table
	// does not have.
	ErrUnknownField = errors.New("unknown field")

	// ErrSerialization is returned when a table cannot be encoded.
	ErrSerialization = errors.New("serialization error")

	// ErrNoFields is returned when the empty field set is rejected by policy.
	ErrNoFields = errors.New("no fields to obfuscate")
)

// FieldError names the requested fields a table is missing.
type FieldError struct {
	Missing []string
	Columns []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s not found in columns [%s]",
		ErrUnknownField, quoteAll(e.Missing), strings.Join(e.Columns, ", "))
}

func (e *FieldError) Unwrap() error { return ErrUnknownField }

// Rejection records why one candidate format was not accepted.
type Rejection struct {
	Format Format
	Err    error
}

// CandidateError is returned by detection when every candidate was rejected.
// It unwraps to ErrUnrecognizedFormat only; per-candidate causes are kept in
// Rejections for diagnostics.
type CandidateError struct {
	Fields     []string
	Rejections []Rejection
}

func (e *CandidateError) Error() string {
	var b strings.Builder
	b.WriteString(ErrUnrecognizedFormat.Error())
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " for fields %s", quoteAll(e.Fields))
	}
	for i, r := range e.Rejections {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", r.Format, r.Err)
	}
	return b.String()
}

func (e *CandidateError) Unwrap() error { return ErrUnrecognizedFormat }

func serializationError(f Format, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSerialization, f, err)
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(q, ", ")
}
