package core

import (
	"fmt"
	"unicode/utf8"
)

// EmptyFieldsPolicy decides how detection treats an empty field set, where
// the field list cannot tell candidate formats apart.
type EmptyFieldsPolicy int

const (
	// EmptyFieldsFirstParsed accepts the first codec in chain order that
	// parses the input.
	EmptyFieldsFirstParsed EmptyFieldsPolicy = iota

	// EmptyFieldsReject fails detection with ErrNoFields.
	EmptyFieldsReject
)

// ParseEmptyFieldsPolicy converts a configuration value to a policy.
func ParseEmptyFieldsPolicy(s string) (EmptyFieldsPolicy, error) {
	switch s {
	case "", "first", "first_parsed":
		return EmptyFieldsFirstParsed, nil
	case "reject":
		return EmptyFieldsReject, nil
	default:
		return 0, fmt.Errorf("unknown empty fields policy %q (want first_parsed or reject)", s)
	}
}

func (p EmptyFieldsPolicy) String() string {
	if p == EmptyFieldsReject {
		return "reject"
	}
	return "first_parsed"
}

// Option configures a Detector.
type Option func(*Detector)

// WithFormatHint restricts detection to a single format. The field list is
// still checked against the decoded columns. An empty hint is ignored.
func WithFormatHint(f Format) Option {
	return func(d *Detector) {
		d.hint = f
	}
}

// WithEmptyFieldsPolicy sets how an empty field set is handled.
func WithEmptyFieldsPolicy(p EmptyFieldsPolicy) Option {
	return func(d *Detector) {
		d.emptyFields = p
	}
}

// Detector resolves the format of an opaque byte slice by trying each
// registered codec in chain order and accepting the first whose columns
// include every requested field.
//
// A Detector holds no mutable state and is safe for concurrent use.
type Detector struct {
	hint        Format
	emptyFields EmptyFieldsPolicy
}

// NewDetector creates a Detector over the registered codecs.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode detects the format of data and decodes it.
//
// Text codecs are only tried when data is valid UTF-8. If data is not, the
// result is ErrEncoding when no earlier candidate parsed, and a
// CandidateError (ErrUnrecognizedFormat) when one parsed but lacked fields.
func (d *Detector) Decode(data []byte, fields FieldSet) (*Table, Format, error) {
	if fields.Len() == 0 && d.emptyFields == EmptyFieldsReject {
		return nil, "", ErrNoFields
	}

	candidates, err := d.candidates()
	if err != nil {
		return nil, "", err
	}

	var (
		rejections []Rejection
		parsed     bool
		textOK     *bool
	)
	for _, c := range candidates {
		if isText(c) {
			if textOK == nil {
				ok := utf8.Valid(data)
				textOK = &ok
			}
			if !*textOK {
				if !parsed {
					return nil, "", fmt.Errorf("%w (invalid byte at offset %d)", ErrEncoding, invalidUTF8Offset(data))
				}
				rejections = append(rejections, Rejection{Format: c.Format(), Err: ErrEncoding})
				break
			}
		}

		t, err := c.Decode(data)
		if err != nil {
			rejections = append(rejections, Rejection{Format: c.Format(), Err: err})
			continue
		}
		parsed = true

		if missing := fields.Missing(t.ColumnNames()); len(missing) > 0 {
			rejections = append(rejections, Rejection{
				Format: c.Format(),
				Err:    &FieldError{Missing: missing, Columns: t.ColumnNames()},
			})
			continue
		}
		return t, c.Format(), nil
	}

	return nil, "", &CandidateError{Fields: fields.Names(), Rejections: rejections}
}

func (d *Detector) candidates() ([]Codec, error) {
	if d.hint == "" {
		return Codecs(), nil
	}
	if c, ok := Lookup(d.hint); ok {
		return []Codec{c}, nil
	}
	return nil, fmt.Errorf("%w: no codec for format %q", ErrUnrecognizedFormat, d.hint)
}

func invalidUTF8Offset(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(data)
}

var defaultDetector = NewDetector()

// Decode detects and decodes data with the default chain: columnar, then
// CSV, then JSON.
func Decode(data []byte, fields FieldSet) (*Table, Format, error) {
	return defaultDetector.Decode(data, fields)
}
