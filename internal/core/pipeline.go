package core

import "time"

// Process decodes data, masks the requested fields and re-encodes the
// result in the detected format. Any stage failing aborts the whole call;
// there is no partial output.
func Process(data []byte, fields FieldSet, opts ...Option) (*Result, error) {
	start := time.Now()

	t, format, err := NewDetector(opts...).Decode(data, fields)
	if err != nil {
		return nil, err
	}

	masked, err := Obfuscate(t, fields)
	if err != nil {
		return nil, err
	}

	payload, err := Encode(masked, format)
	if err != nil {
		return nil, err
	}

	return &Result{
		Payload: payload,
		Format:  format,
		Rows:    masked.NumRows(),
		Columns: masked.ColumnNames(),
		Masked:  fields.Names(),
		Elapsed: time.Since(start),
	}, nil
}
