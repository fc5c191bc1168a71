package core

import "errors"

// Encode serializes t in format f.
func Encode(t *Table, f Format) ([]byte, error) {
	if t == nil {
		return nil, serializationError(f, errors.New("nil table"))
	}
	c, ok := Lookup(f)
	if !ok {
		return nil, serializationError(f, errors.New("no codec registered"))
	}
	return c.Encode(t)
}
