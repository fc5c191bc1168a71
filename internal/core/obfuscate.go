package core

import "errors"

// Sentinel replaces every cell of an obfuscated column.
const Sentinel = "***"

// Obfuscate returns a deep copy of t with every cell of the named columns
// replaced by Sentinel, nulls included. t is never modified.
//
// Masked columns decoded from the columnar format become string columns.
func Obfuscate(t *Table, fields FieldSet) (*Table, error) {
	if t == nil {
		return nil, errors.New("obfuscate: nil table")
	}
	if missing := fields.Missing(t.ColumnNames()); len(missing) > 0 {
		return nil, &FieldError{Missing: missing, Columns: t.ColumnNames()}
	}

	out := t.Clone()
	for _, col := range out.columns {
		if !fields.Contains(col.Name) {
			continue
		}
		for i := range col.Values {
			col.Values[i] = Sentinel
		}
		if col.Type != TypeText {
			col.Type = TypeString
		}
		col.arrowType = nil
	}
	return out, nil
}
