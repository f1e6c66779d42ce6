package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Document is an open key-value JSON document stored in a single column.
// The engine round-trips it without interpreting the contents.
type Document map[string]any

// Value implements driver.Valuer, serializing the document to JSON.
// A nil document is stored as SQL NULL.
func (d Document) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil //nolint:nilnil // SQL NULL for empty documents
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner, deserializing JSON from the database.
func (d *Document) Scan(value any) error {
	if value == nil {
		*d = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("cannot scan %T into Document", value)
	}
}

// Clone returns a shallow copy of the document. Nested values are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// TransitionList stores the transition audit trail as a JSON column.
type TransitionList []Transition

// Value implements driver.Valuer.
func (l TransitionList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil //nolint:nilnil // SQL NULL for empty trails
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *TransitionList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("cannot scan non-string value into TransitionList")
	}
}
