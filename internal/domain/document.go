package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Document is an opaque JSON document stored as text exactly as submitted.
// The store never re-encodes it, so bytes round-trip unchanged.
type Document []byte

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: the raw JSON text, or nil for an empty document.
//   - error: always nil.
func (d Document) Value() (driver.Value, error) {
	if len(d) == 0 {
		return nil, nil
	}
	return string(d), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if the type is unexpected.
func (d *Document) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = nil
	case []byte:
		// drivers may reuse the buffer
		*d = append(Document(nil), v...)
	case string:
		*d = Document(v)
	default:
		return errors.New("failed to scan Document")
	}
	return nil
}

// MarshalJSON emits the stored bytes verbatim.
func (d Document) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

// UnmarshalJSON keeps a copy of the raw bytes.
func (d *Document) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = nil
		return nil
	}
	*d = append(Document(nil), data...)
	return nil
}

// IsEmpty reports whether the document is absent, null, or an empty object/array.
func (d Document) IsEmpty() bool {
	trimmed := bytes.TrimSpace(d)
	switch string(trimmed) {
	case "", "null", "{}", "[]":
		return true
	}
	return false
}

// IsObject reports whether the document is a well-formed JSON object.
func (d Document) IsObject() bool {
	trimmed := bytes.TrimSpace(d)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	raw, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		raw = []byte(str)
	}
	return json.Unmarshal(raw, a)
}

// Contains reports whether s is in the array.
func (a StringArray) Contains(s string) bool {
	for _, v := range a {
		if v == s {
			return true
		}
	}
	return false
}
