package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSON stores an opaque key/value metadata bag in a jsonb column.
type JSON map[string]interface{}

// NewJSON copies a plain map into a JSON value. A nil map yields nil,
// which serializes as SQL NULL.
func NewJSON(m map[string]interface{}) JSON {
	if m == nil {
		return nil
	}
	out := make(JSON, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Value implements the driver.Valuer interface.
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface.
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("unsupported jsonb source type")
	}
	return json.Unmarshal(bytes, j)
}
