package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSONMap stores Process.Args: a semi-structured bag of business arguments
// (backup id, schedule id, restore target, identifier lists, ...) as a JSON
// text column. Grounded on the teacher's EncryptedString Valuer/Scanner
// pattern (db/encrypt.go), minus the encryption — Args carries no secrets.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("jsonmap: marshal: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("jsonmap: unsupported scan type")
	}

	if len(raw) == 0 {
		*m = JSONMap{}
		return nil
	}

	out := JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("jsonmap: unmarshal: %w", err)
	}
	*m = out
	return nil
}

// String returns the string value at key, or "" if absent or not a string.
func (m JSONMap) String(key string) string {
	v, ok := m[key].(string)
	if !ok {
		return ""
	}
	return v
}

// StringSlice returns the []string value at key, tolerating the
// []any-of-strings shape json.Unmarshal produces.
func (m JSONMap) StringSlice(key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
