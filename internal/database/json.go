package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JsonColumn is a generic container which allows JSON/JSONB columns to be
// scanned to (and valued from) an arbitrary Go type. Stores use this as
// part of their *internal* row models to hide the JSON encoding from their
// public API.
type JsonColumn[T any] struct {
	val *T
}

func NewJsonColumn[T any](val T) JsonColumn[T] {
	return JsonColumn[T]{val: &val}
}

func (col *JsonColumn[T]) Scan(src any) error {
	if src == nil {
		col.val = nil
		return nil
	}

	var bytes []byte
	switch v := src.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T in to JsonColumn", src)
	}

	var out T
	if err := json.Unmarshal(bytes, &out); err != nil {
		return err
	}

	col.val = &out
	return nil
}

func (col JsonColumn[T]) Value() (driver.Value, error) {
	if col.val == nil {
		return nil, nil
	}

	return json.Marshal(*col.val)
}

// Get returns the decoded value, or the zero value of T if the column
// was NULL (or never scanned).
func (col *JsonColumn[T]) Get() T {
	if col.val == nil {
		var zero T
		return zero
	}

	return *col.val
}

func (col JsonColumn[T]) MarshalJSON() ([]byte, error) {
	if col.val == nil {
		return []byte("null"), nil
	}

	return json.Marshal(*col.val)
}

func (col *JsonColumn[T]) UnmarshalJSON(data []byte) error {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}

	col.val = &out
	return nil
}
