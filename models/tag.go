package models

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

type Tag []string

type Tags []Tag

// Scan scan value into Jsonb, implements sql.Scanner interface
func (t *Tags) Scan(v interface{}) error {
	var bytes []byte
	switch val := v.(type) {
	case []byte:
		bytes = val
	case string:
		bytes = []byte(val)
	case nil:
		*t = Tags{}
		return nil
	default:
		return errors.New(fmt.Sprint("failed to unmarshal Jsonb value:", v))
	}

	return json.Unmarshal(bytes, t)
}

// Value return json value, implements driver.Valuer interface
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}

	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	return string(b), nil
}
