package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSONB stores arbitrary JSON; the column type follows the dialect.
type JSONB []byte

func NewJSONB(v any) JSONB {
	b, err := json.Marshal(v)
	if err != nil {
		return JSONB("{}")
	}
	return JSONB(b)
}

func (JSONB) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "jsonb"
	case "mysql":
		return "json"
	default:
		return "text"
	}
}

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	return string(j), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = JSONB("{}")
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append(JSONB(nil), v...)
		return nil
	case string:
		*j = JSONB([]byte(v))
		return nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("jsonb scan: %w", err)
		}
		*j = JSONB(b)
		return nil
	}
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("{}"), nil
	}
	return []byte(j), nil
}

func (j *JSONB) UnmarshalJSON(b []byte) error {
	*j = append(JSONB(nil), b...)
	return nil
}
