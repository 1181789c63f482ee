package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// UserMetadata is the extensible bag attached to an account at sign-up.
// The profile is materialized from it once the email is confirmed.
type UserMetadata struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Year       string `json:"year,omitempty"`
	Bio        string `json:"bio,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (m UserMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *UserMetadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = UserMetadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
}
