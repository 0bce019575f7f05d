package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies whether an account belongs to a student or a teacher.
// The stored representation keeps the legacy integer codes.
type Role int

const (
	RoleStudent Role = 1
	RoleTeacher Role = 2
)

// ParseRole converts the wire representation into a Role.
func ParseRole(raw string) (Role, error) {
	switch raw {
	case "STUDENT":
		return RoleStudent, nil
	case "TEACHER":
		return RoleTeacher, nil
	}
	return 0, fmt.Errorf("unknown role %q", raw)
}

// Valid reports whether the role is one of the closed set.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "STUDENT"
	case RoleTeacher:
		return "TEACHER"
	}
	return fmt.Sprintf("ROLE(%d)", int(r))
}

// Value implements driver.Valuer storing the integer code.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role code %d", int(r))
	}
	return int64(r), nil
}

// Scan implements sql.Scanner reading the stored integer code.
func (r *Role) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*r = Role(v)
	case []byte:
		var parsed int
		if _, err := fmt.Sscanf(string(v), "%d", &parsed); err != nil {
			return fmt.Errorf("scan role: %w", err)
		}
		*r = Role(parsed)
	default:
		return fmt.Errorf("scan role: unsupported type %T", src)
	}
	if !r.Valid() {
		return fmt.Errorf("scan role: invalid code %d", int(*r))
	}
	return nil
}

// MarshalJSON renders the role as its string name.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the string name.
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	role, err := ParseRole(raw)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Account represents a registered person stored in the users table.
type Account struct {
	ID           string     `db:"id" json:"id"`
	Role         Role       `db:"user_type" json:"role"`
	FullName     string     `db:"full_name" json:"full_name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// AccountInfo is the public projection of an account used in listings.
type AccountInfo struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
