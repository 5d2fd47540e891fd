// Package models contains data structures for the chatroom's domain models.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is a moderation role. Roles form a strictly increasing hierarchy:
// RoleUser < RoleModerator < RoleAdmin < RoleGrandWizard.
type Role int

const (
	RoleUser Role = iota
	RoleModerator
	RoleAdmin
	RoleGrandWizard
)

var roleNames = map[Role]string{
	RoleUser:        "user",
	RoleModerator:   "moderator",
	RoleAdmin:       "admin",
	RoleGrandWizard: "GrandWizard",
}

// Roles lists every role from lowest to highest rank.
func Roles() []Role {
	return []Role{RoleUser, RoleModerator, RoleAdmin, RoleGrandWizard}
}

// Rank returns the role's position in the hierarchy.
func (r Role) Rank() int {
	if !r.Valid() {
		return int(RoleUser)
	}
	return int(r)
}

// AtLeast reports whether r meets or exceeds the required role by rank alone.
func (r Role) AtLeast(required Role) bool {
	return r.Rank() >= required.Rank()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return roleNames[RoleUser]
}

// ParseRole parses a persisted role name. Matching is case-insensitive so
// "grandwizard" and "GrandWizard" are the same role.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for role, name := range roleNames {
		if strings.EqualFold(name, s) {
			return role, nil
		}
	}
	return RoleUser, fmt.Errorf("unknown role %q", s)
}

// RoleFromString is ParseRole without the error: anything unrecognized
// is an ordinary user and is never elevated.
func RoleFromString(s string) Role {
	role, _ := ParseRole(s)
	return role
}

// GormDataType stores roles as their names rather than their ranks.
func (Role) GormDataType() string {
	return "varchar(16)"
}

// Value implements driver.Valuer so roles are stored by name.
func (r Role) Value() (driver.Value, error) {
	return r.String(), nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = RoleUser
	case string:
		*r = RoleFromString(v)
	case []byte:
		*r = RoleFromString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}
	return nil
}

// MarshalJSON renders the role by name.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON parses a role name.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
