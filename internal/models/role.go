package models

import (
	"fmt"
	"strings"
)

// Role is a member's standing inside one organization.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleEditor Role = "EDITOR"
	RoleViewer Role = "VIEWER"
)

// ParseRole normalises a role name, rejecting anything outside ADMIN, EDITOR and VIEWER.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown membership role %q", value)
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }
