// Package domain contains core concepts of the care-chat system.
// This file defines the closed set of user roles.
// Adding a role is a deliberate, compile-visible change everywhere roles are matched.
package domain

import "fmt"

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// ParseRole converts a raw string (token claim, request payload) into a Role.
// Unknown values are rejected rather than passed through.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePatient:
		return RolePatient, nil
	case RoleDoctor:
		return RoleDoctor, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	return string(r)
}
