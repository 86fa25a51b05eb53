// Package domain contains core concepts of the care-chat system.
// This file defines the User entity and the doctor/patient bonding invariant.
package domain

import (
	"time"

	"github.com/samber/lo"
)

// User is referenced by the chat subsystem but owned by the account collaborator.
// A patient carries at most one bonded doctor; a doctor carries a set of bonded
// patients. Bonding is bidirectional and must be mutated as a unit.
type User struct {
	ID       string
	FullName string
	Email    string
	Role     Role

	// Patient side of the bond. Empty when unbonded or when Role is RoleDoctor.
	DoctorID string

	// Doctor profile and the doctor side of the bond.
	Specialization string
	Experience     int
	PatientIDs     []string

	CreatedAt time.Time
}

// Bonded reports whether doctor and patient are explicitly associated.
// The doctor's patient set is authoritative; the patient's back reference
// exists for cheap lookups and is kept consistent by the bonding mutator.
func Bonded(doctor, patient User) bool {
	if doctor.Role != RoleDoctor || patient.Role != RolePatient {
		return false
	}
	return lo.Contains(doctor.PatientIDs, patient.ID)
}
