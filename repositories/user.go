//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"care-chat/domain"
	"care-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IUserRepository interface {
	CreateUser(user domain.User, passwordHash string) (string, error)
	GetUser(id string) (domain.User, error)
	GetUserByEmail(email string) (User, error)
	BondPatient(doctorID, patientID string) error
	Patients(doctorID string) ([]domain.User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the stored representation, including the password hash that the
// domain entity never carries.
type User struct {
	ID             string    `json:"id"`
	FullName       string    `json:"fullname"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"passwordHash"`
	Role           string    `json:"role"`
	DoctorID       string    `json:"doctorId,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	Experience     int       `json:"experience,omitempty"`
	PatientIDs     []string  `json:"patientIds,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (u User) ToDomain() domain.User {
	return domain.User{
		ID:             u.ID,
		FullName:       u.FullName,
		Email:          u.Email,
		Role:           domain.Role(u.Role),
		DoctorID:       u.DoctorID,
		Specialization: u.Specialization,
		Experience:     u.Experience,
		PatientIDs:     u.PatientIDs,
		CreatedAt:      u.CreatedAt,
	}
}

func userKey(id string) []byte     { return []byte("user:" + id) }
func emailKey(email string) []byte { return []byte("user:email:" + email) }

// CreateUser persists a new account. Two keys are written in one transaction:
// the record itself and the email lookup used by login.
func (u *UserRepository) CreateUser(user domain.User, passwordHash string) (string, error) {
	newID := uuid.NewString()
	stored := User{
		ID:             newID,
		FullName:       user.FullName,
		Email:          user.Email,
		PasswordHash:   passwordHash,
		Role:           user.Role.String(),
		Specialization: user.Specialization,
		Experience:     user.Experience,
		CreatedAt:      time.Now().UTC(),
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(user.Email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey(user.Email), []byte(newID)); err != nil {
			return err
		}
		return txn.Set(userKey(newID), data)
	})

	return newID, err
}

func (u *UserRepository) GetUser(id string) (domain.User, error) {
	stored, err := u.getStored(id)
	if err != nil {
		return domain.User{}, err
	}
	return stored.ToDomain(), nil
}

// GetUserByEmail resolves the email index and returns the stored record,
// hash included, for credential checks.
func (u *UserRepository) GetUserByEmail(email string) (User, error) {
	var id string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return errors.ErrUserNotFound
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return User{}, err
	}
	return u.getStored(id)
}

// BondPatient associates a doctor and a patient. Both sides of the bond are
// updated in a single transaction so the bidirectional invariant cannot be
// observed half-applied. Re-bonding the same pair is a no-op; bonding a
// patient who already has a different doctor is rejected.
func (u *UserRepository) BondPatient(doctorID, patientID string) error {
	return u.db.Update(func(txn *badger.Txn) error {
		doctor, err := getStoredTxn(txn, doctorID)
		if err != nil {
			return err
		}
		patient, err := getStoredTxn(txn, patientID)
		if err != nil {
			return err
		}
		if doctor.Role != domain.RoleDoctor.String() || patient.Role != domain.RolePatient.String() {
			return errors.ErrSameRole
		}

		if patient.DoctorID == doctorID && lo.Contains(doctor.PatientIDs, patientID) {
			return nil
		}
		if patient.DoctorID != "" && patient.DoctorID != doctorID {
			return errors.ErrAlreadyBonded
		}

		patient.DoctorID = doctorID
		if !lo.Contains(doctor.PatientIDs, patientID) {
			doctor.PatientIDs = append(doctor.PatientIDs, patientID)
		}

		if err := setStoredTxn(txn, doctor); err != nil {
			return err
		}
		return setStoredTxn(txn, patient)
	})
}

func (u *UserRepository) Patients(doctorID string) ([]domain.User, error) {
	doctor, err := u.getStored(doctorID)
	if err != nil {
		return nil, err
	}

	patients := make([]domain.User, 0, len(doctor.PatientIDs))
	for _, id := range doctor.PatientIDs {
		patient, err := u.GetUser(id)
		if err != nil {
			return nil, err
		}
		patients = append(patients, patient)
	}
	return patients, nil
}

func (u *UserRepository) getStored(id string) (User, error) {
	var stored User
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		stored, err = getStoredTxn(txn, id)
		return err
	})
	return stored, err
}

func getStoredTxn(txn *badger.Txn, id string) (User, error) {
	item, err := txn.Get(userKey(id))
	if err != nil {
		return User{}, errors.ErrUserNotFound
	}
	var stored User
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &stored)
	})
	return stored, err
}

func setStoredTxn(txn *badger.Txn, stored User) error {
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return txn.Set(userKey(stored.ID), data)
}
