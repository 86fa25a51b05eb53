package auth

import (
	"testing"
	"time"

	"care-chat/domain"
	"care-chat/errors"

	"github.com/stretchr/testify/require"
)

func Test_Token_Roundtrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("test-secret", time.Hour)

	token, err := tokens.Generate("user-123", domain.RoleDoctor)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := tokens.Validate(token)
	req.NoError(err)
	req.Equal("user-123", claims.UserID)
	req.Equal(domain.RoleDoctor.String(), claims.Role)
}

func Test_Token_Validation_Failures(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("test-secret", time.Hour)

	_, err := tokens.Validate("not-a-token")
	req.ErrorIs(err, errors.ErrInvalidToken)

	// Signed with a different secret.
	other := NewTokenManager("other-secret", time.Hour)
	foreign, err := other.Generate("user-123", domain.RolePatient)
	req.NoError(err)
	_, err = tokens.Validate(foreign)
	req.ErrorIs(err, errors.ErrInvalidToken)

	// Already expired.
	expired := NewTokenManager("test-secret", -time.Minute)
	stale, err := expired.Generate("user-123", domain.RolePatient)
	req.NoError(err)
	_, err = tokens.Validate(stale)
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func Test_Password_Hash_And_Compare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("ComplexPass123!")
	req.NoError(err)
	req.NotContains(hash, "ComplexPass123!")

	match, err := ComparePassword("ComplexPass123!", hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPass123!", hash)
	req.NoError(err)
	req.False(match)

	// Same password, different salt, different encoding.
	otherHash, err := HashPassword("ComplexPass123!")
	req.NoError(err)
	req.NotEqual(hash, otherHash)
}

func Test_ValidateRegister(t *testing.T) {
	valid := RegisterRequest{
		FullName: "Alice Martin",
		Email:    "alice@example.com",
		Password: "ComplexPass123!",
		Role:     "patient",
	}

	t.Run("should accept a valid patient payload", func(t *testing.T) {
		require.NoError(t, ValidateRegister(valid))
	})

	t.Run("should accept a doctor payload with specialization", func(t *testing.T) {
		doctor := valid
		doctor.Role = "doctor"
		doctor.Specialization = "cardiology"
		require.NoError(t, ValidateRegister(doctor))
	})

	t.Run("should reject a doctor payload without specialization", func(t *testing.T) {
		doctor := valid
		doctor.Role = "doctor"
		require.ErrorIs(t, ValidateRegister(doctor), errors.ErrValidation)
	})

	t.Run("should reject unknown roles", func(t *testing.T) {
		bad := valid
		bad.Role = "admin"
		require.ErrorIs(t, ValidateRegister(bad), errors.ErrValidation)
	})

	t.Run("should reject malformed emails", func(t *testing.T) {
		bad := valid
		bad.Email = "not-an-email"
		require.ErrorIs(t, ValidateRegister(bad), errors.ErrValidation)
	})

	t.Run("should reject short or simple passwords", func(t *testing.T) {
		bad := valid
		bad.Password = "Short1!"
		require.ErrorIs(t, ValidateRegister(bad), errors.ErrValidation)

		bad.Password = "alllowercasebutlong"
		require.ErrorIs(t, ValidateRegister(bad), errors.ErrInvalidPassword)
	})
}
