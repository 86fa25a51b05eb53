package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")

	// Authorization rule denials. Fail closed: anything that is not an
	// explicitly bonded doctor/patient pair is denied.
	ErrSameRole  = fmt.Errorf("patients can only chat with doctors and vice versa")
	ErrNotBonded = fmt.Errorf("doctor and patient are not associated")

	ErrValidation    = fmt.Errorf("validation failed")
	ErrAlreadyBonded = fmt.Errorf("patient is already bonded to another doctor")
	ErrChannelFull   = fmt.Errorf("delivery channel full")
	ErrPersistence   = fmt.Errorf("persistence failure")
)

// HTTPStatus maps a domain error to the status code surfaced on the
// request/response transport. Unknown errors are treated as persistence-level
// failures and reported generically.
func HTTPStatus(err error) int {
	switch {
	case stderrors.Is(err, ErrInvalidToken), stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrSameRole), stderrors.Is(err, ErrNotBonded):
		return http.StatusForbidden
	case stderrors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrUserAlreadyExists), stderrors.Is(err, ErrAlreadyBonded):
		return http.StatusConflict
	case stderrors.Is(err, ErrValidation), stderrors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
