//go:generate go run go.uber.org/mock/mockgen -source=permission_service.go -destination=../mocks/mock_permission_service.go -package=mocks
package services

import (
	"care-chat/domain"
	"care-chat/errors"
	"care-chat/repositories"
)

// IPermissionService is the single authorization rule of the chat subsystem.
// Every inbound chat operation calls CanChat before touching the message
// store or the presence registry.
type IPermissionService interface {
	CanChat(userAID, userBID string) error
}

type PermissionService struct {
	userRepository repositories.IUserRepository
}

func NewPermissionService(userRepository repositories.IUserRepository) IPermissionService {
	return &PermissionService{userRepository: userRepository}
}

// CanChat returns nil only for an explicitly bonded doctor/patient pair.
// The check is symmetric in its arguments and fails closed: a missing user,
// a same-role pair or an unbonded pair are all denials. Side-effect free.
func (s *PermissionService) CanChat(userAID, userBID string) error {
	userA, err := s.userRepository.GetUser(userAID)
	if err != nil {
		return errors.ErrUserNotFound
	}
	userB, err := s.userRepository.GetUser(userBID)
	if err != nil {
		return errors.ErrUserNotFound
	}

	if userA.Role == userB.Role {
		return errors.ErrSameRole
	}

	doctor, patient := userA, userB
	if userA.Role == domain.RolePatient {
		doctor, patient = userB, userA
	}

	if !domain.Bonded(doctor, patient) {
		return errors.ErrNotBonded
	}
	return nil
}
