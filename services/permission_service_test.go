package services

import (
	"testing"

	"care-chat/domain"
	"care-chat/errors"
	"care-chat/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func Test_CanChat(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewPermissionService(mockRepo)

	doctor := domain.User{ID: "d1", Role: domain.RoleDoctor, PatientIDs: []string{"p1"}}
	bonded := domain.User{ID: "p1", Role: domain.RolePatient, DoctorID: "d1"}
	stranger := domain.User{ID: "p2", Role: domain.RolePatient}
	colleague := domain.User{ID: "d2", Role: domain.RoleDoctor}

	users := map[string]domain.User{"d1": doctor, "p1": bonded, "p2": stranger, "d2": colleague}
	mockRepo.EXPECT().GetUser(gomock.Any()).DoAndReturn(func(id string) (domain.User, error) {
		user, ok := users[id]
		if !ok {
			return domain.User{}, errors.ErrUserNotFound
		}
		return user, nil
	}).AnyTimes()

	t.Run("should allow a bonded pair in both argument orders", func(t *testing.T) {
		req := require.New(t)
		req.NoError(svc.CanChat("d1", "p1"))
		req.NoError(svc.CanChat("p1", "d1"))
	})

	t.Run("should deny a same role pair", func(t *testing.T) {
		req := require.New(t)
		req.ErrorIs(svc.CanChat("d1", "d2"), errors.ErrSameRole)
		req.ErrorIs(svc.CanChat("p1", "p2"), errors.ErrSameRole)
	})

	t.Run("should deny an unbonded doctor patient pair", func(t *testing.T) {
		req := require.New(t)
		req.ErrorIs(svc.CanChat("d1", "p2"), errors.ErrNotBonded)
		req.ErrorIs(svc.CanChat("p2", "d1"), errors.ErrNotBonded)
	})

	t.Run("should deny when either user is missing", func(t *testing.T) {
		req := require.New(t)
		req.ErrorIs(svc.CanChat("ghost", "p1"), errors.ErrUserNotFound)
		req.ErrorIs(svc.CanChat("d1", "ghost"), errors.ErrUserNotFound)
	})
}
