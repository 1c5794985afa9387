package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/models"
)

func TestCheck_TotalOrder(t *testing.T) {
	assert.NoError(t, Check(models.RoleUser, SendMessage))
	assert.Error(t, Check(models.RoleUser, Pin))
	assert.NoError(t, Check(models.RoleModerator, Pin))
	assert.NoError(t, Check(models.RoleModerator, SendMessage))
	assert.Error(t, Check(models.RoleModerator, Admin))
	assert.NoError(t, Check(models.RoleAdmin, Admin))
	assert.NoError(t, Check(models.RoleOwner, Admin))
	assert.NoError(t, Check(models.RoleOwner, Pin))
}

func TestCheck_GuestHasNoCapabilities(t *testing.T) {
	for _, c := range []Capability{SendMessage, JoinRoom, ViewRoomHistory} {
		err := Check(models.RoleGuest, c)
		assert.Error(t, err)
		assert.Equal(t, apperror.PermissionDenied, apperror.KindOf(err))
	}
}

func TestCheck_UnknownCapabilityDenied(t *testing.T) {
	err := Check(models.RoleOwner, Capability("nonexistent"))
	assert.Error(t, err)
}
