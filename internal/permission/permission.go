// Package permission implements the role-based capability gate (C7): a
// fixed, build-time mapping from role to the set of actions it may perform.
package permission

import (
	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/models"
)

type Capability string

const (
	SendMessage           Capability = "send_message"
	SendDirectMessage     Capability = "send_direct_message"
	JoinRoom              Capability = "join_room"
	CreateRoom            Capability = "create_room"
	ViewRoomHistory       Capability = "view_room_history"
	ViewDirectMessageHistory Capability = "view_direct_message_history"
	Pin                   Capability = "pin"
	Delete                Capability = "delete"
	Moderate              Capability = "moderate"
	Admin                 Capability = "admin"
)

// capabilitySets maps each role to its full capability set. Roles above
// User only ever add capabilities, matching the total order Guest < User <
// Moderator < Admin < Owner — no capability is ever removed going up.
var capabilitySets = map[models.Role]map[Capability]struct{}{
	models.RoleGuest: {},
	models.RoleUser: {
		SendMessage:              {},
		SendDirectMessage:        {},
		JoinRoom:                 {},
		CreateRoom:               {},
		ViewRoomHistory:          {},
		ViewDirectMessageHistory: {},
	},
	models.RoleModerator: {
		SendMessage:              {},
		SendDirectMessage:        {},
		JoinRoom:                 {},
		CreateRoom:               {},
		ViewRoomHistory:          {},
		ViewDirectMessageHistory: {},
		Pin:                      {},
		Delete:                   {},
		Moderate:                 {},
	},
	models.RoleAdmin: {
		SendMessage:              {},
		SendDirectMessage:        {},
		JoinRoom:                 {},
		CreateRoom:               {},
		ViewRoomHistory:          {},
		ViewDirectMessageHistory: {},
		Pin:                      {},
		Delete:                   {},
		Moderate:                 {},
		Admin:                    {},
	},
}

func init() {
	// Owner holds every capability Admin holds (total order: nothing is
	// ever removed going up), so it is derived rather than hand-listed.
	owner := make(map[Capability]struct{}, len(capabilitySets[models.RoleAdmin]))
	for c := range capabilitySets[models.RoleAdmin] {
		owner[c] = struct{}{}
	}
	capabilitySets[models.RoleOwner] = owner
}

// Check reports whether role holds capability; it has no side effects.
func Check(role models.Role, capability Capability) error {
	if caps, ok := capabilitySets[role]; ok {
		if _, allowed := caps[capability]; allowed {
			return nil
		}
	}
	return apperror.New(apperror.PermissionDenied, string(role.String())+" lacks capability "+string(capability))
}
