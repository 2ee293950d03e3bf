package echoapi

import (
	"context"

	"github.com/hmjahid/school-management-system-sub002/core/notification"
	"github.com/hmjahid/school-management-system-sub002/core/user"
)

// NewNotificationGate returns the API's authorization policy:
// admins may do anything, teachers may schedule notifications and manage
// the ones they created, everyone else is denied.
func NewNotificationGate() notification.Gate {
	return notification.GateFunc(func(ctx context.Context, actor user.User, action string, n *notification.Notification) error {
		if actor.IsAdmin() {
			return nil
		}
		if !actor.IsTeacher() {
			return notification.ErrPermissionDenied
		}

		switch action {
		case notification.ActionCreate:
			return nil
		case notification.ActionView, notification.ActionUpdate, notification.ActionCancel:
			if n == nil || n.CreatedBy == actor.ID {
				return nil
			}
		}
		return notification.ErrPermissionDenied
	})
}
