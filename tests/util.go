package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/hmjahid/school-management-system-sub002/core/notification"
	"github.com/hmjahid/school-management-system-sub002/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Once returns a one-shot schedule anchored at the given time.
func Once(anchor time.Time) notification.Schedule {
	return notification.Schedule{Kind: notification.ScheduleOnce, Anchor: anchor.UTC()}
}

func CreateNotification(
	t *testing.T,
	repo notification.Repository,
	name string,
	channels []string,
	recipients []notification.Recipient,
	sched notification.Schedule,
	next time.Time,
) notification.Notification {
	t.Helper()

	now := time.Now().UTC()
	n := notification.Notification{
		Name:             name,
		Type:             "announcement",
		Channels:         channels,
		Recipients:       recipients,
		Payload:          map[string]string{"body": "hello"},
		Schedule:         sched,
		Status:           notification.StatusPending,
		NextOccurrenceAt: next.UTC(),
		CreatedBy:        "admin",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	n, err := repo.CreateNotification(context.Background(), n)
	if err != nil {
		t.Fatalf("CreateNotification() failed: %v", err)
	}
	return n
}
