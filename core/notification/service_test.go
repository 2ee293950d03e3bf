package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/hmjahid/school-management-system-sub002/core/notification"
	"github.com/hmjahid/school-management-system-sub002/core/user"
	dummydb "github.com/hmjahid/school-management-system-sub002/storage/database/dummy"
	testutil "github.com/hmjahid/school-management-system-sub002/tests"
)

func newServiceFixture(t *testing.T) (*notification.Service, notification.Repository) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewNotificationRepository(db)
	return notification.NewService(repo, notification.AllowAll), repo
}

func validNewNotification(anchor time.Time) notification.NewNotification {
	return notification.NewNotification{
		Name:       "Term Fees Due",
		Type:       "fee_reminder",
		Channels:   []string{notification.ChannelMail},
		Recipients: []notification.Recipient{{Kind: notification.RecipientRole, Role: user.RoleGuardian}},
		Payload:    map[string]string{"body": "fees are due"},
		Schedule:   notification.Schedule{Kind: notification.ScheduleOnce, Anchor: anchor},
	}
}

func TestService_Create(t *testing.T) {
	svc, _ := newServiceFixture(t)
	ctx := context.Background()
	actor := user.User{ID: "creator-id", Roles: user.AllRoles}
	anchor := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)

	n, err := svc.Create(ctx, actor, validNewNotification(anchor))
	if err != nil {
		t.Fatalf("Create() unexpected error = %v", err)
	}
	if n.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if n.Status != notification.StatusPending {
		t.Errorf("Create() status = %s, want %s", n.Status, notification.StatusPending)
	}
	if !n.NextOccurrenceAt.Equal(anchor) {
		t.Errorf("Create() next occurrence = %v, want %v", n.NextOccurrenceAt, anchor)
	}
	if n.OccurrenceCount != 0 {
		t.Errorf("Create() occurrence count = %d, want 0", n.OccurrenceCount)
	}
	if n.CreatedBy != actor.ID {
		t.Errorf("Create() createdBy = %s, want %s", n.CreatedBy, actor.ID)
	}
}

func TestService_Create_invalid(t *testing.T) {
	svc, _ := newServiceFixture(t)
	ctx := context.Background()
	actor := user.User{Roles: user.AllRoles}
	future := time.Now().UTC().Add(time.Hour)

	tests := []struct {
		name   string
		mutate func(*notification.NewNotification)
	}{
		{name: "missing name", mutate: func(nn *notification.NewNotification) { nn.Name = "" }},
		{name: "no channels", mutate: func(nn *notification.NewNotification) { nn.Channels = nil }},
		{name: "unknown channel", mutate: func(nn *notification.NewNotification) { nn.Channels = []string{"pigeon"} }},
		{name: "no recipients", mutate: func(nn *notification.NewNotification) { nn.Recipients = nil }},
		{name: "bad recipient kind", mutate: func(nn *notification.NewNotification) {
			nn.Recipients = []notification.Recipient{{Kind: "cohort"}}
		}},
		{name: "user recipient without reference", mutate: func(nn *notification.NewNotification) {
			nn.Recipients = []notification.Recipient{{Kind: notification.RecipientUser}}
		}},
		{name: "bad schedule kind", mutate: func(nn *notification.NewNotification) { nn.Schedule.Kind = "hourly" }},
		{name: "custom schedule without interval", mutate: func(nn *notification.NewNotification) {
			nn.Schedule = notification.Schedule{Kind: notification.ScheduleCustom, Anchor: future, Unit: notification.UnitDay}
		}},
		{name: "custom schedule without unit", mutate: func(nn *notification.NewNotification) {
			nn.Schedule = notification.Schedule{Kind: notification.ScheduleCustom, Anchor: future, Interval: 2}
		}},
		{name: "end date before anchor", mutate: func(nn *notification.NewNotification) {
			nn.Schedule = notification.Schedule{
				Kind: notification.ScheduleDaily, Anchor: future,
				End: notification.EndCondition{Kind: notification.EndOnDate, Date: future.Add(-48 * time.Hour)},
			}
		}},
		{name: "zero occurrence bound", mutate: func(nn *notification.NewNotification) {
			nn.Schedule = notification.Schedule{
				Kind: notification.ScheduleDaily, Anchor: future,
				End: notification.EndCondition{Kind: notification.EndAfterOccurrences},
			}
		}},
		{name: "once anchored in the past", mutate: func(nn *notification.NewNotification) {
			nn.Schedule = notification.Schedule{Kind: notification.ScheduleOnce, Anchor: future.Add(-2 * time.Hour)}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nn := validNewNotification(future)
			tt.mutate(&nn)
			if _, err := svc.Create(ctx, actor, nn); err == nil {
				t.Error("Create() expected a validation error, got nil")
			}
		})
	}
}

func TestService_Update(t *testing.T) {
	svc, repo := newServiceFixture(t)
	ctx := context.Background()
	actor := user.User{ID: "creator-id", Roles: user.AllRoles}
	anchor := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)

	n, err := svc.Create(ctx, actor, validNewNotification(anchor))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	newAnchor := anchor.Add(48 * time.Hour)
	updated, err := svc.Update(ctx, actor, n.ID, notification.UpdateNotification{
		Name:     "Term Fees Overdue",
		Schedule: &notification.Schedule{Kind: notification.ScheduleOnce, Anchor: newAnchor},
	})
	if err != nil {
		t.Fatalf("Update() unexpected error = %v", err)
	}
	if updated.Name != "Term Fees Overdue" {
		t.Errorf("Update() name = %s, want Term Fees Overdue", updated.Name)
	}
	if !updated.NextOccurrenceAt.Equal(newAnchor) {
		t.Errorf("Update() next occurrence = %v, want %v", updated.NextOccurrenceAt, newAnchor)
	}
	// untouched fields carried over
	if len(updated.Channels) != 1 || updated.Channels[0] != notification.ChannelMail {
		t.Errorf("Update() channels = %v, want unchanged [mail]", updated.Channels)
	}

	// updating a claimed record loses the race
	if _, err = repo.ClaimDueNotifications(ctx, newAnchor); err != nil {
		t.Fatalf("ClaimDueNotifications() failed: %v", err)
	}
	_, err = svc.Update(ctx, actor, n.ID, notification.UpdateNotification{Name: "too late"})
	if err != notification.ErrNotPending {
		t.Errorf("Update() error = %v, wantErr %v", err, notification.ErrNotPending)
	}
}

func TestService_Cancel(t *testing.T) {
	svc, repo := newServiceFixture(t)
	ctx := context.Background()
	actor := user.User{ID: "creator-id", Roles: user.AllRoles}
	anchor := time.Now().UTC().Add(24 * time.Hour)

	n, err := svc.Create(ctx, actor, validNewNotification(anchor))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, actor, n.ID)
	if err != nil {
		t.Fatalf("Cancel() unexpected error = %v", err)
	}
	if cancelled.Status != notification.StatusCancelled {
		t.Errorf("Cancel() status = %s, want %s", cancelled.Status, notification.StatusCancelled)
	}
	if !cancelled.NextOccurrenceAt.IsZero() {
		t.Errorf("Cancel() next occurrence = %v, want zero", cancelled.NextOccurrenceAt)
	}
	if cancelled.CancelledAt.IsZero() {
		t.Error("Cancel() did not set the cancellation time")
	}

	// cancelling again is rejected, record unchanged
	if _, err = svc.Cancel(ctx, actor, n.ID); err != notification.ErrNotCancellable {
		t.Errorf("Cancel() error = %v, wantErr %v", err, notification.ErrNotCancellable)
	}

	// cancelling a record that already went out is rejected, record unchanged
	sent := testutil.CreateNotification(t, repo, "Sent", []string{notification.ChannelMail},
		[]notification.Recipient{{Kind: notification.RecipientEveryone}},
		testutil.Once(anchor), anchor)
	claimed, err := repo.ClaimDueNotifications(ctx, anchor)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimDueNotifications() = %v, %v; want 1 claim", claimed, err)
	}
	fired := claimed[0]
	fired.Status = notification.StatusSent
	fired.OccurrenceCount = 1
	fired.SentAt = anchor
	fired.NextOccurrenceAt = time.Time{}
	if _, err = repo.AdvanceClaimedNotification(ctx, fired); err != nil {
		t.Fatalf("AdvanceClaimedNotification() failed: %v", err)
	}

	if _, err = svc.Cancel(ctx, actor, sent.ID); err != notification.ErrNotCancellable {
		t.Errorf("Cancel() on sent record error = %v, wantErr %v", err, notification.ErrNotCancellable)
	}
	refetched, err := repo.GetNotification(ctx, sent.ID)
	if err != nil {
		t.Fatalf("GetNotification() failed: %v", err)
	}
	if refetched.Status != notification.StatusSent || refetched.OccurrenceCount != 1 {
		t.Errorf("record changed by rejected cancel: %+v", refetched)
	}
}

func TestService_Cancel_notFound(t *testing.T) {
	svc, _ := newServiceFixture(t)
	actor := user.User{Roles: user.AllRoles}

	if _, err := svc.Cancel(context.Background(), actor, "missing-id"); err != notification.ErrNotFound {
		t.Errorf("Cancel() error = %v, wantErr %v", err, notification.ErrNotFound)
	}
}

func TestService_gateDenies(t *testing.T) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewNotificationRepository(db)
	deny := notification.GateFunc(func(context.Context, user.User, string, *notification.Notification) error {
		return notification.ErrPermissionDenied
	})
	svc := notification.NewService(repo, deny)
	actor := user.User{ID: "nobody"}
	anchor := time.Now().UTC().Add(time.Hour)

	if _, err := svc.Create(context.Background(), actor, validNewNotification(anchor)); err != notification.ErrPermissionDenied {
		t.Errorf("Create() error = %v, wantErr %v", err, notification.ErrPermissionDenied)
	}

	n := testutil.CreateNotification(t, repo, "N", []string{notification.ChannelMail},
		[]notification.Recipient{{Kind: notification.RecipientEveryone}},
		testutil.Once(anchor), anchor)
	if _, err := svc.Cancel(context.Background(), actor, n.ID); err != notification.ErrPermissionDenied {
		t.Errorf("Cancel() error = %v, wantErr %v", err, notification.ErrPermissionDenied)
	}
	if _, err := svc.Get(context.Background(), actor, n.ID); err != notification.ErrPermissionDenied {
		t.Errorf("Get() error = %v, wantErr %v", err, notification.ErrPermissionDenied)
	}
}

func TestService_Delete(t *testing.T) {
	svc, repo := newServiceFixture(t)
	ctx := context.Background()
	actor := user.User{Roles: user.AllRoles}
	anchor := time.Now().UTC().Add(time.Hour)

	pending := testutil.CreateNotification(t, repo, "Pending", []string{notification.ChannelMail},
		[]notification.Recipient{{Kind: notification.RecipientEveryone}},
		testutil.Once(anchor), anchor)

	if _, err := svc.Delete(ctx, actor, pending.ID); err != notification.ErrStillActive {
		t.Errorf("Delete() on pending error = %v, wantErr %v", err, notification.ErrStillActive)
	}

	if _, err := svc.Cancel(ctx, actor, pending.ID); err != nil {
		t.Fatalf("Cancel() failed: %v", err)
	}
	deleted, err := svc.Delete(ctx, actor, pending.ID)
	if err != nil {
		t.Fatalf("Delete() unexpected error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Delete() = %d, want 1", deleted)
	}
	if _, err = repo.GetNotification(ctx, pending.ID); err != notification.ErrNotFound {
		t.Errorf("GetNotification() after delete error = %v, wantErr %v", err, notification.ErrNotFound)
	}
}

func TestService_Stats(t *testing.T) {
	svc, repo := newServiceFixture(t)
	ctx := context.Background()
	actor := user.User{Roles: user.AllRoles}
	anchor := time.Now().UTC().Add(time.Hour)

	for i := 0; i < 3; i++ {
		testutil.CreateNotification(t, repo, "P", []string{notification.ChannelMail},
			[]notification.Recipient{{Kind: notification.RecipientEveryone}},
			testutil.Once(anchor), anchor)
	}
	n := testutil.CreateNotification(t, repo, "C", []string{notification.ChannelMail},
		[]notification.Recipient{{Kind: notification.RecipientEveryone}},
		testutil.Once(anchor), anchor)
	if _, err := svc.Cancel(ctx, actor, n.ID); err != nil {
		t.Fatalf("Cancel() failed: %v", err)
	}

	stats, err := svc.Stats(ctx, actor)
	if err != nil {
		t.Fatalf("Stats() unexpected error = %v", err)
	}
	if stats[notification.StatusPending] != 3 {
		t.Errorf("Stats() pending = %d, want 3", stats[notification.StatusPending])
	}
	if stats[notification.StatusCancelled] != 1 {
		t.Errorf("Stats() cancelled = %d, want 1", stats[notification.StatusCancelled])
	}
}
