package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hmjahid/school-management-system-sub002/core"
	"github.com/hmjahid/school-management-system-sub002/core/user"
)

// Actions checked against the authorization gate, once per operation.
const (
	ActionCreate = "notification:create"
	ActionUpdate = "notification:update"
	ActionCancel = "notification:cancel"
	ActionView   = "notification:view"
	ActionDelete = "notification:delete"
)

// ErrPermissionDenied is returned by a Gate rejecting an action.
var ErrPermissionDenied = errors.New("permission denied")

type (
	// Gate decides who may do what. Policy lives entirely outside this package;
	// every Service operation consults it exactly once with the acting user.
	Gate interface {
		Allow(ctx context.Context, actor user.User, action string, n *Notification) error
	}

	// GateFunc adapts a function to the Gate interface.
	GateFunc func(ctx context.Context, actor user.User, action string, n *Notification) error

	// Repository is the scheduled notification store. All state transitions are
	// conditional on the current status so that claim, cancel and update races
	// resolve to exactly one winner; no other in-place mutation exists.
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotification(ctx context.Context, id string) (Notification, error)
		// FilterNotifications applies AND operation on available QueryFilter fields.
		FilterNotifications(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Notification, error)
		// UpdatePendingNotification persists n only while its status is still
		// pending; returns ErrNotPending otherwise.
		UpdatePendingNotification(ctx context.Context, n Notification) (Notification, error)
		// CancelPendingNotification transitions pending -> cancelled; returns
		// ErrNotCancellable when the record is in any other status.
		CancelPendingNotification(ctx context.Context, id string, at time.Time) (Notification, error)
		// ClaimDueNotifications atomically transitions every pending record due
		// at now to processing and returns the claimed records.
		ClaimDueNotifications(ctx context.Context, now time.Time) ([]Notification, error)
		// ReleaseClaimedNotification re-arms a processing record to pending,
		// leaving occurrence state untouched, so the next tick retries it.
		ReleaseClaimedNotification(ctx context.Context, id string) error
		// ReleaseStaleClaims re-arms processing records claimed before deadline
		// (a previous run died mid-flight) and returns how many were released.
		ReleaseStaleClaims(ctx context.Context, deadline time.Time) (int, error)
		// AdvanceClaimedNotification persists the post-fire state of a record
		// only while its status is still processing; returns ErrNotClaimed otherwise.
		AdvanceClaimedNotification(ctx context.Context, n Notification) (Notification, error)
		// DeleteNotifications removes terminal records; returns ErrStillActive
		// if any id refers to a pending or processing record.
		DeleteNotifications(ctx context.Context, ids ...string) (int, error)
		CountNotificationsByStatus(ctx context.Context) (Stats, error)
	}

	Service struct {
		repo Repository
		gate Gate

		nowFunc func() time.Time // mockable
	}
)

func (f GateFunc) Allow(ctx context.Context, actor user.User, action string, n *Notification) error {
	return f(ctx, actor, action, n)
}

// AllowAll is the gate used by trusted internal callers (admin CLI, tests).
var AllowAll = GateFunc(func(context.Context, user.User, string, *Notification) error { return nil })

func NewService(repo Repository, gate Gate) *Service {
	return &Service{repo: repo, gate: gate, nowFunc: time.Now}
}

// Create validates and persists a new pending notification with its first
// occurrence computed from the schedule's anchor.
func (svc *Service) Create(ctx context.Context, actor user.User, nn NewNotification) (Notification, error) {
	if err := svc.gate.Allow(ctx, actor, ActionCreate, nil); err != nil {
		return Notification{}, err
	}
	if err := nn.Validate(); err != nil {
		return Notification{}, err
	}

	now := svc.nowFunc().UTC()
	next, err := nn.Schedule.NextOccurrence(0, now)
	if err == ErrScheduleExhausted {
		return Notification{}, core.NewValidationError(err, core.FieldError{
			Field: "schedule", Error: "schedule has no upcoming occurrence",
		})
	} else if err != nil {
		return Notification{}, errors.Wrap(err, "computing first occurrence")
	}

	n := Notification{
		Name:             nn.Name,
		Type:             nn.Type,
		Channels:         nn.Channels,
		Recipients:       nn.Recipients,
		Payload:          nn.Payload,
		Schedule:         nn.Schedule,
		Status:           StatusPending,
		NextOccurrenceAt: next,
		CreatedBy:        actor.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return svc.repo.CreateNotification(ctx, n)
}

// Update edits a still-pending notification and recomputes its next occurrence
// from the (possibly new) schedule. Racing the dispatcher's claim loses cleanly:
// the conditional store update reports ErrNotPending.
func (svc *Service) Update(ctx context.Context, actor user.User, id string, un UpdateNotification) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if err := svc.gate.Allow(ctx, actor, ActionUpdate, &n); err != nil {
		return Notification{}, err
	}
	if !n.IsPending() {
		return Notification{}, ErrNotPending
	}
	if err := un.Validate(n); err != nil {
		return Notification{}, err
	}

	now := svc.nowFunc().UTC()
	next, err := un.Schedule.NextOccurrence(n.OccurrenceCount, now)
	if err == ErrScheduleExhausted {
		return Notification{}, core.NewValidationError(err, core.FieldError{
			Field: "schedule", Error: "schedule has no upcoming occurrence",
		})
	} else if err != nil {
		return Notification{}, errors.Wrap(err, "recomputing next occurrence")
	}

	n.Name = un.Name
	n.Channels = un.Channels
	n.Recipients = un.Recipients
	n.Payload = un.Payload
	n.Schedule = *un.Schedule
	n.NextOccurrenceAt = next
	n.UpdatedAt = now
	return svc.repo.UpdatePendingNotification(ctx, n)
}

// Cancel transitions a pending notification to cancelled. Callers get
// ErrNotCancellable for records in any other status, including the race where
// the dispatcher claimed the record first.
func (svc *Service) Cancel(ctx context.Context, actor user.User, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if err := svc.gate.Allow(ctx, actor, ActionCancel, &n); err != nil {
		return Notification{}, err
	}
	return svc.repo.CancelPendingNotification(ctx, id, svc.nowFunc().UTC())
}

func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if err := svc.gate.Allow(ctx, actor, ActionView, &n); err != nil {
		return Notification{}, err
	}
	return n, nil
}

func (svc *Service) Filter(ctx context.Context, actor user.User, filter QueryFilter, ordering []core.DBOrdering) ([]Notification, error) {
	if err := svc.gate.Allow(ctx, actor, ActionView, nil); err != nil {
		return nil, err
	}
	filter.Clean()
	return svc.repo.FilterNotifications(ctx, filter, ordering)
}

func (svc *Service) Stats(ctx context.Context, actor user.User) (Stats, error) {
	if err := svc.gate.Allow(ctx, actor, ActionView, nil); err != nil {
		return nil, err
	}
	return svc.repo.CountNotificationsByStatus(ctx)
}

// Delete removes terminal records only; active ones must be cancelled first.
func (svc *Service) Delete(ctx context.Context, actor user.User, ids ...string) (int, error) {
	if err := svc.gate.Allow(ctx, actor, ActionDelete, nil); err != nil {
		return 0, err
	}
	return svc.repo.DeleteNotifications(ctx, ids...)
}
