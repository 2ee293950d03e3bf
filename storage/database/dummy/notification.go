package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hmjahid/school-management-system-sub002/core"
	"github.com/hmjahid/school-management-system-sub002/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) query() []notification.Notification {
	notifs := make([]notification.Notification, 0, len(repo.db.table))
	for _, n := range repo.db.table {
		notifs = append(notifs, *n)
	}
	return notifs
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n.ID = uuid.New().String()
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) FilterNotifications(ctx context.Context, filter notification.QueryFilter, ordering []core.DBOrdering) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	notifs := repo.query()

	if len(filter.Statuses) > 0 {
		var filtered []notification.Notification
		for _, n := range notifs {
			for _, status := range filter.Statuses {
				if n.Status == status {
					filtered = append(filtered, n)
					break
				}
			}
		}
		notifs = filtered
	}
	if notifs != nil && filter.Type != "" {
		var filtered []notification.Notification
		for _, n := range notifs {
			if n.Type == filter.Type {
				filtered = append(filtered, n)
			}
		}
		notifs = filtered
	}
	if notifs != nil && filter.CreatedBy != "" {
		var filtered []notification.Notification
		for _, n := range notifs {
			if n.CreatedBy == filter.CreatedBy {
				filtered = append(filtered, n)
			}
		}
		notifs = filtered
	}
	if notifs != nil && !filter.DueFrom.IsZero() {
		var filtered []notification.Notification
		timeUTC := filter.DueFrom.UTC()
		for _, n := range notifs {
			if !n.NextOccurrenceAt.IsZero() && !n.NextOccurrenceAt.Before(timeUTC) {
				filtered = append(filtered, n)
			}
		}
		notifs = filtered
	}
	if notifs != nil && !filter.DueTo.IsZero() {
		var filtered []notification.Notification
		timeUTC := filter.DueTo.UTC()
		for _, n := range notifs {
			if !n.NextOccurrenceAt.IsZero() && !n.NextOccurrenceAt.After(timeUTC) {
				filtered = append(filtered, n)
			}
		}
		notifs = filtered
	}

	// newest first by default, matching the SQL store
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	return notifs, nil
}

func (repo *notificationRepository) UpdatePendingNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[n.ID]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	if orig.Status != notification.StatusPending {
		return notification.Notification{}, notification.ErrNotPending
	}
	n.UpdatedAt = time.Now().UTC()
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) CancelPendingNotification(ctx context.Context, id string, at time.Time) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.table[id]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	if n.Status != notification.StatusPending {
		return notification.Notification{}, notification.ErrNotCancellable
	}
	n.Status = notification.StatusCancelled
	n.CancelledAt = at.UTC()
	n.NextOccurrenceAt = time.Time{}
	n.UpdatedAt = at.UTC()
	return *n, nil
}

func (repo *notificationRepository) ClaimDueNotifications(ctx context.Context, now time.Time) ([]notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var claimed []notification.Notification
	for _, n := range repo.db.table {
		if n.Status == notification.StatusPending &&
			!n.NextOccurrenceAt.IsZero() && !n.NextOccurrenceAt.After(now) {
			n.Status = notification.StatusProcessing
			n.ClaimedAt = now.UTC()
			claimed = append(claimed, *n)
		}
	}
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].ID < claimed[j].ID })
	return claimed, nil
}

func (repo *notificationRepository) ReleaseClaimedNotification(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.table[id]
	if !ok || n.Status != notification.StatusProcessing {
		return notification.ErrNotClaimed
	}
	n.Status = notification.StatusPending
	n.ClaimedAt = time.Time{}
	return nil
}

func (repo *notificationRepository) ReleaseStaleClaims(ctx context.Context, deadline time.Time) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var released int
	for _, n := range repo.db.table {
		if n.Status == notification.StatusProcessing && n.ClaimedAt.Before(deadline) {
			n.Status = notification.StatusPending
			n.ClaimedAt = time.Time{}
			released++
		}
	}
	return released, nil
}

func (repo *notificationRepository) AdvanceClaimedNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[n.ID]
	if !ok || orig.Status != notification.StatusProcessing {
		return notification.Notification{}, notification.ErrNotClaimed
	}
	n.ClaimedAt = time.Time{}
	n.UpdatedAt = time.Now().UTC()
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) DeleteNotifications(ctx context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		if n, ok := repo.db.table[id]; ok && !notification.IsTerminal(n.Status) {
			return 0, notification.ErrStillActive
		}
	}
	var deleted int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			deleted++
		}
	}
	return deleted, nil
}

func (repo *notificationRepository) CountNotificationsByStatus(ctx context.Context) (notification.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	stats := make(notification.Stats)
	for _, n := range repo.db.table {
		stats[n.Status]++
	}
	return stats, nil
}
