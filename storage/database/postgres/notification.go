package pgrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/hmjahid/school-management-system-sub002/core"
	"github.com/hmjahid/school-management-system-sub002/core/notification"
)

const notifColumns = `id, name, type, channels, recipients, payload, schedule, status,
next_occurrence_at, occurrence_count, created_by, created_at, updated_at, sent_at, cancelled_at, claimed_at`

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

// notificationRow is the flat DB shape of a notification record; the structured
// fields travel as JSON columns.
type notificationRow struct {
	ID               string         `db:"id"`
	Name             string         `db:"name"`
	Type             string         `db:"type"`
	Channels         pq.StringArray `db:"channels"`
	Recipients       []byte         `db:"recipients"`
	Payload          []byte         `db:"payload"`
	Schedule         []byte         `db:"schedule"`
	Status           string         `db:"status"`
	NextOccurrenceAt null.Time      `db:"next_occurrence_at"`
	OccurrenceCount  int            `db:"occurrence_count"`
	CreatedBy        null.String    `db:"created_by"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	SentAt           null.Time      `db:"sent_at"`
	CancelledAt      null.Time      `db:"cancelled_at"`
	ClaimedAt        null.Time      `db:"claimed_at"`
}

func (repo notificationRepository) pack(n notification.Notification) (notificationRow, error) {
	recipients, err := json.Marshal(n.Recipients)
	if err != nil {
		return notificationRow{}, errors.Wrap(err, "marshaling recipients")
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return notificationRow{}, errors.Wrap(err, "marshaling payload")
	}
	schedule, err := json.Marshal(n.Schedule)
	if err != nil {
		return notificationRow{}, errors.Wrap(err, "marshaling schedule")
	}
	return notificationRow{
		ID:               n.ID,
		Name:             n.Name,
		Type:             n.Type,
		Channels:         n.Channels,
		Recipients:       recipients,
		Payload:          payload,
		Schedule:         schedule,
		Status:           n.Status,
		NextOccurrenceAt: null.NewTime(n.NextOccurrenceAt.UTC(), !n.NextOccurrenceAt.IsZero()),
		OccurrenceCount:  n.OccurrenceCount,
		CreatedBy:        null.NewString(n.CreatedBy, n.CreatedBy != ""),
		CreatedAt:        n.CreatedAt.UTC(),
		UpdatedAt:        n.UpdatedAt.UTC(),
		SentAt:           null.NewTime(n.SentAt.UTC(), !n.SentAt.IsZero()),
		CancelledAt:      null.NewTime(n.CancelledAt.UTC(), !n.CancelledAt.IsZero()),
		ClaimedAt:        null.NewTime(n.ClaimedAt.UTC(), !n.ClaimedAt.IsZero()),
	}, nil
}

func (repo notificationRepository) unpack(row notificationRow) (notification.Notification, error) {
	n := notification.Notification{
		ID:               row.ID,
		Name:             row.Name,
		Type:             row.Type,
		Channels:         row.Channels,
		Status:           row.Status,
		NextOccurrenceAt: row.NextOccurrenceAt.Time,
		OccurrenceCount:  row.OccurrenceCount,
		CreatedBy:        row.CreatedBy.String,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
		SentAt:           row.SentAt.Time,
		CancelledAt:      row.CancelledAt.Time,
		ClaimedAt:        row.ClaimedAt.Time,
	}
	if err := json.Unmarshal(row.Recipients, &n.Recipients); err != nil {
		return n, errors.Wrap(err, "unmarshaling recipients")
	}
	if len(row.Payload) > 0 {
		if err := json.Unmarshal(row.Payload, &n.Payload); err != nil {
			return n, errors.Wrap(err, "unmarshaling payload")
		}
	}
	if err := json.Unmarshal(row.Schedule, &n.Schedule); err != nil {
		return n, errors.Wrap(err, "unmarshaling schedule")
	}
	return n, nil
}

func (repo notificationRepository) unpackSlice(rows []notificationRow) ([]notification.Notification, error) {
	ns := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := repo.unpack(row)
		if err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	return ns, nil
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.ID = uuid.New().String()
	row, err := repo.pack(n)
	if err != nil {
		return notification.Notification{}, err
	}

	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO notification (`+notifColumns+`)
		VALUES (:id, :name, :type, :channels, :recipients, :payload, :schedule, :status,
		        :next_occurrence_at, :occurrence_count, :created_by, :created_at, :updated_at,
		        :sent_at, :cancelled_at, :claimed_at)`,
		row,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return notification.Notification{}, notification.ErrNotFound
	}

	var row notificationRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+notifColumns+` FROM notification WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return notification.Notification{}, notification.ErrNotFound
	} else if err != nil {
		return notification.Notification{}, errors.Wrap(err, "finding notification by ID")
	}
	return repo.unpack(row)
}

func (repo notificationRepository) FilterNotifications(ctx context.Context, filter notification.QueryFilter, ordering []core.DBOrdering) ([]notification.Notification, error) {
	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Statuses) > 0 {
		where = append(where, "status = ANY("+arg(pq.StringArray(filter.Statuses))+")")
	}
	if filter.Type != "" {
		where = append(where, "type = "+arg(filter.Type))
	}
	if filter.CreatedBy != "" {
		where = append(where, "created_by = "+arg(filter.CreatedBy))
	}
	if !filter.DueFrom.IsZero() {
		where = append(where, "next_occurrence_at >= "+arg(filter.DueFrom.UTC()))
	}
	if !filter.DueTo.IsZero() {
		where = append(where, "next_occurrence_at <= "+arg(filter.DueTo.UTC()))
	}

	q := `SELECT ` + notifColumns + ` FROM notification`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		q += " ORDER BY created_at DESC"
	}

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	return repo.unpackSlice(rows)
}

func (repo notificationRepository) UpdatePendingNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	row, err := repo.pack(n)
	if err != nil {
		return notification.Notification{}, err
	}

	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE notification
		SET name = :name, channels = :channels, recipients = :recipients, payload = :payload,
		    schedule = :schedule, next_occurrence_at = :next_occurrence_at, updated_at = :updated_at
		WHERE id = :id AND status = 'pending'`,
		row,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	return n, repo.trapConditionalMiss(ctx, res, n.ID, notification.ErrNotPending)
}

func (repo notificationRepository) CancelPendingNotification(ctx context.Context, id string, at time.Time) (notification.Notification, error) {
	var row notificationRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE notification
		SET status = 'cancelled', cancelled_at = $2, updated_at = $2, next_occurrence_at = NULL
		WHERE id = $1 AND status = 'pending'
		RETURNING `+notifColumns,
		id, at.UTC(),
	)
	if err == sql.ErrNoRows {
		// lost the race (or the record is terminal / in flight): report it
		if _, getErr := repo.GetNotification(ctx, id); getErr != nil {
			return notification.Notification{}, getErr
		}
		return notification.Notification{}, notification.ErrNotCancellable
	} else if err != nil {
		return notification.Notification{}, errors.Wrap(err, "cancelling notification")
	}
	return repo.unpack(row)
}

func (repo notificationRepository) ClaimDueNotifications(ctx context.Context, now time.Time) ([]notification.Notification, error) {
	var rows []notificationRow
	err := repo.db.SelectContext(ctx, &rows, `
		UPDATE notification
		SET status = 'processing', claimed_at = $1, updated_at = $1
		WHERE status = 'pending' AND next_occurrence_at <= $1
		RETURNING `+notifColumns,
		now.UTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "claiming due notifications")
	}
	return repo.unpackSlice(rows)
}

func (repo notificationRepository) ReleaseClaimedNotification(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE notification
		SET status = 'pending', claimed_at = NULL
		WHERE id = $1 AND status = 'processing'`,
		id,
	)
	if err != nil {
		return errors.Wrap(err, "releasing claimed notification")
	}
	return repo.trapConditionalMiss(ctx, res, id, notification.ErrNotClaimed)
}

func (repo notificationRepository) ReleaseStaleClaims(ctx context.Context, deadline time.Time) (int, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE notification
		SET status = 'pending', claimed_at = NULL
		WHERE status = 'processing' AND claimed_at < $1`,
		deadline.UTC(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "releasing stale claims")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "counting released claims")
}

func (repo notificationRepository) AdvanceClaimedNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	row, err := repo.pack(n)
	if err != nil {
		return notification.Notification{}, err
	}

	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE notification
		SET status = :status, next_occurrence_at = :next_occurrence_at,
		    occurrence_count = :occurrence_count, sent_at = :sent_at,
		    updated_at = :updated_at, claimed_at = NULL
		WHERE id = :id AND status = 'processing'`,
		row,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "advancing notification")
	}
	return n, repo.trapConditionalMiss(ctx, res, n.ID, notification.ErrNotClaimed)
}

func (repo notificationRepository) DeleteNotifications(ctx context.Context, ids ...string) (int, error) {
	var active bool
	err := repo.db.GetContext(ctx, &active, `
		SELECT EXISTS (
			SELECT 1 FROM notification
			WHERE id = ANY($1) AND status IN ('pending', 'processing')
		)`,
		pq.StringArray(ids),
	)
	if err != nil {
		return 0, errors.Wrap(err, "checking active notifications")
	}
	if active {
		return 0, notification.ErrStillActive
	}

	res, err := repo.db.ExecContext(ctx, `
		DELETE FROM notification
		WHERE id = ANY($1) AND status IN ('sent', 'exhausted', 'cancelled')`,
		pq.StringArray(ids),
	)
	if err != nil {
		return 0, errors.Wrap(err, "deleting notifications")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "counting deleted notifications")
}

func (repo notificationRepository) CountNotificationsByStatus(ctx context.Context) (notification.Stats, error) {
	rows, err := repo.db.QueryxContext(ctx, `SELECT status, COUNT(*) FROM notification GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "counting notifications")
	}
	defer func() { _ = rows.Close() }()

	stats := make(notification.Stats)
	for rows.Next() {
		var status string
		var cnt int
		if err := rows.Scan(&status, &cnt); err != nil {
			return nil, errors.Wrap(err, "counting notifications")
		}
		stats[status] = cnt
	}
	return stats, errors.Wrap(rows.Err(), "counting notifications")
}

// trapConditionalMiss maps a zero-row conditional update to the expected
// transition error, or ErrNotFound when the record does not exist at all.
func (repo notificationRepository) trapConditionalMiss(ctx context.Context, res sql.Result, id string, missErr error) error {
	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "checking affected rows")
	}
	if cnt > 0 {
		return nil
	}
	if _, err := repo.GetNotification(ctx, id); err != nil {
		return err
	}
	return missErr
}
