package pgrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hmjahid/school-management-system-sub002/core/notification"
)

type preferenceRepository struct {
	db *sqlx.DB
}

var _ notification.PreferenceStore = (*preferenceRepository)(nil) // interface compliance check

func NewPreferenceRepository(db *sqlx.DB) *preferenceRepository {
	return &preferenceRepository{db: db}
}

// AllowedChannels returns the channels a user opted into for a notification type.
// Absence of a preference row means the user accepts all channels, reported as nil.
func (repo preferenceRepository) AllowedChannels(ctx context.Context, userID, notifType string) ([]string, error) {
	var channels pq.StringArray
	err := repo.db.GetContext(ctx, &channels, `
		SELECT channels FROM notification_preference
		WHERE user_id = $1 AND notification_type = $2`,
		userID, notifType,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "querying notification preference")
	}
	return channels, nil
}

// SetAllowedChannels records a user's channel opt-ins for a notification type,
// replacing any existing preference.
func (repo preferenceRepository) SetAllowedChannels(ctx context.Context, userID, notifType string, channels []string) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO notification_preference (user_id, notification_type, channels)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, notification_type) DO UPDATE SET channels = EXCLUDED.channels`,
		userID, notifType, pq.StringArray(channels),
	)
	return errors.Wrap(err, "upserting notification preference")
}
