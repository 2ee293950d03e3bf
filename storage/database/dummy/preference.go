package dummydb

import (
	"context"

	"github.com/hmjahid/school-management-system-sub002/core/notification"
)

type preferenceRepository struct {
	db *preferenceTable
}

var _ notification.PreferenceStore = (*preferenceRepository)(nil) // interface compliance check

func NewPreferenceRepository(db *DB) *preferenceRepository {
	return &preferenceRepository{db: db.preference}
}

func (repo *preferenceRepository) AllowedChannels(ctx context.Context, userID, notifType string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	channels, ok := repo.db.table[prefKey{userID: userID, notifType: notifType}]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), channels...), nil
}

func (repo *preferenceRepository) SetAllowedChannels(ctx context.Context, userID, notifType string, channels []string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[prefKey{userID: userID, notifType: notifType}] = append([]string(nil), channels...)
	return nil
}
