package dummydb

import (
	"sync"

	"github.com/hmjahid/school-management-system-sub002/core/notification"
	"github.com/hmjahid/school-management-system-sub002/core/user"
)

type (
	DB struct {
		user         *userTable
		group        *groupTable
		notification *notificationTable
		preference   *preferenceTable
	}

	userTable struct {
		sync.RWMutex
		table   map[string]*user.User
		members map[string][]string // groupID -> userIDs
	}

	groupTable struct {
		sync.RWMutex
		table map[string]*user.Group
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}

	preferenceTable struct {
		sync.RWMutex
		table map[prefKey][]string
	}

	prefKey struct {
		userID    string
		notifType string
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{
			table:   make(map[string]*user.User),
			members: make(map[string][]string),
		},
		group:        &groupTable{table: make(map[string]*user.Group)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
		preference:   &preferenceTable{table: make(map[prefKey][]string)},
	}
	return db, nil
}

// AddGroup registers a group and its members. Test fixture helper.
func (db *DB) AddGroup(grp user.Group, memberIDs ...string) {
	db.group.Lock()
	db.group.table[grp.ID] = &grp
	db.group.Unlock()

	db.user.Lock()
	db.user.members[grp.ID] = append(db.user.members[grp.ID], memberIDs...)
	db.user.Unlock()
}
