package pgrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/hmjahid/school-management-system-sub002/core/user"
)

const userColumns = `id, name, username, email, phone, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

type userRow struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	Phone        null.String    `db:"phone"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (repo userRepository) pack(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Phone:        null.NewString(usr.Phone, usr.Phone != ""),
		IsActive:     usr.IsActive,
		Roles:        usr.Roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unpack(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name.String,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Phone:        row.Phone.String,
		IsActive:     row.IsActive,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastLogin:    row.LastLogin.Time,
	}
}

func (repo userRepository) unpackSlice(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.unpack(row))
	}
	return users
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	q := `SELECT EXISTS (SELECT 1 FROM "user" WHERE (username = $1 OR email = $2)`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += ` AND NOT (id = ANY($3))`
		args = append(args, pq.StringArray(ids))
	}
	q += `)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, q, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		// refine which attribute clashed
		var unameTaken bool
		if username != "" {
			if err := repo.db.GetContext(ctx, &unameTaken,
				`SELECT EXISTS (SELECT 1 FROM "user" WHERE username = $1)`, username); err != nil {
				return errors.Wrap(err, "checking username uniqueness")
			}
		}
		if unameTaken {
			return user.ErrUsernameExists
		}
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.pack(usr)

	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO "user" (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :phone, :is_active, :roles, :password_hash,
		        :created_at, :updated_at, :last_login)`,
		row,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM "user" WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return user.User{}, user.ErrNotFound
	} else if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	return repo.unpack(row), nil
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM "user" WHERE username = $1 OR email = $1`, username)
	if err == sql.ErrNoRows {
		return user.User{}, user.ErrNotFound
	} else if err != nil {
		return user.User{}, errors.Wrap(err, "finding user")
	}
	return repo.unpack(row), nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		where = append(where, fmt.Sprintf(
			"(name ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", arg(val)))
	}
	if len(filter.Roles) > 0 {
		roleOrs := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roleOrs = append(roleOrs,
				"EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE "+arg(role+"%")+")")
		}
		where = append(where, "("+strings.Join(roleOrs, " OR ")+")")
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = "+arg(*filter.IsActive))
	}
	if !filter.CreatedFrom.IsZero() {
		where = append(where, "created_at >= "+arg(filter.CreatedFrom.UTC()))
	}
	if !filter.CreatedTo.IsZero() {
		where = append(where, "created_at <= "+arg(filter.CreatedTo.UTC()))
	}

	q := `SELECT ` + userColumns + ` FROM "user"`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at"

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unpackSlice(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.UpdatedAt = time.Now().UTC()
	row := repo.pack(usr)

	_, err := repo.db.NamedExecContext(ctx, `
		UPDATE "user"
		SET name = :name, username = :username, email = :email, phone = :phone,
		    is_active = :is_active, roles = :roles, password_hash = :password_hash,
		    updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsersByRole(ctx context.Context, role string) ([]user.User, error) {
	var rows []userRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+userColumns+` FROM "user"
		WHERE is_active
		  AND EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role LIKE $1 || '%')
		ORDER BY id`,
		role,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying users by role")
	}
	return repo.unpackSlice(rows), nil
}

func (repo userRepository) QueryUsersByGroup(ctx context.Context, groupID string) ([]user.User, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return nil, user.ErrGroupNotFound
	}

	var rows []userRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+prefixColumns(userColumns, "u")+` FROM "user" u
		JOIN user_group_member m ON m.user_id = u.id
		WHERE u.is_active AND m.group_id = $1
		ORDER BY u.id`,
		groupID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying users by group")
	}
	return repo.unpackSlice(rows), nil
}

func (repo userRepository) QueryActiveUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+userColumns+` FROM "user" WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "querying active users")
	}
	return repo.unpackSlice(rows), nil
}

func (repo userRepository) GetGroupByID(ctx context.Context, id string) (user.Group, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.Group{}, user.ErrGroupNotFound
	}

	var row struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := repo.db.GetContext(ctx, &row,
		`SELECT id, name, created_at FROM user_group WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return user.Group{}, user.ErrGroupNotFound
	} else if err != nil {
		return user.Group{}, errors.Wrap(err, "finding group by ID")
	}
	return user.Group{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}, nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(cols, alias string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
