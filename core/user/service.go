package user

import (
	"context"
	"errors"
	"time"

	"github.com/hmjahid/school-management-system-sub002/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrGroupNotFound  = errors.New("group not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	// Repository is the user directory store. It also answers the group
	// and role expansion queries the notification recipient resolver needs.
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)

		// directory expansion

		// QueryUsersByRole returns active users having any role starting with the given prefix.
		QueryUsersByRole(ctx context.Context, role string) ([]User, error)
		// QueryUsersByGroup returns active members of the given group.
		QueryUsersByGroup(ctx context.Context, groupID string) ([]User, error)
		// QueryActiveUsers returns all active users.
		QueryActiveUsers(ctx context.Context) ([]User, error)
		GetGroupByID(ctx context.Context, id string) (Group, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Phone:     nu.Phone,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Directory expansion for the notification recipient resolver.

func (svc *Service) ExpandRole(ctx context.Context, role string) ([]User, error) {
	return svc.repo.QueryUsersByRole(ctx, role)
}

func (svc *Service) ExpandGroup(ctx context.Context, groupID string) ([]User, error) {
	return svc.repo.QueryUsersByGroup(ctx, groupID)
}

func (svc *Service) ExpandEveryone(ctx context.Context) ([]User, error) {
	return svc.repo.QueryActiveUsers(ctx)
}
