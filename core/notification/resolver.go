package notification

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/hmjahid/school-management-system-sub002/core/user"
)

type (
	// Directory answers "expand this recipient descriptor to users".
	// Implemented by the user service; external to this package's state.
	Directory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		ExpandRole(ctx context.Context, role string) ([]user.User, error)
		ExpandGroup(ctx context.Context, groupID string) ([]user.User, error)
		ExpandEveryone(ctx context.Context) ([]user.User, error)
	}

	// PreferenceStore answers "allowed channels for (user, notification type)".
	// A nil slice means the user has no preference row and every channel is allowed.
	PreferenceStore interface {
		AllowedChannels(ctx context.Context, userID, notifType string) ([]string, error)
	}

	// Delivery is one resolved recipient with the channels a run may use for them.
	Delivery struct {
		User     user.User
		Channels []string
	}

	// Resolver expands recipient descriptors into a concrete, deduplicated
	// delivery set. It is read-only: retries may re-resolve the same occurrence
	// safely.
	Resolver struct {
		dir   Directory
		prefs PreferenceStore
	}
)

func NewResolver(dir Directory, prefs PreferenceStore) *Resolver {
	return &Resolver{dir: dir, prefs: prefs}
}

// Resolve expands recipients, unions the expansions deduplicating by user ID,
// and intersects the requested channels with each user's preference for
// notifType. Users left with no allowed channel are excluded from the run.
// Inactive users and dangling user references are skipped rather than failing
// the run; directory or preference store errors fail it (the caller keeps the
// occurrence retryable).
func (r *Resolver) Resolve(ctx context.Context, recipients []Recipient, channels []string, notifType string) ([]Delivery, error) {
	seen := make(map[string]user.User)

	for _, rcp := range recipients {
		switch rcp.Kind {
		case RecipientUser:
			usr, err := r.dir.GetByID(ctx, rcp.User)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					continue
				}
				return nil, errors.Wrap(err, "expanding user recipient")
			}
			if usr.IsActive {
				seen[usr.ID] = usr
			}
		case RecipientRole:
			users, err := r.dir.ExpandRole(ctx, rcp.Role)
			if err != nil {
				return nil, errors.Wrap(err, "expanding role recipient")
			}
			for _, usr := range users {
				seen[usr.ID] = usr
			}
		case RecipientGroup:
			users, err := r.dir.ExpandGroup(ctx, rcp.Group)
			if err != nil {
				return nil, errors.Wrap(err, "expanding group recipient")
			}
			for _, usr := range users {
				seen[usr.ID] = usr
			}
		case RecipientEveryone:
			users, err := r.dir.ExpandEveryone(ctx)
			if err != nil {
				return nil, errors.Wrap(err, "expanding everyone recipient")
			}
			for _, usr := range users {
				seen[usr.ID] = usr
			}
		}
	}

	deliveries := make([]Delivery, 0, len(seen))
	for _, usr := range seen {
		allowed, err := r.prefs.AllowedChannels(ctx, usr.ID, notifType)
		if err != nil {
			return nil, errors.Wrap(err, "fetching channel preferences")
		}
		chans := intersectChannels(channels, allowed)
		if len(chans) == 0 {
			continue // opted out of every requested channel for this run
		}
		deliveries = append(deliveries, Delivery{User: usr, Channels: chans})
	}

	// deterministic order; resolution must be idempotent across retries
	sort.Slice(deliveries, func(i, j int) bool { return deliveries[i].User.ID < deliveries[j].User.ID })
	return deliveries, nil
}

// intersectChannels keeps the requested channels the user allows.
// allowed == nil means no preference recorded: everything requested goes through.
func intersectChannels(requested, allowed []string) []string {
	if allowed == nil {
		return append([]string(nil), requested...)
	}
	set := make(map[string]struct{}, len(allowed))
	for _, ch := range allowed {
		set[ch] = struct{}{}
	}
	var out []string
	for _, ch := range requested {
		if _, ok := set[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}
