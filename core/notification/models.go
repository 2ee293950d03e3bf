package notification

import (
	"errors"
	"time"

	"github.com/hmjahid/school-management-system-sub002/core"
)

// Channel identifiers known to the dispatcher's adapter registry.
const (
	ChannelMail = "mail"
	ChannelSMS  = "sms"
)

// Statuses. StatusProcessing is the claim marker: a record leaves the due set
// the instant a dispatcher run claims it and comes back as pending, sent or
// exhausted when the run completes.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSent       = "sent"
	StatusExhausted  = "exhausted"
	StatusCancelled  = "cancelled"
)

// Recipient kinds
const (
	RecipientUser     = "user"
	RecipientRole     = "role"
	RecipientGroup    = "group"
	RecipientEveryone = "everyone"
)

var (
	Channels       = []string{ChannelMail, ChannelSMS}
	RecipientKinds = []string{RecipientUser, RecipientRole, RecipientGroup, RecipientEveryone}

	// errors
	ErrNotFound       = errors.New("notification not found")
	ErrNotPending     = errors.New("notification is not pending")
	ErrNotCancellable = errors.New("notification is not cancellable")
	ErrNotClaimed     = errors.New("notification is not claimed")
	ErrStillActive    = errors.New("an active notification cannot be deleted")
)

// IsTerminal reports whether a status can never change again.
func IsTerminal(status string) bool {
	return status == StatusSent || status == StatusExhausted || status == StatusCancelled
}

type (
	// Recipient is an unresolved reference to one or many users.
	// It is a tagged variant on Kind: exactly one of User, Role or Group is set,
	// none for RecipientEveryone.
	Recipient struct {
		Kind  string `json:"kind" validate:"required,recipientkind"`
		User  string `json:"user,omitempty"`
		Role  string `json:"role,omitempty"`
		Group string `json:"group,omitempty"`
	}

	// Notification is the persisted unit of scheduled work.
	Notification struct {
		ID         string            `json:"id"`
		Name       string            `json:"name"`
		Type       string            `json:"type"` // semantic category, e.g. "fee_reminder"
		Channels   []string          `json:"channels"`
		Recipients []Recipient       `json:"recipients"`
		Payload    map[string]string `json:"payload"`
		Schedule   Schedule          `json:"schedule"`

		Status string `json:"status"`
		// NextOccurrenceAt is set iff Status is pending (zero otherwise).
		NextOccurrenceAt time.Time `json:"next_occurrence_at"` // UTC
		OccurrenceCount  int       `json:"occurrence_count"`

		CreatedBy   string    `json:"created_by"`
		CreatedAt   time.Time `json:"created_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at"` // UTC
		SentAt      time.Time `json:"sent_at"`    // UTC; last fired run
		CancelledAt time.Time `json:"cancelled_at"`
		ClaimedAt   time.Time `json:"-"` // UTC; set while Status is processing
	}
)

func (n *Notification) IsPending() bool { return n.Status == StatusPending }

// NewNotification contains information needed to schedule a new Notification.
type NewNotification struct {
	Name       string            `json:"name" validate:"required"`
	Type       string            `json:"type" validate:"required,alphanum_"`
	Channels   []string          `json:"channels" validate:"required,min=1,knownchannels"`
	Recipients []Recipient       `json:"recipients" validate:"required,min=1,dive"`
	Payload    map[string]string `json:"payload"`
	Schedule   Schedule          `json:"schedule" validate:"required"`
}

func (nn *NewNotification) Validate() error {
	nn.Name = core.CleanString(nn.Name)
	nn.Type = core.CleanString(nn.Type, true /* lower */)

	if err := core.Validate.Struct(nn); err != nil {
		return err
	}
	nn.Schedule = nn.Schedule.Clean()
	return nil
}

// UpdateNotification defines what may be modified on a still-pending Notification.
// Zero fields keep their current value.
type UpdateNotification struct {
	Name       string            `json:"name"`
	Channels   []string          `json:"channels" validate:"omitempty,min=1,knownchannels"`
	Recipients []Recipient       `json:"recipients" validate:"omitempty,min=1,dive"`
	Payload    map[string]string `json:"payload"`
	Schedule   *Schedule         `json:"schedule"`
}

func (un *UpdateNotification) Validate(orig Notification) error {
	name := core.CleanString(un.Name)
	if name != "" {
		un.Name = name
	} else {
		un.Name = orig.Name
	}
	if un.Channels == nil {
		un.Channels = orig.Channels
	}
	if un.Recipients == nil {
		un.Recipients = orig.Recipients
	}
	if un.Payload == nil {
		un.Payload = orig.Payload
	}
	if un.Schedule == nil {
		sched := orig.Schedule
		un.Schedule = &sched
	}

	if err := core.Validate.Struct(un); err != nil {
		return err
	}
	sched := un.Schedule.Clean()
	un.Schedule = &sched
	return nil
}

type QueryFilter struct {
	Statuses  []string  `query:"status"`
	Type      string    `query:"type"`
	CreatedBy string    `query:"created_by"`
	DueFrom   time.Time `query:"due_from"`
	DueTo     time.Time `query:"due_to"`
}

func (qf *QueryFilter) Clean() {
	qf.Type = core.CleanString(qf.Type, true /* lower */)
}

// Stats holds record counts by status.
type Stats map[string]int
