package notification

import (
	"errors"
	"time"
)

// Schedule kinds
const (
	ScheduleOnce    = "once"
	ScheduleDaily   = "daily"
	ScheduleWeekly  = "weekly"
	ScheduleMonthly = "monthly"
	ScheduleCustom  = "custom"
)

// Custom schedule interval units
const (
	UnitMinute = "minute"
	UnitHour   = "hour"
	UnitDay    = "day"
	UnitWeek   = "week"
	UnitMonth  = "month"
)

// End condition kinds
const (
	EndNever            = "never"
	EndOnDate           = "on_date"
	EndAfterOccurrences = "after_occurrences"
)

var (
	ScheduleKinds = []string{ScheduleOnce, ScheduleDaily, ScheduleWeekly, ScheduleMonthly, ScheduleCustom}
	IntervalUnits = []string{UnitMinute, UnitHour, UnitDay, UnitWeek, UnitMonth}
	EndKinds      = []string{EndNever, EndOnDate, EndAfterOccurrences}

	// ErrScheduleExhausted is returned by NextOccurrence when a schedule has no further occurrence.
	ErrScheduleExhausted = errors.New("schedule exhausted")
)

type (
	// EndCondition bounds a recurring Schedule.
	EndCondition struct {
		Kind string    `json:"kind" validate:"omitempty,endkind"`
		Date time.Time `json:"date,omitempty"`
		// Count is the total number of occurrences after which the schedule exhausts.
		Count int `json:"count,omitempty"`
	}

	// Schedule is the declarative recurrence rule attached to a notification.
	// It is a tagged variant on Kind: Interval and Unit are only meaningful for
	// ScheduleCustom, End is ignored for ScheduleOnce.
	Schedule struct {
		Kind     string    `json:"kind" validate:"required,schedulekind"`
		Anchor   time.Time `json:"anchor" validate:"required"` // first (or only) occurrence
		Timezone string    `json:"timezone,omitempty"`
		Interval int       `json:"interval,omitempty"`
		Unit     string    `json:"unit,omitempty" validate:"omitempty,intervalunit"`
		End      EndCondition `json:"end"`
	}
)

// Location resolves the schedule's timezone, defaulting to UTC.
func (s Schedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsRecurring reports whether the schedule may fire more than once.
func (s Schedule) IsRecurring() bool { return s.Kind != ScheduleOnce }

// Clean zeroes the fields that do not belong to the schedule's variant so that
// two equivalent schedules compare equal regardless of how the caller filled them.
func (s Schedule) Clean() Schedule {
	if s.Kind != ScheduleCustom {
		s.Interval = 0
		s.Unit = ""
	}
	if s.Kind == ScheduleOnce {
		s.End = EndCondition{}
	}
	if s.End.Kind == "" {
		s.End.Kind = EndNever
	}
	if s.Kind == ScheduleOnce {
		s.End.Kind = ""
	}
	switch s.End.Kind {
	case EndOnDate:
		s.End.Count = 0
	case EndAfterOccurrences:
		s.End.Date = time.Time{}
	default:
		s.End.Date = time.Time{}
		s.End.Count = 0
	}
	return s
}

// step returns the recurrence period as (interval, unit).
func (s Schedule) step() (int, string) {
	switch s.Kind {
	case ScheduleDaily:
		return 1, UnitDay
	case ScheduleWeekly:
		return 1, UnitWeek
	case ScheduleMonthly:
		return 1, UnitMonth
	default: // ScheduleCustom
		return s.Interval, s.Unit
	}
}

// NextOccurrence computes the next instant the schedule becomes due, strictly
// after ref, given that the notification has already fired occurrenceCount times.
// It returns ErrScheduleExhausted when the schedule has run out.
//
// The function is pure and deterministic: the dispatcher may recompute after a
// crash and must land on the same instant.
//
// Month arithmetic clamps the anchor's day-of-month to the target month's last
// valid day (an anchor on the 31st fires on the 28th/29th/30th in shorter
// months); the clamp is always computed from the anchor, never from a previous
// occurrence, so the day never drifts.
func (s Schedule) NextOccurrence(occurrenceCount int, ref time.Time) (time.Time, error) {
	loc := s.Location()
	anchor := s.Anchor.In(loc)

	if s.Kind == ScheduleOnce {
		// a one-time schedule exhausts after its single occurrence,
		// whatever its end condition says
		if occurrenceCount > 0 || !anchor.After(ref) {
			return time.Time{}, ErrScheduleExhausted
		}
		return anchor.UTC(), nil
	}

	if s.End.Kind == EndAfterOccurrences && occurrenceCount >= s.End.Count {
		return time.Time{}, ErrScheduleExhausted
	}

	interval, unit := s.step()
	if interval < 1 {
		interval = 1 // validated at construction; guards the loop regardless
	}

	var next time.Time
	switch unit {
	case UnitMinute, UnitHour:
		// fixed-duration periods: jump straight to the first slot after ref
		step := time.Duration(interval) * time.Minute
		if unit == UnitHour {
			step = time.Duration(interval) * time.Hour
		}
		next = anchor
		if !next.After(ref) {
			elapsed := int64(ref.Sub(anchor)/step) + 1
			next = anchor.Add(time.Duration(elapsed) * step)
		}
	case UnitDay, UnitWeek:
		days := interval
		if unit == UnitWeek {
			days = 7 * interval
		}
		next = anchor
		for !next.After(ref) {
			next = next.AddDate(0, 0, days)
		}
	case UnitMonth:
		for k := 0; ; k++ {
			next = addMonthsClamped(anchor, k*interval)
			if next.After(ref) {
				break
			}
		}
	}

	switch s.End.Kind {
	case EndOnDate:
		if next.After(s.End.Date) {
			return time.Time{}, ErrScheduleExhausted
		}
	}
	return next.UTC(), nil
}

// addMonthsClamped adds months whole months to t, clamping the day-of-month
// to the last valid day of the target month instead of normalizing into the
// following month the way time.AddDate does.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}
