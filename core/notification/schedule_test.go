package notification

import (
	"testing"
	"time"
)

func dt(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSchedule_NextOccurrence(t *testing.T) {
	tests := []struct {
		name            string
		sched           Schedule
		occurrenceCount int
		ref             time.Time
		want            time.Time
		wantErr         error
	}{
		{
			name:  "once before anchor",
			sched: Schedule{Kind: ScheduleOnce, Anchor: dt("2025-01-10T09:00:00Z")},
			ref:   dt("2025-01-01T00:00:00Z"),
			want:  dt("2025-01-10T09:00:00Z"),
		},
		{
			name:            "once already fired",
			sched:           Schedule{Kind: ScheduleOnce, Anchor: dt("2025-01-10T09:00:00Z")},
			occurrenceCount: 1,
			ref:             dt("2025-01-10T09:00:00Z"),
			wantErr:         ErrScheduleExhausted,
		},
		{
			name:    "once anchor in the past",
			sched:   Schedule{Kind: ScheduleOnce, Anchor: dt("2025-01-10T09:00:00Z")},
			ref:     dt("2025-01-10T09:00:00Z"),
			wantErr: ErrScheduleExhausted,
		},
		{
			name:  "daily next slot strictly after ref",
			sched: Schedule{Kind: ScheduleDaily, Anchor: dt("2025-01-01T08:00:00Z")},
			ref:   dt("2025-01-05T10:00:00Z"),
			want:  dt("2025-01-06T08:00:00Z"),
		},
		{
			name:  "daily ref exactly on slot",
			sched: Schedule{Kind: ScheduleDaily, Anchor: dt("2025-01-01T08:00:00Z")},
			ref:   dt("2025-01-05T08:00:00Z"),
			want:  dt("2025-01-06T08:00:00Z"),
		},
		{
			name:  "daily ref before anchor",
			sched: Schedule{Kind: ScheduleDaily, Anchor: dt("2025-01-01T08:00:00Z")},
			ref:   dt("2024-12-25T00:00:00Z"),
			want:  dt("2025-01-01T08:00:00Z"),
		},
		{
			name:  "weekly",
			sched: Schedule{Kind: ScheduleWeekly, Anchor: dt("2025-01-06T07:30:00Z")},
			ref:   dt("2025-01-10T00:00:00Z"),
			want:  dt("2025-01-13T07:30:00Z"),
		},
		{
			name:  "monthly",
			sched: Schedule{Kind: ScheduleMonthly, Anchor: dt("2025-01-15T12:00:00Z")},
			ref:   dt("2025-03-20T00:00:00Z"),
			want:  dt("2025-04-15T12:00:00Z"),
		},
		{
			name:  "monthly clamps anchor day 31 to short month",
			sched: Schedule{Kind: ScheduleMonthly, Anchor: dt("2025-01-31T09:00:00Z")},
			ref:   dt("2025-02-01T00:00:00Z"),
			want:  dt("2025-02-28T09:00:00Z"),
		},
		{
			name:  "monthly day does not drift after a clamped month",
			sched: Schedule{Kind: ScheduleMonthly, Anchor: dt("2025-01-31T09:00:00Z")},
			ref:   dt("2025-02-28T09:00:00Z"),
			want:  dt("2025-03-31T09:00:00Z"),
		},
		{
			name:  "monthly clamps to leap day",
			sched: Schedule{Kind: ScheduleMonthly, Anchor: dt("2024-01-31T09:00:00Z")},
			ref:   dt("2024-02-01T00:00:00Z"),
			want:  dt("2024-02-29T09:00:00Z"),
		},
		{
			name: "custom 2-week interval first fire",
			sched: Schedule{
				Kind: ScheduleCustom, Anchor: dt("2025-01-01T00:00:00Z"),
				Interval: 2, Unit: UnitWeek,
				End: EndCondition{Kind: EndAfterOccurrences, Count: 2},
			},
			ref:  dt("2024-12-31T00:00:00Z"),
			want: dt("2025-01-01T00:00:00Z"),
		},
		{
			name: "custom 2-week interval second fire",
			sched: Schedule{
				Kind: ScheduleCustom, Anchor: dt("2025-01-01T00:00:00Z"),
				Interval: 2, Unit: UnitWeek,
				End: EndCondition{Kind: EndAfterOccurrences, Count: 2},
			},
			occurrenceCount: 1,
			ref:             dt("2025-01-01T00:00:00Z"),
			want:            dt("2025-01-15T00:00:00Z"),
		},
		{
			name: "custom 2-week interval exhausts after 2 fires",
			sched: Schedule{
				Kind: ScheduleCustom, Anchor: dt("2025-01-01T00:00:00Z"),
				Interval: 2, Unit: UnitWeek,
				End: EndCondition{Kind: EndAfterOccurrences, Count: 2},
			},
			occurrenceCount: 2,
			ref:             dt("2025-01-15T00:00:00Z"),
			wantErr:         ErrScheduleExhausted,
		},
		{
			name: "custom minutes jumps far past slots",
			sched: Schedule{
				Kind: ScheduleCustom, Anchor: dt("2025-01-01T00:00:00Z"),
				Interval: 15, Unit: UnitMinute,
			},
			ref:  dt("2025-01-03T10:07:00Z"),
			want: dt("2025-01-03T10:15:00Z"),
		},
		{
			name: "custom hours",
			sched: Schedule{
				Kind: ScheduleCustom, Anchor: dt("2025-01-01T06:00:00Z"),
				Interval: 6, Unit: UnitHour,
			},
			ref:  dt("2025-01-01T13:00:00Z"),
			want: dt("2025-01-01T18:00:00Z"),
		},
		{
			name: "custom days",
			sched: Schedule{
				Kind: ScheduleCustom, Anchor: dt("2025-01-01T08:00:00Z"),
				Interval: 3, Unit: UnitDay,
			},
			ref:  dt("2025-01-05T00:00:00Z"),
			want: dt("2025-01-07T08:00:00Z"),
		},
		{
			name: "custom months with interval",
			sched: Schedule{
				Kind: ScheduleCustom, Anchor: dt("2025-01-30T10:00:00Z"),
				Interval: 2, Unit: UnitMonth,
			},
			ref:  dt("2025-02-01T00:00:00Z"),
			want: dt("2025-03-30T10:00:00Z"),
		},
		{
			name: "end on date within bound",
			sched: Schedule{
				Kind: ScheduleDaily, Anchor: dt("2025-01-01T08:00:00Z"),
				End: EndCondition{Kind: EndOnDate, Date: dt("2025-01-10T23:59:59Z")},
			},
			ref:  dt("2025-01-09T09:00:00Z"),
			want: dt("2025-01-10T08:00:00Z"),
		},
		{
			name: "end on date exceeded",
			sched: Schedule{
				Kind: ScheduleDaily, Anchor: dt("2025-01-01T08:00:00Z"),
				End: EndCondition{Kind: EndOnDate, Date: dt("2025-01-10T23:59:59Z")},
			},
			ref:     dt("2025-01-10T09:00:00Z"),
			wantErr: ErrScheduleExhausted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sched.NextOccurrence(tt.occurrenceCount, tt.ref)
			if err != tt.wantErr {
				t.Fatalf("NextOccurrence() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !got.Equal(tt.want) {
				t.Errorf("NextOccurrence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchedule_NextOccurrence_timezone(t *testing.T) {
	// anchor 08:00 in Kinshasa (UTC+1), so the slot is 07:00 UTC
	sched := Schedule{
		Kind:     ScheduleDaily,
		Anchor:   dt("2025-01-01T07:00:00Z"),
		Timezone: "Africa/Kinshasa",
	}
	got, err := sched.NextOccurrence(4, dt("2025-01-05T10:00:00Z"))
	if err != nil {
		t.Fatalf("NextOccurrence() unexpected error = %v", err)
	}
	if want := dt("2025-01-06T07:00:00Z"); !got.Equal(want) {
		t.Errorf("NextOccurrence() = %v, want %v", got, want)
	}
	if got.Location() != time.UTC {
		t.Errorf("NextOccurrence() location = %v, want UTC", got.Location())
	}
}

func TestSchedule_NextOccurrence_monotonicity(t *testing.T) {
	scheds := []Schedule{
		{Kind: ScheduleDaily, Anchor: dt("2025-01-01T08:00:00Z")},
		{Kind: ScheduleMonthly, Anchor: dt("2025-01-31T08:00:00Z")},
		{Kind: ScheduleCustom, Anchor: dt("2025-01-01T00:00:00Z"), Interval: 90, Unit: UnitMinute},
	}
	refs := []time.Time{
		dt("2025-01-01T00:00:00Z"),
		dt("2025-01-15T13:37:00Z"),
		dt("2025-02-28T23:59:59Z"),
		dt("2025-06-30T12:00:00Z"),
	}
	for _, sched := range scheds {
		var prev time.Time
		for _, ref := range refs {
			got, err := sched.NextOccurrence(0, ref)
			if err != nil {
				t.Fatalf("NextOccurrence(%v) unexpected error = %v", ref, err)
			}
			if got.Before(prev) {
				t.Errorf("NextOccurrence(%v) = %v, before previous %v", ref, got, prev)
			}
			prev = got
		}
	}
}

func TestSchedule_NextOccurrence_idempotence(t *testing.T) {
	sched := Schedule{Kind: ScheduleCustom, Anchor: dt("2025-01-01T00:00:00Z"), Interval: 2, Unit: UnitWeek}
	ref := dt("2025-03-03T04:05:06Z")

	first, err1 := sched.NextOccurrence(3, ref)
	second, err2 := sched.NextOccurrence(3, ref)
	if err1 != nil || err2 != nil {
		t.Fatalf("NextOccurrence() unexpected errors = %v, %v", err1, err2)
	}
	if !first.Equal(second) {
		t.Errorf("NextOccurrence() not deterministic: %v != %v", first, second)
	}
}

func TestSchedule_Clean(t *testing.T) {
	tests := []struct {
		name  string
		sched Schedule
		want  Schedule
	}{
		{
			name: "once drops interval and end",
			sched: Schedule{
				Kind: ScheduleOnce, Anchor: dt("2025-01-10T09:00:00Z"),
				Interval: 5, Unit: UnitDay,
				End: EndCondition{Kind: EndAfterOccurrences, Count: 3},
			},
			want: Schedule{Kind: ScheduleOnce, Anchor: dt("2025-01-10T09:00:00Z")},
		},
		{
			name: "daily drops custom fields, defaults end to never",
			sched: Schedule{
				Kind: ScheduleDaily, Anchor: dt("2025-01-01T08:00:00Z"),
				Interval: 2, Unit: UnitWeek,
			},
			want: Schedule{
				Kind: ScheduleDaily, Anchor: dt("2025-01-01T08:00:00Z"),
				End: EndCondition{Kind: EndNever},
			},
		},
		{
			name: "end on date drops count",
			sched: Schedule{
				Kind: ScheduleWeekly, Anchor: dt("2025-01-01T08:00:00Z"),
				End: EndCondition{Kind: EndOnDate, Date: dt("2025-06-01T00:00:00Z"), Count: 9},
			},
			want: Schedule{
				Kind: ScheduleWeekly, Anchor: dt("2025-01-01T08:00:00Z"),
				End: EndCondition{Kind: EndOnDate, Date: dt("2025-06-01T00:00:00Z")},
			},
		},
		{
			name: "end after occurrences drops date",
			sched: Schedule{
				Kind: ScheduleCustom, Anchor: dt("2025-01-01T08:00:00Z"),
				Interval: 1, Unit: UnitDay,
				End: EndCondition{Kind: EndAfterOccurrences, Date: dt("2025-06-01T00:00:00Z"), Count: 9},
			},
			want: Schedule{
				Kind: ScheduleCustom, Anchor: dt("2025-01-01T08:00:00Z"),
				Interval: 1, Unit: UnitDay,
				End: EndCondition{Kind: EndAfterOccurrences, Count: 9},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sched.Clean(); got != tt.want {
				t.Errorf("Clean() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
