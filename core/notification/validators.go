package notification

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/hmjahid/school-management-system-sub002/core"
)

var (
	scheduleKindTag  = "schedulekind"
	scheduleKindText = "invalid schedule kind"

	intervalUnitTag  = "intervalunit"
	intervalUnitText = "invalid interval unit"

	endKindTag  = "endkind"
	endKindText = "invalid end condition kind"

	recipientKindTag  = "recipientkind"
	recipientKindText = "invalid recipient kind"

	knownChannelsTag  = "knownchannels"
	knownChannelsText = "unknown delivery channel"

	customIntervalTag  = "custominterval"
	customIntervalText = "a custom schedule requires an interval of at least 1 and a unit"

	endDateTag  = "enddate"
	endDateText = "end date cannot be before the first occurrence"

	endCountTag  = "endcount"
	endCountText = "occurrence count must be at least 1"

	recipientRefTag  = "recipientref"
	recipientRefText = "recipient reference is required for this kind"
)

// InitValidators registers this package's custom validators and translations.
func InitValidators() {
	_ = core.Validate.RegisterValidation(scheduleKindTag, oneOfValidation(ScheduleKinds))
	core.RegisterCustomTranslation(scheduleKindTag, scheduleKindText)

	_ = core.Validate.RegisterValidation(intervalUnitTag, oneOfValidation(IntervalUnits))
	core.RegisterCustomTranslation(intervalUnitTag, intervalUnitText)

	_ = core.Validate.RegisterValidation(endKindTag, oneOfValidation(EndKinds))
	core.RegisterCustomTranslation(endKindTag, endKindText)

	_ = core.Validate.RegisterValidation(recipientKindTag, oneOfValidation(RecipientKinds))
	core.RegisterCustomTranslation(recipientKindTag, recipientKindText)

	_ = core.Validate.RegisterValidation(knownChannelsTag, knownChannelsValidation)
	core.RegisterCustomTranslation(knownChannelsTag, knownChannelsText)

	core.Validate.RegisterStructValidation(scheduleStructValidation, Schedule{})
	core.RegisterCustomTranslation(customIntervalTag, customIntervalText)
	core.RegisterCustomTranslation(endDateTag, endDateText)
	core.RegisterCustomTranslation(endCountTag, endCountText)

	core.Validate.RegisterStructValidation(recipientStructValidation, Recipient{})
	core.RegisterCustomTranslation(recipientRefTag, recipientRefText)
}

// Custom Validators

// oneOfValidation checks that the field value is one of the allowed strings.
func oneOfValidation(allowed []string) validator.Func {
	sorted := append([]string(nil), allowed...)
	sort.Strings(sorted)
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		idx := sort.SearchStrings(sorted, val)
		return idx < len(sorted) && sorted[idx] == val
	}
}

// knownChannelsValidation checks that every requested channel id is known.
func knownChannelsValidation(fl validator.FieldLevel) bool {
	channels, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	sort.Strings(Channels)
	for _, ch := range channels {
		idx := sort.SearchStrings(Channels, ch)
		if idx >= len(Channels) || Channels[idx] != ch {
			return false
		}
	}
	return true
}

// scheduleStructValidation enforces the per-variant shape of a Schedule:
// - custom requires interval >= 1 and a unit
// - an end date cannot precede the anchor
// - after_occurrences requires a positive count
func scheduleStructValidation(sl validator.StructLevel) {
	s, ok := sl.Current().Interface().(Schedule)
	if !ok {
		return
	}

	if s.Kind == ScheduleCustom && (s.Interval < 1 || s.Unit == "") {
		sl.ReportError(s.Interval, "interval", "Interval", customIntervalTag, "")
	}

	if s.Kind == ScheduleOnce { // once ignores its end condition
		return
	}
	switch s.End.Kind {
	case EndOnDate:
		if s.End.Date.IsZero() || s.End.Date.Before(s.Anchor) {
			sl.ReportError(s.End.Date, "end.date", "Date", endDateTag, "")
		}
	case EndAfterOccurrences:
		if s.End.Count < 1 {
			sl.ReportError(s.End.Count, "end.count", "Count", endCountTag, "")
		}
	}
}

// recipientStructValidation checks that the reference matching the recipient kind is set.
func recipientStructValidation(sl validator.StructLevel) {
	r, ok := sl.Current().Interface().(Recipient)
	if !ok {
		return
	}

	var ref, field string
	switch r.Kind {
	case RecipientUser:
		ref, field = r.User, "user"
	case RecipientRole:
		ref, field = r.Role, "role"
	case RecipientGroup:
		ref, field = r.Group, "group"
	default:
		return
	}
	if ref == "" {
		sl.ReportError(ref, field, fmt.Sprintf("%q reference", r.Kind), recipientRefTag, "")
	}
}
