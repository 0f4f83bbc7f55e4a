package validator

import (
	"fmt"

	"github.com/dbcalm/dbcalm/internal/db"
)

// ValidateSchedule applies the per-field range checks the API's schedule
// handlers and the schedules CLI run before saving a schedule. frequency
// dictates which optional fields are required.
func ValidateSchedule(s *db.Schedule) *Error {
	if s.Hour != nil && (*s.Hour < 0 || *s.Hour > 23) {
		return &Error{Code: CodeBadRequest, Message: "hour must be 0-23"}
	}
	if s.Minute != nil && (*s.Minute < 0 || *s.Minute > 59) {
		return &Error{Code: CodeBadRequest, Message: "minute must be 0-59"}
	}
	if s.DayOfWeek != nil && (*s.DayOfWeek < 0 || *s.DayOfWeek > 6) {
		return &Error{Code: CodeBadRequest, Message: "day_of_week must be 0-6"}
	}
	if s.DayOfMonth != nil && (*s.DayOfMonth < 1 || *s.DayOfMonth > 28) {
		return &Error{Code: CodeBadRequest, Message: "day_of_month must be 1-28"}
	}
	if s.IntervalValue != nil && *s.IntervalValue < 1 {
		return &Error{Code: CodeBadRequest, Message: "interval_value must be >= 1"}
	}

	switch s.Frequency {
	case db.FrequencyInterval:
		if s.IntervalValue == nil || s.IntervalUnit == nil {
			return &Error{Code: CodeBadRequest, Message: "interval frequency requires interval_value and interval_unit"}
		}
	case db.FrequencyHourly:
		if s.Minute == nil {
			return &Error{Code: CodeBadRequest, Message: "hourly frequency requires minute"}
		}
	case db.FrequencyDaily:
		if s.Minute == nil || s.Hour == nil {
			return &Error{Code: CodeBadRequest, Message: "daily frequency requires hour and minute"}
		}
	case db.FrequencyWeekly:
		if s.Minute == nil || s.Hour == nil || s.DayOfWeek == nil {
			return &Error{Code: CodeBadRequest, Message: "weekly frequency requires hour, minute and day_of_week"}
		}
	case db.FrequencyMonthly:
		if s.Minute == nil || s.Hour == nil || s.DayOfMonth == nil {
			return &Error{Code: CodeBadRequest, Message: "monthly frequency requires hour, minute and day_of_month"}
		}
	default:
		return &Error{Code: CodeBadRequest, Message: fmt.Sprintf("unrecognized frequency %q", s.Frequency)}
	}

	return nil
}
