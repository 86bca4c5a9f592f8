package rrule

import "errors"

var (
	ErrMissingFrequency       = errors.New("rrule: rule must start with FREQ")
	ErrUnknownFrequency       = errors.New("rrule: unknown frequency")
	ErrMissingCompanion       = errors.New("rrule: BYMONTH needs BYMONTHDAY or BYDAY")
	ErrMissingByDayOrMonthDay = errors.New("rrule: MONTHLY needs BYDAY or BYMONTHDAY")
	ErrInvalidWeekday         = errors.New("rrule: invalid weekday")
	ErrInvalidOrdinal         = errors.New("rrule: invalid ordinal")
	ErrInvalidValue           = errors.New("rrule: invalid value")
	ErrMalformedToken         = errors.New("rrule: malformed token")
	ErrUnsupportedKey         = errors.New("rrule: unsupported key")
)
