package moment

import "errors"

var (
	ErrMalformed                     = errors.New("malformed moment")
	ErrAmbiguousTime                 = errors.New("ambiguous local time in zone")
	ErrMissingTZID                   = errors.New("missing TZID= or VALUE=DATE: prefix")
	ErrUnknownZone                   = errors.New("unknown time zone")
	ErrConstructingTimedFromWholeDay = errors.New("cannot set a time of day on a whole day")
	ErrInvalidDate                   = errors.New("invalid date")
	ErrInvalidOrdinal                = errors.New("weekday ordinal must not be zero")
	ErrOrdinalNotInMonth             = errors.New("weekday ordinal does not occur in month")
	ErrIllegalInterval               = errors.New("interval ends before a start at the reference")
)
