package model

import "time"

// Occurrence is a single concrete instance of an event, after recurrence
// expansion and conversion into the display timezone.
type Occurrence struct {
	SourceID string `json:"source_id"` // calendar source ID
	UID      string `json:"uid"`       // iCalendar UID

	// InstanceKey identifies one occurrence of a recurring event: the UID
	// and the occurrence start in iCalendar form.
	InstanceKey string `json:"instance_key"`

	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Status      string `json:"status,omitempty"`

	AllDay    bool `json:"all_day"`
	Recurring bool `json:"recurring"`
	// Override is set when a RECURRENCE-ID VEVENT replaced the instance.
	Override bool `json:"override,omitempty"`

	// Start / End are in the display timezone. End is exclusive; a whole-day
	// occurrence ends at midnight after its last day.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Overlap is how the occurrence relates to the agenda day, e.g.
	// "starts-past-ends-future". Empty outside agenda results.
	Overlap string `json:"overlap,omitempty"`
}

// Calendar summarizes one loaded source.
type Calendar struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Events    int       `json:"events"`
	Recurring int       `json:"recurring"`
	FromCache bool      `json:"from_cache"`
	LoadedAt  time.Time `json:"loaded_at"`
	Timezones []string  `json:"timezones,omitempty"`
}

// Run records one calendar refresh.
type Run struct {
	ID        string        `json:"id"`
	At        time.Time     `json:"at"`
	Took      time.Duration `json:"took"`
	Calendars int           `json:"calendars"`
	Events    int           `json:"events"`
	Failures  []string      `json:"failures,omitempty"`
	// Err is set when the refresh produced no snapshot.
	Err string `json:"error,omitempty"`
}

// OK reports whether the run produced a snapshot.
func (r Run) OK() bool { return r.Err == "" }
