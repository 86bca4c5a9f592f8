package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/samber/mo"

	appLog "calrecur/internal/log"
	"calrecur/internal/moment"
	"calrecur/internal/occurrence"
	"calrecur/internal/rrule"
)

var (
	ErrEmptyBody    = errors.New("ics: empty body")
	ErrMissingUID   = errors.New("ics: missing UID")
	ErrMissingStart = errors.New("ics: missing DTSTART")
)

// Calendar is one parsed ICS document.
type Calendar struct {
	Source Source
	// Name is X-WR-CALNAME when the document carries one.
	Name string
	// Timezones lists the TZIDs of the embedded VTIMEZONE blocks.
	Timezones []string
	Events    []ParsedEvent
}

// ParsedEvent is the normalized representation of a VEVENT. Start and End
// are DTSTART and DTEND as written; End is exclusive, as in the file.
type ParsedEvent struct {
	Source Source

	UID      string
	Sequence int

	Summary       string
	Description   string
	Location      string
	Status        string
	Organizer     string
	ConferenceURL string

	Created      mo.Option[moment.Moment]
	LastModified mo.Option[moment.Moment]
	Stamp        mo.Option[moment.Moment]

	Start moment.Moment
	End   moment.Moment
	// Zone is the zone DTSTART was written in: its TZID, UTC for UTC and
	// date values, time.Local for floating times.
	Zone   *time.Location
	AllDay bool

	RawRRule   string
	Rule       rrule.Rule
	Exclusions []moment.Zoned

	// Recurrence is RECURRENCE-ID: the instance of UID this VEVENT replaces.
	Recurrence mo.Option[moment.Moment]
}

// IsOverride reports whether the event replaces one instance of a recurring
// event.
func (e ParsedEvent) IsOverride() bool {
	return e.Recurrence.IsPresent()
}

// Event returns the recurrence-relevant view of e. Whole-day events end on
// their last day rather than the exclusive DTEND, and timed exclusions of a
// whole-day event are read as dates in their own zone.
func (e ParsedEvent) Event() occurrence.Event {
	end := e.End
	if e.AllDay && end.IsWholeDay() && end.After(e.Start) {
		end = end.AddDays(-1)
	}

	exclusions := make([]moment.Moment, 0, len(e.Exclusions))
	for _, ex := range e.Exclusions {
		m := ex.Moment
		if e.Start.IsWholeDay() && m.IsTimed() && ex.Location != nil {
			m = moment.WholeDayOf(m.In(ex.Location))
		}
		exclusions = append(exclusions, m)
	}

	return occurrence.Event{
		Start:      e.Start,
		End:        end,
		Rule:       e.Rule,
		Exclusions: exclusions,
	}
}

// ParseICS parses a single ICS payload.
//
//   - DTSTART/DTEND/EXDATE values are read with their TZID or VALUE=DATE
//     parameter; local times skipped or repeated by a DST change are errors.
//   - RRULE is parsed into an rrule.Rule; the raw text is kept as well.
//   - An event that fails to parse is logged and skipped. Only a document
//     that cannot be read at all is an error.
func ParseICS(src Source, body []byte) (Calendar, error) {
	out := Calendar{Source: src}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, ErrEmptyBody
	}

	cal, err := ical.ParseCalendarWithOptions(bytes.NewReader(body),
		ical.WithUnknownPropertyHandler(ical.AcceptUnknownPropertyHandler))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "source", src.Redacted())
		return out, fmt.Errorf("ics: parse %s: %w", src.ID, err)
	}

	for _, p := range cal.CalendarProperties {
		if p.IANAToken == string(ical.PropertyXWRCalName) {
			out.Name = p.Value
		}
	}
	for _, tz := range cal.Timezones() {
		if p := tz.GetProperty(ical.ComponentPropertyTzid); p != nil && p.Value != "" {
			out.Timezones = append(out.Timezones, p.Value)
		}
	}

	skipped := 0
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			skipped++
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "uid", ev.UID)
			continue
		}
		out.Events = append(out.Events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "source", src.Redacted(),
		"event_count", len(out.Events), "skipped", skipped, "timezones", len(out.Timezones))
	return out, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent
	out.Source = src

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, ErrMissingUID
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Sequence = n
		}
	}

	out.Summary = text(ve, ical.ComponentPropertySummary)
	out.Description = text(ve, ical.ComponentPropertyDescription)
	out.Location = text(ve, ical.ComponentPropertyLocation)
	out.Status = text(ve, ical.ComponentPropertyStatus)
	out.Organizer = strings.TrimPrefix(text(ve, ical.ComponentPropertyOrganizer), "mailto:")
	out.ConferenceURL = text(ve, ical.ComponentProperty("X-GOOGLE-CONFERENCE"))

	out.Created = optionalMoment(ve, ical.ComponentPropertyCreated)
	out.LastModified = optionalMoment(ve, ical.ComponentPropertyLastModified)
	out.Stamp = optionalMoment(ve, ical.ComponentPropertyDtstamp)

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil || startProp.Value == "" {
		return out, ErrMissingStart
	}
	start, err := propertyMoment(startProp, strings.TrimSpace(startProp.Value))
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start.Moment
	out.Zone = start.Location
	out.AllDay = start.Moment.IsWholeDay()

	out.End = out.Start
	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil && endProp.Value != "" {
		end, err := propertyMoment(endProp, strings.TrimSpace(endProp.Value))
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = end.Moment
	}
	if out.End.Before(out.Start) {
		return out, fmt.Errorf("DTEND %s before DTSTART %s: %w", out.End, out.Start, moment.ErrIllegalInterval)
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil && rruleProp.Value != "" {
		out.RawRRule = rruleProp.Value
		rule, err := rrule.Parse(rruleProp.Value)
		if err != nil {
			return out, fmt.Errorf("RRULE: %w", err)
		}
		out.Rule = rule
	}

	// EXDATE can appear multiple times, each with a comma list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for part := range strings.SplitSeq(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			ex, err := propertyMoment(p, part)
			if err != nil {
				return out, fmt.Errorf("EXDATE: %w", err)
			}
			out.Exclusions = append(out.Exclusions, ex)
		}
	}

	if ridProp := ve.GetProperty(ical.ComponentPropertyRecurrenceId); ridProp != nil && ridProp.Value != "" {
		rid, err := propertyMoment(ridProp, strings.TrimSpace(ridProp.Value))
		if err != nil {
			return out, fmt.Errorf("RECURRENCE-ID: %w", err)
		}
		out.Recurrence = mo.Some(rid.Moment)
	}

	return out, nil
}

// propertyMoment reads value using the TZID or VALUE=DATE parameter of p.
// Without either, value is a bare date, UTC or floating date-time.
func propertyMoment(p *ical.IANAProperty, value string) (moment.Zoned, error) {
	if tzid := param(p, ical.ParameterTzid); tzid != "" {
		return moment.ParseZoned("TZID=" + tzid + ":" + value)
	}
	if strings.EqualFold(param(p, ical.ParameterValue), "DATE") {
		return moment.ParseZoned("VALUE=DATE:" + value)
	}

	m, err := moment.Parse(value)
	if err != nil {
		return moment.Zoned{}, err
	}
	loc := time.UTC
	if m.IsTimed() && !strings.HasSuffix(value, "Z") {
		loc = time.Local
	}
	return moment.Zoned{Location: loc, Moment: m}, nil
}

func optionalMoment(ve *ical.VEvent, prop ical.ComponentProperty) mo.Option[moment.Moment] {
	p := ve.GetProperty(prop)
	if p == nil || p.Value == "" {
		return mo.None[moment.Moment]()
	}
	z, err := propertyMoment(p, strings.TrimSpace(p.Value))
	if err != nil {
		appLog.Debug("ics: ignoring unreadable timestamp", "property", string(prop), "value", p.Value)
		return mo.None[moment.Moment]()
	}
	return mo.Some(z.Moment)
}

func text(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func param(p *ical.IANAProperty, name ical.Parameter) string {
	if vs := p.ICalParameters[string(name)]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}
