package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"calrecur/internal/agenda"
	appLog "calrecur/internal/log"
	"calrecur/internal/model"
	"calrecur/internal/moment"
	"calrecur/internal/validate"
)

const (
	defaultBackfillDays = 1
	defaultRunsLimit    = 20
)

type agendaQuery struct {
	At   string `query:"at"`
	Days int    `query:"days" validate:"min=1,max=366"`
}

type eventsQuery struct {
	From     string `query:"from"`
	To       string `query:"to"`
	Days     int    `query:"days" validate:"min=1,max=366"`
	Backfill int    `query:"backfill" validate:"min=0,max=366"`
}

type runsQuery struct {
	Limit int `query:"limit" validate:"min=1,max=500"`
}

// agendaResponse is the JSON shape for /api/agenda.
type agendaResponse struct {
	Timezone string          `json:"timezone"`
	Days     []agenda.Agenda `json:"days"`
}

// eventsResponse is the JSON shape for /api/events.
type eventsResponse struct {
	Occurrences     []model.Occurrence `json:"occurrences"`
	TruncatedUIDs   []string           `json:"truncated_uids,omitempty"`
	FailedUIDs      []string           `json:"failed_uids,omitempty"`
	RangeStart      time.Time          `json:"range_start"`
	RangeEnd        time.Time          `json:"range_end"`
	DisplayTimeZone string             `json:"display_timezone"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAgenda returns the events in progress on each of days dates.
//
// GET /api/agenda?at=2022-01-06&days=3
//   - at:   first date, as YYYY-MM-DD, YYYYMMDD or RFC 3339 (default today)
//   - days: number of dates (default horizon_days)
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var in agendaQuery
	var err error
	in.At = q.Get("at")
	if in.Days, err = queryInt(q, "days", s.cfg.HorizonDays); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc := s.svc.Options().Location
	from := s.svc.Today()
	if in.At != "" {
		if from, err = parseDay(in.At, loc); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	days, err := s.svc.Agenda(r.Context(), from, in.Days)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agendaResponse{Timezone: loc.String(), Days: days})
}

func (s *Server) handleCalendars(w http.ResponseWriter, _ *http.Request) {
	snap := s.svc.Snapshot()
	if snap == nil {
		writeServiceError(w, agenda.ErrNoSnapshot)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleEvents returns expanded occurrences within a time window.
//
// GET /api/events?days=7&backfill=1
// GET /api/events?from=2022-01-01&to=2022-02-01
//   - days:     days ahead of now (default horizon_days)
//   - backfill: days before now (default 1)
//   - from, to: explicit bounds, overriding days and backfill
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := eventsQuery{From: q.Get("from"), To: q.Get("to")}
	var err error
	if in.Days, err = queryInt(q, "days", s.cfg.HorizonDays); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Backfill, err = queryInt(q, "backfill", defaultBackfillDays); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc := s.svc.Options().Location
	now := s.now().In(loc)
	rangeStart := now.AddDate(0, 0, -in.Backfill)
	rangeEnd := now.AddDate(0, 0, in.Days)
	if in.From != "" {
		if rangeStart, err = parseInstant(in.From, loc); err != nil {
			writeError(w, http.StatusBadRequest, "from: "+err.Error())
			return
		}
	}
	if in.To != "" {
		if rangeEnd, err = parseInstant(in.To, loc); err != nil {
			writeError(w, http.StatusBadRequest, "to: "+err.Error())
			return
		}
	}
	if rangeEnd.Before(rangeStart) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	res, err := s.svc.Occurrences(rangeStart, rangeEnd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	occs := res.Occurrences
	if occs == nil {
		occs = []model.Occurrence{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Occurrences:     occs,
		TruncatedUIDs:   res.TruncatedEvents,
		FailedUIDs:      res.FailedEvents,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	var in runsQuery
	var err error
	if in.Limit, err = queryInt(r.URL.Query(), "limit", defaultRunsLimit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := s.history.RecentRuns(r.Context(), in.Limit)
	if err != nil {
		appLog.Error("api runs: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func queryInt(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// parseDay reads a date as YYYY-MM-DD, YYYYMMDD or an RFC 3339 instant,
// which is taken at its date in loc.
func parseDay(s string, loc *time.Location) (moment.Moment, error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return moment.WholeDayOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return moment.WholeDayOf(t.In(loc)), nil
	}
	m, err := moment.Parse(s)
	if err != nil {
		return moment.Moment{}, fmt.Errorf("at: %w", err)
	}
	if m.IsTimed() {
		return moment.WholeDayOf(m.In(loc)), nil
	}
	return m, nil
}

// parseInstant reads RFC 3339 or a YYYY-MM-DD date, taken as midnight in loc.
func parseInstant(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", s)
	}
	return t, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agenda.ErrNoSnapshot):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, agenda.ErrNoCalendars):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		// Client went away.
	default:
		appLog.Error("api request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
