package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/runnerr0/focuslens/internal/domain"
	"github.com/runnerr0/focuslens/internal/monitor"
	"github.com/runnerr0/focuslens/internal/recorder"
	"github.com/runnerr0/focuslens/internal/stats"
	"github.com/runnerr0/focuslens/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status              string `json:"status"`
	Version             string `json:"version"`
	PendingDelivery     int    `json:"pending_delivery"`
	QueuedInterventions int    `json:"queued_interventions"`
}

type visitResponse struct {
	Recorded bool              `json:"recorded"`
	Reason   string            `json:"reason,omitempty"`
	Visit    *domain.SiteVisit `json:"visit,omitempty"`
}

type tabRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type outcomeRequest struct {
	Outcome string `json:"outcome"`
}

type taskRequest struct {
	Title string `json:"title"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps a pipeline error to a status code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, stats.ErrInvalidQuery),
		errors.Is(err, domain.ErrUnknownCategory),
		errors.Is(err, domain.ErrUnknownOutcome),
		errors.Is(err, monitor.ErrEmptyTask):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// decode reads a JSON body of at most the configured size into v.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxRequestSize))
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:              "ok",
		Version:             s.version,
		PendingDelivery:     s.sink.Pending(),
		QueuedInterventions: s.mon.Manager().QueueLen(),
	})
}

func (s *Server) handleVisit(w http.ResponseWriter, r *http.Request) {
	var vc recorder.VisitClose
	if !s.decode(w, r, &vc) {
		return
	}
	v, err := s.mon.HandleVisit(r.Context(), vc)
	if err != nil {
		if monitor.Rejected(err) {
			writeJSON(w, http.StatusAccepted, visitResponse{Recorded: false, Reason: err.Error()})
			return
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, visitResponse{Recorded: true, Visit: v})
}

func (s *Server) handleTabActivate(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := s.mon.TabActivated(r.Context(), req.URL, req.Title); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTabHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.mon.TabHeartbeat(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTabBlur(w http.ResponseWriter, r *http.Request) {
	if err := s.mon.TabBlurred(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	d, err := s.mon.Today(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	d, err := s.mon.DailyStats(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := s.mon.StatsForRange(r.Context(), q.Get("start"), q.Get("end"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.mon.TodayDate()
	}
	roll, err := s.mon.Weekly(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roll)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today, _ := time.Parse(domain.DateLayout, s.mon.TodayDate())
	year, month := today.Year(), int(today.Month())

	var err error
	if v := q.Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "year must be a number")
			return
		}
	}
	if v := q.Get("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "month must be a number")
			return
		}
	}
	roll, err := s.mon.Monthly(r.Context(), year, time.Month(month))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roll)
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	n, err := s.mon.CurrentStreak(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"streak": n})
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		date = s.mon.TodayDate()
	}
	category := q.Get("category")
	if category == "" {
		category = string(domain.CategoryDistraction)
	}
	cat, err := domain.ParseCategory(category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative number")
			return
		}
	}
	sites, err := s.mon.TopSites(r.Context(), date, cat, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sites)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.State())
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.ResetSession(r.Context()))
}

func (s *Server) handleListInterventions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := storage.InterventionQuery{Date: q.Get("date"), Status: domain.Status(q.Get("status"))}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative number")
			return
		}
		query.Limit = n
	}
	list, err := s.mon.Interventions(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sink.Drain())
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if !s.decode(w, r, &req) {
		return
	}
	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	iv, err := s.mon.RecordOutcome(r.Context(), chi.URLParam(r, "id"), outcome)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.mon.ActiveTask(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "no active task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleSetTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !s.decode(w, r, &req) {
		return
	}
	task, err := s.mon.SetTask(r.Context(), req.Title)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleClearTask(w http.ResponseWriter, r *http.Request) {
	if err := s.mon.ClearTask(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.mon.ExportAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="focuslens-export.json"`)
	_, _ = w.Write(data)
}
