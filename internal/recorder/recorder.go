// Package recorder turns closed attention intervals into persisted visits
// and pushes them through the aggregation pipeline.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/runnerr0/focuslens/internal/domain"
)

var (
	ErrInvalidInterval = errors.New("visit ends before it starts")
	ErrTooShort        = errors.New("visit shorter than minimum duration")
	ErrExcluded        = errors.New("visit domain is excluded")
	ErrInvalidURL      = errors.New("not a recordable web URL")
)

// VisitClose is the event source's notification that the user stopped
// viewing a page.
type VisitClose struct {
	URL   string    `json:"url"`
	Title string    `json:"title"`
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

// Store is the persistence the recorder needs.
type Store interface {
	AddVisit(ctx context.Context, v *domain.SiteVisit) error
	RecentVisits(ctx context.Context, n int) ([]domain.SiteVisit, error)
	IsExcluded(host string) bool
}

// Classifier maps a URL to its category.
type Classifier interface {
	Classify(rawURL string) domain.Classification
}

// Aggregator folds a persisted visit into daily stats.
type Aggregator interface {
	RecordVisit(ctx context.Context, v domain.SiteVisit) error
}

// Tracker maintains the behavioral state.
type Tracker interface {
	Update(ctx context.Context, visits []domain.SiteVisit) domain.UserState
	ResetSession(ctx context.Context) domain.UserState
	WindowSize() int
}

// Options tunes the recorder.
type Options struct {
	MinDuration time.Duration
	IdleReset   time.Duration
	Location    *time.Location
}

// Recorder is the entry point for every closed visit.
type Recorder struct {
	store      Store
	classifier Classifier
	stats      Aggregator
	tracker    Tracker
	logger     hclog.Logger
	opts       Options
}

// New creates a Recorder. Zero options fall back to a 5 second minimum,
// a 30 minute idle reset and the local timezone.
func New(store Store, classifier Classifier, stats Aggregator, tracker Tracker, opts Options, logger hclog.Logger) *Recorder {
	if opts.MinDuration <= 0 {
		opts.MinDuration = 5 * time.Second
	}
	if opts.IdleReset <= 0 {
		opts.IdleReset = 30 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Recorder{
		store:      store,
		classifier: classifier,
		stats:      stats,
		tracker:    tracker,
		logger:     logger,
		opts:       opts,
	}
}

// Record validates, classifies and persists one closed visit, then updates
// the aggregate and the behavioral state. Rejections return a sentinel
// error and persist nothing. A failed aggregate update is logged and does
// not undo the persisted visit.
func (r *Recorder) Record(ctx context.Context, vc VisitClose) (*domain.SiteVisit, error) {
	if vc.End.Before(vc.Start) {
		return nil, ErrInvalidInterval
	}
	duration := vc.End.Sub(vc.Start)
	if duration < r.opts.MinDuration {
		return nil, fmt.Errorf("%w: %s", ErrTooShort, duration)
	}

	host, err := hostOf(vc.URL)
	if err != nil {
		return nil, err
	}
	if r.store.IsExcluded(host) {
		return nil, fmt.Errorf("%w: %s", ErrExcluded, host)
	}

	// The previous visit is read before persisting so the idle gap can be
	// measured against it.
	previous, err := r.store.RecentVisits(ctx, 1)
	if err != nil {
		r.logger.Warn("reading previous visit failed", "error", err)
	}

	class := r.classifier.Classify(vc.URL)
	v := &domain.SiteVisit{
		URL:         vc.URL,
		Domain:      host,
		Title:       strings.TrimSpace(vc.Title),
		StartTime:   vc.Start,
		EndTime:     vc.End,
		DurationMs:  duration.Milliseconds(),
		Category:    class.Category,
		Subcategory: class.Subcategory,
		Date:        domain.DateOf(vc.Start, r.opts.Location),
	}

	if err := r.store.AddVisit(ctx, v); err != nil {
		r.logger.Error("visit lost", "domain", host, "error", err)
		return nil, fmt.Errorf("persist visit: %w", err)
	}

	if err := r.stats.RecordVisit(ctx, *v); err != nil {
		r.logger.Error("updating daily stats failed", "visit", v.ID, "date", v.Date, "error", err)
	}

	if len(previous) > 0 && vc.Start.Sub(previous[0].EndTime) >= r.opts.IdleReset {
		r.logger.Debug("idle gap, resetting session", "gap", vc.Start.Sub(previous[0].EndTime))
		r.tracker.ResetSession(ctx)
	}

	recent, err := r.store.RecentVisits(ctx, r.tracker.WindowSize())
	if err != nil {
		r.logger.Warn("loading recent visits failed", "error", err)
	} else {
		r.tracker.Update(ctx, recent)
	}

	r.logger.Debug("visit recorded", "domain", host, "category", v.Category,
		"subcategory", v.Subcategory, "duration_ms", v.DurationMs)
	return v, nil
}

// hostOf returns the lowercased hostname of an http(s) URL without a
// leading "www.".
func hostOf(rawURL string) (string, error) {
	u, err := url.ParseRequestURI(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www."), nil
}
