package recorder

import (
	"context"
	"sync"
	"time"
)

// HandleFunc receives each closed interval produced by Dwell.
type HandleFunc func(ctx context.Context, vc VisitClose) error

type openVisit struct {
	url      string
	title    string
	start    time.Time
	lastSeen time.Time
}

// Dwell follows the single active tab and emits closed intervals on tab
// switch, blur, and at least every flush interval of continuous dwell.
type Dwell struct {
	handle     HandleFunc
	flushEvery time.Duration

	mu     sync.Mutex
	active *openVisit
}

// NewDwell creates a Dwell. A non-positive flushEvery defaults to a minute.
func NewDwell(handle HandleFunc, flushEvery time.Duration) *Dwell {
	if flushEvery <= 0 {
		flushEvery = time.Minute
	}
	return &Dwell{handle: handle, flushEvery: flushEvery}
}

// Activate closes the current interval at t and starts one for rawURL.
func (d *Dwell) Activate(ctx context.Context, rawURL, title string, t time.Time) error {
	d.mu.Lock()
	closed := d.closeLocked(t)
	d.active = &openVisit{url: rawURL, title: title, start: t, lastSeen: t}
	d.mu.Unlock()
	return d.emit(ctx, closed)
}

// Heartbeat marks the active tab as still viewed at t. Long dwells are cut
// into flush-sized intervals. A heartbeat arriving after a silence longer
// than two flush intervals ends the interval at the last heartbeat.
func (d *Dwell) Heartbeat(ctx context.Context, t time.Time) error {
	d.mu.Lock()
	a := d.active
	if a == nil || t.Before(a.lastSeen) {
		d.mu.Unlock()
		return nil
	}

	var closed []VisitClose
	switch {
	case t.Sub(a.lastSeen) > 2*d.flushEvery:
		closed = append(closed, VisitClose{URL: a.url, Title: a.title, Start: a.start, End: a.lastSeen})
		a.start, a.lastSeen = t, t
	case t.Sub(a.start) >= d.flushEvery:
		closed = append(closed, VisitClose{URL: a.url, Title: a.title, Start: a.start, End: t})
		a.start, a.lastSeen = t, t
	default:
		a.lastSeen = t
	}
	d.mu.Unlock()
	return d.emit(ctx, closed)
}

// Blur closes the current interval at t. Nothing is active afterwards.
func (d *Dwell) Blur(ctx context.Context, t time.Time) error {
	d.mu.Lock()
	closed := d.closeLocked(t)
	d.active = nil
	d.mu.Unlock()
	return d.emit(ctx, closed)
}

// Active reports the URL being tracked, if any.
func (d *Dwell) Active() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return "", false
	}
	return d.active.url, true
}

func (d *Dwell) closeLocked(t time.Time) []VisitClose {
	a := d.active
	if a == nil {
		return nil
	}
	end := t
	if end.Before(a.start) {
		end = a.start
	}
	return []VisitClose{{URL: a.url, Title: a.title, Start: a.start, End: end}}
}

// emit runs outside the lock so a slow handler does not block new signals.
func (d *Dwell) emit(ctx context.Context, closed []VisitClose) error {
	var first error
	for _, vc := range closed {
		if err := d.handle(ctx, vc); err != nil && first == nil {
			first = err
		}
	}
	return first
}
