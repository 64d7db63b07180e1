// Package intervention decides when to nudge the user and tracks each
// nudge through its lifecycle.
package intervention

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/runnerr0/focuslens/internal/clock"
	"github.com/runnerr0/focuslens/internal/domain"
	"github.com/runnerr0/focuslens/internal/oracle"
)

// EngineOptions holds the rule thresholds.
type EngineOptions struct {
	DistractionThreshold int
	FocusThreshold       int
	BreakAfter           time.Duration
	GoalCheckWindow      int
	OracleTimeout        time.Duration
	Location             *time.Location
}

func (o *EngineOptions) setDefaults() {
	if o.DistractionThreshold <= 0 {
		o.DistractionThreshold = 70
	}
	if o.FocusThreshold <= 0 {
		o.FocusThreshold = 30
	}
	if o.BreakAfter <= 0 {
		o.BreakAfter = 90 * time.Minute
	}
	if o.GoalCheckWindow <= 0 {
		o.GoalCheckWindow = 5
	}
	if o.OracleTimeout <= 0 {
		o.OracleTimeout = 5 * time.Second
	}
	if o.Location == nil {
		o.Location = time.Local
	}
}

// Input is everything a decision reads. Recent holds the latest visits,
// oldest first.
type Input struct {
	State  domain.UserState
	Today  *domain.DailyStats
	Task   *domain.Task
	Recent []domain.SiteVisit
}

// Engine evaluates the ordered rule list. It never mutates aggregate state.
type Engine struct {
	opts   EngineOptions
	gen    oracle.Generator
	clock  clock.Clock
	logger hclog.Logger
}

// NewEngine creates an Engine. gen may be nil.
func NewEngine(opts EngineOptions, gen oracle.Generator, clk clock.Clock, logger hclog.Logger) *Engine {
	opts.setDefaults()
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Engine{opts: opts, gen: gen, clock: clk, logger: logger}
}

// Decide returns the first matching intervention, or nil. Rules are checked
// in severity order and only one fires per evaluation.
func (e *Engine) Decide(ctx context.Context, in Input) *domain.Intervention {
	s := in.State

	switch {
	case s.DistractionScore > e.opts.DistractionThreshold:
		return e.distractionWarning(in)
	case s.SessionDuration > e.opts.BreakAfter && s.BreaksSinceFocus == 0:
		return e.breakSuggestion(s)
	case s.FocusLevel < e.opts.FocusThreshold:
		return e.focusReminder(ctx, s)
	case in.Task != nil && e.offTask(in.Task, in.Recent):
		return e.goalCheck(in.Task)
	}
	return nil
}

func (e *Engine) newIntervention(typ domain.InterventionType, p domain.Priority, title, msg string, action *domain.Action) *domain.Intervention {
	now := e.clock.Now()
	return &domain.Intervention{
		Type:      typ,
		Title:     title,
		Message:   msg,
		Priority:  p,
		Date:      domain.DateOf(now, e.opts.Location),
		Status:    domain.StatusCreated,
		Timestamp: now,
		Action:    action,
	}
}

func (e *Engine) distractionWarning(in Input) *domain.Intervention {
	msg := fmt.Sprintf("Most of your recent browsing (%d%%) has been on distracting sites.", in.State.DistractionScore)
	var action *domain.Action
	if in.Today != nil {
		if mins := in.Today.DistractionTimeMs / time.Minute.Milliseconds(); mins > 0 {
			msg = fmt.Sprintf("%s That's %d minutes today.", msg, mins)
		}
		if len(in.Today.TopDistractions) > 0 {
			action = &domain.Action{Kind: domain.ActionBlockSite, Payload: in.Today.TopDistractions[0].Domain}
		}
	}
	return e.newIntervention(domain.TypeDistractionWarning, domain.PriorityHigh, "Distraction Alert", msg, action)
}

func (e *Engine) breakSuggestion(s domain.UserState) *domain.Intervention {
	msg := fmt.Sprintf("You've been going for %d minutes without a break. Step away for five.",
		int(s.SessionDuration.Minutes()))
	return e.newIntervention(domain.TypeBreakSuggestion, domain.PriorityMedium, "Time for a Break", msg,
		&domain.Action{Kind: domain.ActionStartTimer, Payload: "300"})
}

func (e *Engine) focusReminder(ctx context.Context, s domain.UserState) *domain.Intervention {
	prompt := fmt.Sprintf(
		"A user's focus level over their recent browsing is %d%% and they are currently on %s sites. "+
			"Write one short, friendly sentence suggesting a concrete way to refocus.",
		s.FocusLevel, s.CurrentActivity)
	msg, generated := oracle.Ask(ctx, e.gen, e.opts.OracleTimeout, prompt, fallbackSuggestion(s.CurrentActivity))
	if e.gen != nil && !generated {
		e.logger.Debug("oracle unavailable, using static suggestion")
	}
	return e.newIntervention(domain.TypeFocusReminder, domain.PriorityMedium, "Focus Reminder", msg,
		&domain.Action{Kind: domain.ActionShowOverlay})
}

func (e *Engine) goalCheck(task *domain.Task) *domain.Intervention {
	msg := fmt.Sprintf("Your recent tabs don't look related to %q. Still on it?", task.Title)
	return e.newIntervention(domain.TypeGoalCheck, domain.PriorityMedium, "Goal Check", msg,
		&domain.Action{Kind: domain.ActionShowOverlay, Payload: task.Title})
}

// offTask reports whether none of the last GoalCheckWindow visits relate to
// task. With no visits there is nothing to check.
func (e *Engine) offTask(task *domain.Task, recent []domain.SiteVisit) bool {
	if len(recent) == 0 {
		return false
	}
	if len(recent) > e.opts.GoalCheckWindow {
		recent = recent[len(recent)-e.opts.GoalCheckWindow:]
	}
	words := taskWords(task.Title)
	for _, v := range recent {
		if Relevant(v, words) {
			return false
		}
	}
	return true
}

// Relevant reports whether v counts as work on a task with the given
// keywords.
func Relevant(v domain.SiteVisit, words []string) bool {
	switch domain.NormalizeSubcategory(string(v.Subcategory)) {
	case domain.SubcategoryProductivity, domain.SubcategoryDevelopment:
		return true
	}
	host := strings.ToLower(v.Domain)
	for _, w := range words {
		if strings.Contains(host, w) {
			return true
		}
	}
	return false
}

// taskWords returns the lowercased title words longer than three characters.
func taskWords(title string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len([]rune(w)) > 3 {
			out = append(out, w)
		}
	}
	return out
}

var suggestions = map[domain.Subcategory]string{
	domain.SubcategorySocial:        "Close the social feed and pick one task to finish in the next 25 minutes.",
	domain.SubcategoryEntertainment: "Pause the video and write down the next step of what you were working on.",
	domain.SubcategoryShopping:      "Save the cart for later and return to your main task.",
	domain.SubcategoryNews:          "The news will keep. Pick one small task and finish it first.",
	domain.SubcategoryGaming:        "Set the game aside and start a 25 minute focus block.",
}

func fallbackSuggestion(activity domain.Subcategory) string {
	if s, ok := suggestions[activity]; ok {
		return s
	}
	return "Pick one task and give it your full attention for the next 25 minutes."
}
