package intervention

import (
	"time"

	"github.com/runnerr0/focuslens/internal/clock"
)

// Gate suppresses evaluation until the cooldown since the last triggered
// intervention has elapsed.
type Gate struct {
	cooldown time.Duration
	clock    clock.Clock
}

// NewGate creates a Gate. A non-positive cooldown defaults to ten minutes.
func NewGate(cooldown time.Duration, clk clock.Clock) Gate {
	if cooldown <= 0 {
		cooldown = 10 * time.Minute
	}
	if clk == nil {
		clk = clock.System{}
	}
	return Gate{cooldown: cooldown, clock: clk}
}

// Open reports whether a new intervention may be evaluated. A zero
// lastTriggered means nothing was ever triggered.
func (g Gate) Open(lastTriggered time.Time) bool {
	return g.Remaining(lastTriggered) == 0
}

// Remaining is the time left until the gate opens.
func (g Gate) Remaining(lastTriggered time.Time) time.Duration {
	if lastTriggered.IsZero() {
		return 0
	}
	left := g.cooldown - g.clock.Now().Sub(lastTriggered)
	if left < 0 {
		return 0
	}
	return left
}
