// Package announce decides when the detected scene has changed enough to be
// spoken again.
package announce

import (
	"strings"
	"time"

	"echopath/internal/models"
)

const emptyPrompt = "No objects detected."

// State is the announcement memory carried from one frame to the next.
type State struct {
	LastAnnouncedAt time.Time
	LastAnnounced   models.ObjectSet
}

// Decision is produced when the policy fires.
type Decision struct {
	Prompt  string
	Objects []string
}

// Policy debounces announcements: a new one fires only when more than the
// interval has elapsed since the last one and the set of objects differs.
type Policy struct {
	interval time.Duration
	state    State
}

// NewPolicy initializes the state once: the clock starts at start and the
// last announced set is empty.
func NewPolicy(interval time.Duration, start time.Time) *Policy {
	return &Policy{
		interval: interval,
		state:    State{LastAnnouncedAt: start, LastAnnounced: models.NewObjectSet()},
	}
}

// Evaluate checks the current frame's objects and updates the state when the
// policy fires.
func (p *Policy) Evaluate(now time.Time, current models.ObjectSet) (Decision, bool) {
	d, fired, next := Step(p.state, p.interval, now, current)
	p.state = next
	return d, fired
}

func (p *Policy) State() State {
	return State{LastAnnouncedAt: p.state.LastAnnouncedAt, LastAnnounced: p.state.LastAnnounced.Clone()}
}

func (p *Policy) Interval() time.Duration {
	return p.interval
}

// Step is the pure transition behind Evaluate. The returned state equals the
// input state unless the policy fired.
func Step(state State, interval time.Duration, now time.Time, current models.ObjectSet) (Decision, bool, State) {
	if now.Sub(state.LastAnnouncedAt) <= interval {
		return Decision{}, false, state
	}
	if current.Equal(state.LastAnnounced) {
		return Decision{}, false, state
	}

	objects := current.Sorted()
	next := State{LastAnnouncedAt: now, LastAnnounced: current.Clone()}
	return Decision{Prompt: Prompt(objects), Objects: objects}, true, next
}

// Prompt builds the factual sentence handed to the summarizer.
func Prompt(objects []string) string {
	if len(objects) == 0 {
		return emptyPrompt
	}
	return "Objects detected: " + strings.Join(objects, ", ") + "."
}
