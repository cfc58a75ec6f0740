package runtime

import (
	"slices"
	"time"

	"github.com/roach88/luma/internal/engine"
	"github.com/roach88/luma/internal/ir"
)

// Snapshot is the state of the store at the end of a frame. Snapshots are
// immutable once published.
type Snapshot struct {
	Seq      int64          `json:"seq"`
	Time     time.Time      `json:"time"`
	Clock    float64        `json:"clock"`
	Programs int            `json:"programs"`
	Markers  []int          `json:"markers"`
	Counts   engine.Counts  `json:"counts"`
	Activity Activity       `json:"activity"`
	Facts    []ir.Statement `json:"facts"`
	Errors   []string       `json:"errors"`
	Timeline []Span         `json:"timeline"`
	Duration time.Duration  `json:"duration"`
}

// Activity counts store events during one frame.
type Activity struct {
	Asserted   int `json:"asserted"`
	Registered int `json:"registered"`
	Fired      int `json:"fired"`
}

// Span is one timed phase of a frame.
type Span struct {
	Name     string        `json:"name"`
	Start    time.Duration `json:"start"` // Offset from frame start
	Duration time.Duration `json:"duration"`
}

// frameStats counts store activity. It is an engine.Observer and runs on
// the loop goroutine only.
type frameStats struct {
	cur Activity
}

func (s *frameStats) FactAsserted(ir.Statement)          { s.cur.Asserted++ }
func (s *frameStats) RuleRegistered(ir.Statement)        { s.cur.Registered++ }
func (s *frameStats) RuleFired(ir.Statement, ir.Binding) { s.cur.Fired++ }

func (s *frameStats) reset() {
	s.cur = Activity{}
}

// timeline records consecutive phases of a frame.
type timeline struct {
	start time.Time
	last  time.Time
	spans []Span
}

func newTimeline(start time.Time) *timeline {
	return &timeline{start: start, last: start}
}

// mark closes the phase that began at the previous mark.
func (t *timeline) mark(name string) {
	now := time.Now()
	t.spans = append(t.spans, Span{
		Name:     name,
		Start:    t.last.Sub(t.start),
		Duration: now.Sub(t.last),
	})
	t.last = now
}

func (t *timeline) total() time.Duration {
	return t.last.Sub(t.start)
}

func sortUnits(units []*unit) {
	slices.SortFunc(units, func(a, b *unit) int { return a.prog.ID() - b.prog.ID() })
}

func (l *Loop) snapshot(f Frame, info FrameInfo, programs int, tl *timeline) *Snapshot {
	present := l.markers.Present()
	ids := make([]int, len(present))
	for i, m := range present {
		ids[i] = m.ID
	}
	return &Snapshot{
		Seq:      f.Seq,
		Time:     f.Time,
		Clock:    info.Clock,
		Programs: programs,
		Markers:  ids,
		Counts:   l.store.Counts(),
		Activity: l.stats.cur,
		Facts:    l.store.Facts(),
		Errors:   l.store.ErrorLog().Errors(),
		Timeline: tl.spans,
		Duration: tl.total(),
	}
}
