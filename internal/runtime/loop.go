package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/luma/internal/engine"
	"github.com/roach88/luma/internal/memory"
	"github.com/roach88/luma/internal/refs"
)

// TableID is the owner id of facts the loop claims on behalf of the table
// itself (clock, appearance) and the surface that regions are "on".
const TableID = -1

// Defaults for loop options.
const (
	DefaultKeepTime      = 300 * time.Millisecond
	DefaultLocationDelta = 3.0
	DefaultFlushInterval = 5 * time.Second
)

// Source produces frames. Next returns io.EOF when there are no more.
type Source interface {
	Next(ctx context.Context) (Frame, error)
}

// Recorder persists frame snapshots.
type Recorder interface {
	RecordFrame(ctx context.Context, snap *Snapshot) error
}

// Loop runs programs against camera frames.
//
// Each frame the store is cleared and rebuilt from scratch: recalled
// memories, claims and rules of every present or resident program, then
// the table's own facts (clock, marker geometry, appearance). Program units
// run concurrently on buffered scopes; everything that touches the store
// happens on the goroutine calling Frame.
//
// CRITICAL: Frame must not be called concurrently. Run owns the loop while
// it executes.
type Loop struct {
	programs *Programs
	store    *engine.Store
	refs     *refs.Registry
	bank     *memory.Bank
	markers  *MarkerCache
	stats    *frameStats
	recorder Recorder
	logger   *slog.Logger

	keep       time.Duration
	delta      float64
	flushEvery time.Duration
	maxSteps   int
	memoryDir  string
	names      refs.NameGenerator
	observers  engine.Observers

	epoch     time.Time
	lastClock float64
	lastFlush time.Time
	frames    int64
	frameNow  atomic.Int64 // UnixNano of the frame being processed
	latest    atomic.Pointer[Snapshot]
}

// Option configures a Loop.
type Option func(*Loop)

// WithKeepTime sets how long a marker stays present after it was last seen.
//
// Default: 300ms.
func WithKeepTime(d time.Duration) Option {
	return func(l *Loop) { l.keep = d }
}

// WithLocationDelta sets the corner jitter, in pixels, ignored by the
// marker cache.
//
// Default: 3.
func WithLocationDelta(delta float64) Option {
	return func(l *Loop) { l.delta = delta }
}

// WithFlushInterval sets how often dirty memories are written to disk.
//
// Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(l *Loop) { l.flushEvery = d }
}

// WithMaxSteps sets the per-frame step quota of the store.
func WithMaxSteps(n int) Option {
	return func(l *Loop) { l.maxSteps = n }
}

// WithMemoryDir sets the directory for memory files. Empty disables
// persistence.
func WithMemoryDir(dir string) Option {
	return func(l *Loop) { l.memoryDir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithNameGenerator sets the reference name generator.
func WithNameGenerator(g refs.NameGenerator) Option {
	return func(l *Loop) { l.names = g }
}

// WithRecorder journals every frame snapshot.
func WithRecorder(r Recorder) Option {
	return func(l *Loop) { l.recorder = r }
}

// WithObserver adds a store observer.
func WithObserver(o engine.Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// NewLoop creates a loop for programs.
func NewLoop(programs []Program, opts ...Option) *Loop {
	l := &Loop{
		programs:   NewPrograms(programs...),
		keep:       DefaultKeepTime,
		delta:      DefaultLocationDelta,
		flushEvery: DefaultFlushInterval,
		maxSteps:   engine.DefaultMaxSteps,
		logger:     slog.Default(),
		stats:      &frameStats{},
	}
	for _, opt := range opts {
		opt(l)
	}

	l.refs = refs.NewRegistry(l.names)
	l.markers = NewMarkerCache(l.delta)
	l.bank = memory.NewBank(l.memoryDir, l.refs, l.logger, memory.WithNow(l.now))

	observers := append(engine.Observers{l.stats}, l.observers...)
	l.store = engine.NewStore(
		engine.WithMaxSteps(l.maxSteps),
		engine.WithLogger(l.logger),
		engine.WithErrorLog(engine.NewDiagLog(l.logger)),
		engine.WithObserver(observers),
	)
	l.store.OnClear(l.refs.ClearFrame)
	return l
}

// Store returns the fact store. Only the goroutine driving the loop may use
// it.
func (l *Loop) Store() *engine.Store {
	return l.store
}

// Refs returns the reference registry.
func (l *Loop) Refs() *refs.Registry {
	return l.refs
}

// Memories returns the memory bank.
func (l *Loop) Memories() *memory.Bank {
	return l.bank
}

// Markers returns the marker cache.
func (l *Loop) Markers() *MarkerCache {
	return l.markers
}

// Programs returns the program index.
func (l *Loop) Programs() *Programs {
	return l.programs
}

// Latest returns the most recent snapshot, or nil before the first frame.
// Safe to call from any goroutine.
func (l *Loop) Latest() *Snapshot {
	return l.latest.Load()
}

func (l *Loop) now() time.Time {
	if n := l.frameNow.Load(); n != 0 {
		return time.Unix(0, n)
	}
	return time.Now()
}

// unit is one program run within a frame.
type unit struct {
	prog  Program
	scope *Scope
}

// Frame processes one frame and returns its snapshot.
//
// The only error returned is ctx's; program failures land in the store's
// error log.
func (l *Loop) Frame(ctx context.Context, f Frame) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tl := newTimeline(time.Now())

	l.frames++
	if f.Seq == 0 {
		f.Seq = l.frames
	}
	if f.Time.IsZero() {
		f.Time = time.Now()
	}
	if l.epoch.IsZero() {
		l.epoch = f.Time
		l.lastFlush = f.Time
	}
	l.frameNow.Store(f.Time.UnixNano())
	info := FrameInfo{
		Seq:       f.Seq,
		Time:      f.Time,
		Clock:     f.Time.Sub(l.epoch).Seconds(),
		LastClock: l.lastClock,
	}

	l.store.Clear()
	l.stats.reset()
	tl.mark("clear")

	l.markers.Sweep(f.Time, l.keep)
	l.markers.Observe(f.Time, f.Markers)
	tl.mark("markers")

	units := l.units(info)
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range units {
		g.Go(func() error {
			return l.runUnit(gctx, u)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	tl.mark("programs")

	for _, u := range units {
		for _, err := range u.scope.apply() {
			if !engine.IsQuotaError(err) {
				u.scope.LogError(err)
			}
		}
	}
	tl.mark("apply")

	l.assertTableFacts(f, info)
	l.lastClock = info.Clock
	tl.mark("table")

	if f.Time.Sub(l.lastFlush) >= l.flushEvery {
		if err := l.Flush(); err != nil {
			l.logger.Warn("memory flush failed", "error", err)
		}
		l.lastFlush = f.Time
		tl.mark("flush")
	}

	snap := l.snapshot(f, info, len(units), tl)
	l.latest.Store(snap)
	if l.recorder != nil {
		if err := l.recorder.RecordFrame(ctx, snap); err != nil {
			l.logger.Warn("journal write failed", "frame", f.Seq, "error", err)
		}
	}
	l.logger.Debug("frame",
		"seq", f.Seq,
		"programs", len(units),
		"facts", snap.Counts.Facts,
		"rules", snap.Counts.Rules,
		"duration", snap.Duration,
	)
	return snap, nil
}

// units returns resident and present programs in id order, each once.
func (l *Loop) units(info FrameInfo) []*unit {
	var units []*unit
	seen := make(map[int]bool)
	for _, prog := range l.programs.Resident() {
		seen[prog.ID()] = true
		units = append(units, &unit{prog: prog})
	}
	for _, m := range l.markers.Present() {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		units = append(units, &unit{prog: l.programs.GetOrBlank(m.ID)})
	}
	sortUnits(units)

	for _, u := range units {
		var marker *Marker
		if corners, ok := l.markers.Corners(u.prog.ID()); ok {
			marker = &Marker{ID: u.prog.ID(), Corners: corners}
		}
		u.scope = NewScope(u.prog.ID(), info, marker, ScopeServices{
			Store:  l.store,
			Memory: l.bank.For(u.prog.ID()),
			Refs:   l.refs,
			Logger: l.logger,
		})
	}
	return units
}

// runUnit runs one program against its buffered scope. Panics are recovered
// and logged as program errors.
func (l *Loop) runUnit(ctx context.Context, u *unit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := u.scope
	defer func() {
		if rec := recover(); rec != nil {
			s.LogError(fmt.Errorf("panic: %v", rec))
			l.logger.Error("program panicked", "program", s.Owner(), "panic", rec)
		}
	}()

	for _, fact := range s.memory.Recall(s.Now()) {
		_ = s.assert(fact)
	}
	if m, ok := s.Marker(); ok {
		if err := claimGeometry(s, m); err != nil {
			s.LogError(err)
		}
	}
	if err := u.prog.Run(s); err != nil {
		s.LogError(err)
	}
	return nil
}

// claimGeometry claims a marker program's size and region.
func claimGeometry(s *Scope, m Marker) error {
	region, err := json.Marshal(m.Corners[:])
	if err != nil {
		return fmt.Errorf("encode region: %w", err)
	}
	return errors.Join(
		s.Claimf("(%d) has width (%s)", m.ID, formatNumber(m.Width())),
		s.Claimf("(%d) has height (%s)", m.ID, formatNumber(m.Height())),
		s.Claimf("(%d) has region (%s) on (%d)", m.ID, region, TableID),
	)
}

// assertTableFacts claims the clock and the frame appearance.
func (l *Loop) assertTableFacts(f Frame, info FrameInfo) {
	table := NewDirectScope(TableID, info, ScopeServices{
		Store:  l.store,
		Refs:   l.refs,
		Logger: l.logger,
	})
	claims := []string{
		fmt.Sprintf("the clock time is (%s)", formatNumber(info.Clock)),
		fmt.Sprintf("the last clock time was (%s)", formatNumber(info.LastClock)),
	}
	if f.Appearance != nil {
		tok := l.refs.Create(refs.Frame, f.Appearance)
		claims = append(claims, fmt.Sprintf("(%d) has appearance '%s'", TableID, tok))
	}
	for _, text := range claims {
		if err := table.Claim(text); err != nil && !engine.IsQuotaError(err) {
			table.LogError(err)
		}
	}
}

// Flush writes dirty memories to disk.
func (l *Loop) Flush() error {
	return l.bank.SaveAll()
}

// Run drives the loop from src until src is exhausted or ctx is done.
//
// A producer goroutine reads frames into a depth-1 slot; the calling
// goroutine takes the latest frame each iteration, so a slow frame drops
// stale input instead of queueing it. Memories are flushed on return.
func (l *Loop) Run(ctx context.Context, src Source) error {
	l.logger.Info("frame loop starting", "programs", l.programs.Len())
	slot := NewFrameSlot()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer slot.Close()
		for {
			f, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("frame source: %w", err)
			}
			slot.Offer(f)
		}
	})

	g.Go(func() error {
		for {
			f, err := slot.Take(gctx)
			if errors.Is(err, ErrSlotClosed) {
				return nil
			}
			if err != nil {
				return err
			}
			if _, err := l.Frame(gctx, f); err != nil {
				return err
			}
		}
	})

	err := g.Wait()
	if ferr := l.Flush(); ferr != nil {
		l.logger.Warn("memory flush failed", "error", ferr)
	}
	if dropped := slot.Dropped(); dropped > 0 {
		l.logger.Info("stale frames dropped", "count", dropped)
	}
	l.logger.Info("frame loop stopped", "frames", l.frames, "error", err)
	return err
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
