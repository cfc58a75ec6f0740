package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/luma/internal/engine"
	"github.com/roach88/luma/internal/runtime"
)

// ErrNotFound is returned when a session or frame does not exist.
var ErrNotFound = errors.New("not found")

// Session is one recorded run.
type Session struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
	Frames    int       `json:"frames"`
}

// FrameRecord is the summary row of one frame.
type FrameRecord struct {
	Session  string           `json:"session"`
	Seq      int64            `json:"seq"`
	Time     time.Time        `json:"time"`
	Clock    float64          `json:"clock"`
	Programs int              `json:"programs"`
	Markers  []int            `json:"markers"`
	Counts   engine.Counts    `json:"counts"`
	Activity runtime.Activity `json:"activity"`
	Duration time.Duration    `json:"duration"`
}

// FactRecord is one fact as journaled.
type FactRecord struct {
	Seq   int64  `json:"seq"`
	Owner int    `json:"owner"`
	Hash  string `json:"hash"`
	Body  string `json:"body"`
}

// FrameDetail is a frame with its facts, errors and timeline.
type FrameDetail struct {
	FrameRecord
	Facts    []FactRecord   `json:"facts"`
	Errors   []string       `json:"errors"`
	Timeline []runtime.Span `json:"timeline"`
}

// Sessions returns every session, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.seq, s.started_at, s.version,
		       (SELECT COUNT(*) FROM frames f WHERE f.session_id = s.id)
		FROM sessions s
		ORDER BY s.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var (
			s       Session
			started int64
		)
		if err := rows.Scan(&s.ID, &s.Seq, &started, &s.Version, &s.Frames); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.StartedAt = time.Unix(0, started)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently started session.
func (j *Journal) LatestSession(ctx context.Context) (Session, error) {
	sessions, err := j.Sessions(ctx)
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, fmt.Errorf("latest session: %w", ErrNotFound)
	}
	return sessions[len(sessions)-1], nil
}

const frameColumns = `session_id, seq, time, clock, programs, markers, facts, rules, keys, steps,
	asserted, registered, fired, duration`

// Frames returns the frame summaries of a session in sequence order.
func (j *Journal) Frames(ctx context.Context, session string) ([]FrameRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+frameColumns+`
		FROM frames
		WHERE session_id = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	frames := []FrameRecord{}
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return frames, nil
}

// Frame returns one frame with its facts (in insertion order), errors and
// spans.
func (j *Journal) Frame(ctx context.Context, session string, seq int64) (FrameDetail, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+frameColumns+`
		FROM frames
		WHERE session_id = ? AND seq = ?
	`, session, seq)
	rec, err := scanFrame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return FrameDetail{}, fmt.Errorf("frame %d: %w", seq, ErrNotFound)
	}
	if err != nil {
		return FrameDetail{}, err
	}

	detail := FrameDetail{FrameRecord: rec}
	if detail.Facts, err = j.frameFacts(ctx, session, seq); err != nil {
		return FrameDetail{}, err
	}
	if detail.Errors, err = j.frameErrors(ctx, session, seq); err != nil {
		return FrameDetail{}, err
	}
	if detail.Timeline, err = j.frameSpans(ctx, session, seq); err != nil {
		return FrameDetail{}, err
	}
	return detail, nil
}

// FindFacts returns, per frame, the facts of a session whose body matches
// the SQL LIKE pattern. Backslash escapes % and _.
func (j *Journal) FindFacts(ctx context.Context, session, pattern string) (map[int64][]FactRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT frame_seq, seq, owner, hash, body
		FROM facts
		WHERE session_id = ? AND body LIKE ? ESCAPE '\'
		ORDER BY frame_seq ASC, seq ASC
	`, session, pattern)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]FactRecord)
	for rows.Next() {
		var (
			frame int64
			f     FactRecord
		)
		if err := rows.Scan(&frame, &f.Seq, &f.Owner, &f.Hash, &f.Body); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		out[frame] = append(out[frame], f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return out, nil
}

func (j *Journal) frameFacts(ctx context.Context, session string, seq int64) ([]FactRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, owner, hash, body
		FROM facts
		WHERE session_id = ? AND frame_seq = ?
		ORDER BY seq ASC, hash COLLATE BINARY ASC
	`, session, seq)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	facts := []FactRecord{}
	for rows.Next() {
		var f FactRecord
		if err := rows.Scan(&f.Seq, &f.Owner, &f.Hash, &f.Body); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

func (j *Journal) frameErrors(ctx context.Context, session string, seq int64) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT message FROM errors
		WHERE session_id = ? AND frame_seq = ?
		ORDER BY ordinal ASC
	`, session, seq)
	if err != nil {
		return nil, fmt.Errorf("query errors: %w", err)
	}
	defer rows.Close()

	msgs := []string{}
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate errors: %w", err)
	}
	return msgs, nil
}

func (j *Journal) frameSpans(ctx context.Context, session string, seq int64) ([]runtime.Span, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT name, start, duration FROM spans
		WHERE session_id = ? AND frame_seq = ?
		ORDER BY ordinal ASC
	`, session, seq)
	if err != nil {
		return nil, fmt.Errorf("query spans: %w", err)
	}
	defer rows.Close()

	spans := []runtime.Span{}
	for rows.Next() {
		var (
			s               runtime.Span
			start, duration int64
		)
		if err := rows.Scan(&s.Name, &start, &duration); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		s.Start, s.Duration = time.Duration(start), time.Duration(duration)
		spans = append(spans, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spans: %w", err)
	}
	return spans, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFrame(row rowScanner) (FrameRecord, error) {
	var (
		f        FrameRecord
		t        int64
		markers  string
		duration int64
	)
	err := row.Scan(&f.Session, &f.Seq, &t, &f.Clock, &f.Programs, &markers,
		&f.Counts.Facts, &f.Counts.Rules, &f.Counts.Keys, &f.Counts.Steps,
		&f.Activity.Asserted, &f.Activity.Registered, &f.Activity.Fired, &duration)
	if errors.Is(err, sql.ErrNoRows) {
		return FrameRecord{}, err
	}
	if err != nil {
		return FrameRecord{}, fmt.Errorf("scan frame: %w", err)
	}
	f.Time = time.Unix(0, t)
	f.Duration = time.Duration(duration)
	if f.Markers, err = unmarshalMarkers(markers); err != nil {
		return FrameRecord{}, err
	}
	return f, nil
}
