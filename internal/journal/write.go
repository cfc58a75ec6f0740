package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/luma/internal/runtime"
)

// ErrNoSession is returned when recording into a read-only journal.
var ErrNoSession = errors.New("journal has no active session")

// RecordFrame writes a snapshot and its facts, errors and spans in one
// transaction. It implements runtime.Recorder.
//
// Uses ON CONFLICT DO NOTHING: a frame already recorded is left untouched.
func (j *Journal) RecordFrame(ctx context.Context, snap *runtime.Snapshot) error {
	if j.session == "" {
		return ErrNoSession
	}
	markers, err := marshalMarkers(snap.Markers)
	if err != nil {
		return fmt.Errorf("record frame: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record frame: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO frames
		(session_id, seq, time, clock, programs, markers, facts, rules, keys, steps,
		 asserted, registered, fired, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		j.session,
		snap.Seq,
		snap.Time.UnixNano(),
		snap.Clock,
		snap.Programs,
		markers,
		snap.Counts.Facts,
		snap.Counts.Rules,
		snap.Counts.Keys,
		snap.Counts.Steps,
		snap.Activity.Asserted,
		snap.Activity.Registered,
		snap.Activity.Fired,
		int64(snap.Duration),
	)
	if err != nil {
		return fmt.Errorf("record frame: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("record frame: rows affected: %w", err)
	} else if n == 0 {
		return nil
	}

	for _, f := range snap.Facts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO facts (session_id, frame_seq, seq, owner, hash, body)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, j.session, snap.Seq, f.Seq, f.Owner, f.Hash, f.Body()); err != nil {
			return fmt.Errorf("record frame facts: %w", err)
		}
	}
	for i, msg := range snap.Errors {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO errors (session_id, frame_seq, ordinal, message)
			VALUES (?, ?, ?, ?)
		`, j.session, snap.Seq, i, msg); err != nil {
			return fmt.Errorf("record frame errors: %w", err)
		}
	}
	for i, span := range snap.Timeline {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO spans (session_id, frame_seq, ordinal, name, start, duration)
			VALUES (?, ?, ?, ?, ?, ?)
		`, j.session, snap.Seq, i, span.Name, int64(span.Start), int64(span.Duration)); err != nil {
			return fmt.Errorf("record frame spans: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record frame: commit: %w", err)
	}
	return nil
}
