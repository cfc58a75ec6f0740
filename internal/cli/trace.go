package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/luma/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // defaults to the latest session
	Frame    int64  // 0 lists frames
	Grep     string // substring filter on fact bodies
	Sessions bool
}

// TraceResult holds the frame listing of one session.
type TraceResult struct {
	Session journal.Session       `json:"session"`
	Frames  []journal.FrameRecord `json:"frames"`
}

// GrepResult holds the facts matching a --grep filter, per frame.
type GrepResult struct {
	Session string                         `json:"session"`
	Pattern string                         `json:"pattern"`
	Matches map[int64][]journal.FactRecord `json:"matches"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect a recorded frame journal",
		Long: `Inspect the frames recorded by "luma run --db".

Without --frame, lists the frames of a session with their counts. With
--frame, shows that frame's facts in insertion order, its error log and
its phase timeline. With --grep, lists the facts containing a substring
in every frame of the session.

Examples:
  luma trace --db ./journal.db --sessions
  luma trace --db ./journal.db
  luma trace --db ./journal.db --frame 12
  luma trace --db ./journal.db --grep "is a lamp" --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite frame journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (default: latest)")
	cmd.Flags().Int64Var(&opts.Frame, "frame", 0, "frame sequence number to show")
	cmd.Flags().StringVar(&opts.Grep, "grep", "", "show facts containing this text")
	cmd.Flags().BoolVar(&opts.Sessions, "sessions", false, "list recorded sessions")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Opening creates the file, so check first.
	if _, err := os.Stat(opts.Database); err != nil {
		msg := fmt.Sprintf("journal not found: %s", opts.Database)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", ErrCodeNotFound, msg))
	}

	j, err := journal.OpenReadOnly(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.Sessions {
		sessions, err := j.Sessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read sessions", err)
		}
		return outputSessions(formatter, sessions)
	}

	session, err := resolveSession(ctx, j, opts.Session)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeNotFound, err)
		}
		return WrapExitError(ExitCommandError, "failed to read sessions", err)
	}
	formatter.VerboseLog("Session %s (%d frames)", session.ID, session.Frames)

	switch {
	case opts.Frame > 0:
		detail, err := j.Frame(ctx, session.ID, opts.Frame)
		if errors.Is(err, journal.ErrNotFound) {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeNotFound, err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read frame", err)
		}
		return outputFrameDetail(formatter, detail)

	case opts.Grep != "":
		matches, err := j.FindFacts(ctx, session.ID, likePattern(opts.Grep))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to search facts", err)
		}
		return outputGrep(formatter, GrepResult{Session: session.ID, Pattern: opts.Grep, Matches: matches})

	default:
		frames, err := j.Frames(ctx, session.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read frames", err)
		}
		return outputFrames(formatter, TraceResult{Session: session, Frames: frames})
	}
}

// resolveSession finds the session with the given id, or the latest one.
func resolveSession(ctx context.Context, j *journal.Journal, id string) (journal.Session, error) {
	if id == "" {
		return j.LatestSession(ctx)
	}
	sessions, err := j.Sessions(ctx)
	if err != nil {
		return journal.Session{}, err
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return journal.Session{}, fmt.Errorf("session %s: %w", id, journal.ErrNotFound)
}

// likePattern turns a substring into a LIKE pattern, escaping wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func outputTraceJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: data})
}

func outputSessions(f *OutputFormatter, sessions []journal.Session) error {
	if f.JSON() {
		return outputTraceJSON(f.Writer, sessions)
	}
	w := f.Writer
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "  #%d %s  %s  %d frame(s)  engine %s\n",
			s.Seq, s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), s.Frames, s.Version)
	}
	return nil
}

func outputFrames(f *OutputFormatter, result TraceResult) error {
	if f.JSON() {
		return outputTraceJSON(f.Writer, result)
	}
	w := f.Writer
	fmt.Fprintf(w, "Session: %s\n", result.Session.ID)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Frames ===")
	if len(result.Frames) == 0 {
		fmt.Fprintln(w, "  (no frames)")
		return nil
	}
	for _, fr := range result.Frames {
		fmt.Fprintf(w, "  [%d] clock=%s markers=%v facts=%d rules=%d fired=%d %s\n",
			fr.Seq, formatClock(fr.Clock), fr.Markers, fr.Counts.Facts, fr.Counts.Rules,
			fr.Activity.Fired, fr.Duration)
	}
	return nil
}

func outputFrameDetail(f *OutputFormatter, d journal.FrameDetail) error {
	if f.JSON() {
		return outputTraceJSON(f.Writer, d)
	}
	w := f.Writer
	fmt.Fprintf(w, "Frame %d  clock=%s  markers=%v\n", d.Seq, formatClock(d.Clock), d.Markers)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Facts ===")
	if len(d.Facts) == 0 {
		fmt.Fprintln(w, "  (no facts)")
	}
	for _, fact := range d.Facts {
		if f.Verbose {
			fmt.Fprintf(w, "  %4d %s  [%d] %s\n", fact.Seq, truncateHash(fact.Hash), fact.Owner, fact.Body)
		} else {
			fmt.Fprintf(w, "  %s\n", fact.Body)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Errors ===")
	if len(d.Errors) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, e := range d.Errors {
		fmt.Fprintf(w, "  ! %s\n", e)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	for _, span := range d.Timeline {
		fmt.Fprintf(w, "  %-10s +%-10s %s\n", span.Name, span.Start, span.Duration)
	}
	fmt.Fprintf(w, "  total %s\n", d.Duration)
	return nil
}

func outputGrep(f *OutputFormatter, result GrepResult) error {
	if f.JSON() {
		return outputTraceJSON(f.Writer, result)
	}
	w := f.Writer
	if len(result.Matches) == 0 {
		fmt.Fprintf(w, "No facts containing %q\n", result.Pattern)
		return nil
	}
	frames := make([]int64, 0, len(result.Matches))
	for seq := range result.Matches {
		frames = append(frames, seq)
	}
	slices.Sort(frames)
	for _, seq := range frames {
		fmt.Fprintf(w, "[%d]\n", seq)
		for _, fact := range result.Matches[seq] {
			fmt.Fprintf(w, "  %s\n", fact.Body)
		}
	}
	return nil
}

func formatClock(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// truncateHash shortens a statement hash for display.
func truncateHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
