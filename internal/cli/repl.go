package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/roach88/luma/internal/engine"
	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/program"
)

const replPrompt = "luma> "

// replCommands are completed at the start of a line.
var replCommands = []string{"when ", "wish ", ":facts", ":rules", ":errors", ":owner ", ":clear", ":help", ":quit"}

// ReplOptions holds flags for the repl command.
type ReplOptions struct {
	*RootOptions
	Owner    int
	MaxSteps int
}

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Claim facts and register rules interactively",
		Long: `Start an interactive session against a single fact store.

Each line is a claim unless it starts with a command:
  when <pattern> [then <claim>]   register a rule; matches are printed, and
                                  the claim (with ${var} templates) is made
  wish <fact>                     claim a wish
  :facts [text]                   list facts, optionally containing text
  :rules                          list rules
  :errors                         show the error log
  :owner <id>                     claim as another program
  :clear                          empty the store
  :quit                           leave

The store is never cleared between lines; there are no frames here.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Owner, "owner", 1, "program id that owns statements")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "step quota before the store refuses work")

	return cmd
}

func runRepl(opts *ReplOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	r := NewReplSession(cmd.OutOrStdout(), opts.Owner,
		engine.WithMaxSteps(opts.MaxSteps),
		engine.WithLogger(formatter.Logger(slog.LevelError)),
	)

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && f == os.Stdin {
		return r.RunInteractive()
	}
	return r.RunScript(in)
}

// ReplSession evaluates REPL lines against one store.
type ReplSession struct {
	store *engine.Store
	owner int
	out   io.Writer
}

// NewReplSession creates a session writing to out.
func NewReplSession(out io.Writer, owner int, opts ...engine.StoreOption) *ReplSession {
	return &ReplSession{
		store: engine.NewStore(opts...),
		owner: owner,
		out:   out,
	}
}

// Store returns the session's store.
func (r *ReplSession) Store() *engine.Store {
	return r.store
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".luma_history")
}

// RunInteractive reads lines from the terminal with editing and history.
func (r *ReplSession) RunInteractive() error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, c := range replCommands {
			if strings.HasPrefix(c, prefix) {
				out = append(out, c)
			}
		}
		return out
	})

	if f, err := os.Open(historyFile()); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if path := historyFile(); path != "" {
			if f, err := os.Create(path); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}
	}()

	fmt.Fprintf(r.out, "luma %s - claiming as program %d. Type :help for commands.\n", Version, r.owner)
	for {
		text, err := line.Prompt(replPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		line.AppendHistory(text)
		if r.Eval(text) {
			return nil
		}
	}
}

// RunScript evaluates every line of in, without prompts.
func (r *ReplSession) RunScript(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if r.Eval(scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// Eval evaluates one line and reports whether the session should end.
func (r *ReplSession) Eval(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false
	}

	if strings.HasPrefix(line, ":") {
		cmd, arg, _ := strings.Cut(line, " ")
		return r.command(cmd, strings.TrimSpace(arg))
	}

	switch {
	case strings.HasPrefix(line, "when "):
		r.when(strings.TrimPrefix(line, "when "))
	case strings.HasPrefix(line, "wish "):
		r.report(r.store.Wish(r.owner, strings.TrimPrefix(line, "wish ")))
	default:
		r.report(r.store.Claim(r.owner, line))
	}
	return false
}

func (r *ReplSession) command(cmd, arg string) bool {
	switch cmd {
	case ":quit", ":q", ":exit":
		return true
	case ":help", ":h":
		r.help()
	case ":facts":
		for _, f := range r.store.Facts() {
			if arg == "" || strings.Contains(f.Body(), arg) {
				fmt.Fprintf(r.out, "  %4d  %s\n", f.Seq, f.Body())
			}
		}
	case ":rules":
		for _, rule := range r.store.Rules() {
			fmt.Fprintf(r.out, "  %s\n", rule)
		}
	case ":errors":
		errs := r.store.ErrorLog().Errors()
		if len(errs) == 0 {
			fmt.Fprintln(r.out, "  (none)")
		}
		for _, e := range errs {
			fmt.Fprintf(r.out, "  ! %s\n", e)
		}
	case ":owner":
		id, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintf(r.out, "! owner must be a program id, got %q\n", arg)
			return false
		}
		r.owner = id
		fmt.Fprintf(r.out, "claiming as program %d\n", id)
	case ":clear":
		r.store.Clear()
		fmt.Fprintln(r.out, "store cleared")
	default:
		fmt.Fprintf(r.out, "! unknown command %s (type :help)\n", cmd)
	}
	return false
}

// when registers a rule. Text after " then " is a claim template made for
// every match.
func (r *ReplSession) when(text string) {
	pattern, template, hasThen := strings.Cut(text, " then ")
	owner := r.owner
	h, err := r.store.When(owner, pattern).
		Then(func(b ir.Binding) {
			fmt.Fprintf(r.out, "  => %s\n", formatBinding(b))
			if !hasThen {
				return
			}
			claim, err := program.Expand(template, b)
			if err != nil {
				r.store.ErrorLog().LogError(err.Error())
				fmt.Fprintf(r.out, "! %v\n", err)
				return
			}
			r.report(r.store.Claim(owner, claim))
		}).
		Register()
	if err != nil {
		r.report(err)
		return
	}
	if h.Fired() == 0 {
		fmt.Fprintln(r.out, "  (no matches yet)")
	}
}

func (r *ReplSession) report(err error) {
	if err == nil {
		return
	}
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(r.out, "! %s\n", line)
	}
}

func (r *ReplSession) help() {
	fmt.Fprintln(r.out, `  (you) is a lamp                 claim a fact
  when /p/ is a lamp              print every match
  when /p/ is a lamp then (${p}) is lit
  wish (you) is highlighted       claim a wish
  :facts [text]  :rules  :errors  :owner <id>  :clear  :quit`)
}

// formatBinding renders a binding as {a: 1, b: x} in name order.
func formatBinding(b ir.Binding) string {
	parts := make([]string, 0, b.Len())
	for _, k := range b.Keys() {
		parts = append(parts, k+": "+b.String(k))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
