package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/parse"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Rule  bool
	Owner int
}

// ParseResult is the parsed form of a statement.
type ParseResult struct {
	Kind      string      `json:"kind"`
	Owner     int         `json:"owner"`
	Body      string      `json:"body"`
	Hash      string      `json:"hash"`
	Relations []string    `json:"relations"`
	Clauses   []ir.Clause `json:"clauses"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <statement>",
		Short: "Parse a claim or rule and show its clauses",
		Long: `Parse statement text the way programs do and print the result.

Shows each clause's terms with their kinds, the relation shape used for
indexing, and the statement hash. (you) is replaced by --owner. Parse
errors list every bad token.

Examples:
  luma parse "(you) has width (100)"
  luma parse --owner 12 "(you) is a lamp"
  luma parse --rule "/p/ is a lamp , /p/ has color /c/"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Rule, "rule", false, "parse as a rule pattern (variables allowed)")
	cmd.Flags().IntVar(&opts.Owner, "owner", 0, "owning program id")

	return cmd
}

func runParse(opts *ParseOptions, text string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	kind := ir.KindFact
	if opts.Rule {
		kind = ir.KindRule
	}
	stmt, err := parse.Parse(opts.Owner, text, kind)
	if err != nil {
		if pe, ok := parse.AsParseError(err); ok {
			_ = formatter.Error(ErrCodeParse, strings.Join(pe.Messages, "; "), pe.Lines())
			return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ErrCodeParse, pe.Error()))
		}
		return WrapExitError(ExitCommandError, "parse failed", err)
	}

	result := ParseResult{
		Kind:    stmt.Kind.String(),
		Owner:   stmt.Owner,
		Body:    stmt.Body(),
		Hash:    stmt.Hash,
		Clauses: stmt.Clauses,
	}
	for _, c := range stmt.Clauses {
		result.Relations = append(result.Relations, c.Relation())
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputParseText(formatter, result)
}

func outputParseText(f *OutputFormatter, r ParseResult) error {
	w := f.Writer
	fmt.Fprintf(w, "%s %d: %s\n", r.Kind, r.Owner, r.Body)
	if f.Verbose {
		fmt.Fprintf(w, "hash: %s\n", r.Hash)
	}
	for i, c := range r.Clauses {
		fmt.Fprintf(w, "clause %d: %s\n", i, r.Relations[i])
		writeClause(f, c, "  ")
	}
	return nil
}

func writeClause(f *OutputFormatter, c ir.Clause, indent string) {
	w := f.Writer
	for _, t := range c.Terms {
		fmt.Fprintf(w, "%s%d %-8s %s\n", indent, t.Ordinal, t.Kind, t.Value)
	}
	if len(c.Options) > 0 {
		// Clause.String renders options in name order.
		opts := strings.TrimPrefix(c.String(), ir.Clause{Terms: c.Terms}.String()+" ")
		fmt.Fprintf(w, "%soptions: %s\n", indent, opts)
	}
	for _, opt := range c.Optional {
		fmt.Fprintf(w, "%soptional: %s\n", indent, opt.String())
		writeClause(f, opt, indent+"  ")
	}
}
