package parse

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError reports why statement text could not be parsed. No partial
// statement accompanies it.
type ParseError struct {
	Owner    int
	Text     string
	Messages []string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%d parse error: %s %q", e.Owner, strings.Join(e.Messages, "; "), e.Text)
}

// Lines returns one formatted line per message, the form written to the
// error log.
func (e *ParseError) Lines() []string {
	lines := make([]string, len(e.Messages))
	for i, msg := range e.Messages {
		lines[i] = fmt.Sprintf("%d parse error: %s %q", e.Owner, msg, e.Text)
	}
	return lines
}

func newParseError(owner int, text string, messages ...string) *ParseError {
	return &ParseError{Owner: owner, Text: text, Messages: messages}
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// AsParseError extracts the *ParseError from err, if any.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
