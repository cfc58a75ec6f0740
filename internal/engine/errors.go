package engine

import (
	"errors"
	"fmt"
	"strconv"
)

// RuntimeError represents an error detected while the store evaluates rules.
//
// Runtime errors include:
//   - Quota exceeded: a frame did more work than the step quota allows
//   - Callback panic: a rule callback panicked and was recovered
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Owner is the program id of the statement involved, or -1.
	Owner int

	// Rule is the hash of the rule involved, if any.
	Rule string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeQuotaExceeded indicates the frame exceeded the step quota.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeCallbackPanic indicates a rule callback panicked.
	ErrCodeCallbackPanic RuntimeErrorCode = "CALLBACK_PANIC"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("%s: %s (owner=%d, rule=%s)", e.Code, e.Message, e.Owner, shortHash(e.Rule))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Uses errors.As to handle wrapped errors.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQuotaExceeded
	}
	return false
}

// IsCallbackPanic returns true if the error records a recovered callback panic.
func IsCallbackPanic(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCallbackPanic
	}
	return false
}

// NewQuotaError creates a RuntimeError for quota exceeded.
func NewQuotaError(steps, maxSteps int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("frame exceeded max steps (%d > %d)", steps, maxSteps),
		Owner:   -1,
		Details: map[string]string{
			"steps":     strconv.Itoa(steps),
			"max_steps": strconv.Itoa(maxSteps),
		},
	}
}

// NewCallbackPanicError creates a RuntimeError for a recovered panic.
func NewCallbackPanicError(owner int, ruleHash string, recovered any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCallbackPanic,
		Message: fmt.Sprintf("rule callback panicked: %v", recovered),
		Owner:   owner,
		Rule:    ruleHash,
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
