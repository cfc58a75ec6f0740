package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/luma/internal/program"
)

// LoadError represents a program loading error with an error code.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadResult holds the programs of a directory and their validation errors.
type LoadResult struct {
	Definitions []program.Definition
	Invalid     []program.ValidationError
}

// LoadPrograms reads every program file in dir and validates the set.
// A missing directory or an undecodable file is a LoadError; validation
// problems are returned in the result so callers can report all of them.
func LoadPrograms(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("programs directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoad, Message: "failed to read programs directory", Err: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeLoad, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	defs, err := program.LoadDir(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoad, Message: "failed to load programs", Err: err}
	}
	return &LoadResult{
		Definitions: defs,
		Invalid:     program.ValidateAll(defs),
	}, nil
}

// loadCode returns the JSON error code for a LoadPrograms error.
func loadCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}
