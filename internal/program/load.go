package program

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// CompileError is a decoding error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads one program file, choosing the decoder by extension.
func LoadFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read program: %w", err)
	}

	var def Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		def, err = DecodeYAML(data)
	case ".cue":
		def, err = DecodeCUE(path, data)
	default:
		return Definition{}, fmt.Errorf("%s: unsupported program file type", path)
	}
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	def.Source = path
	return def, nil
}

// DecodeYAML decodes a YAML program. Unknown fields are rejected.
func DecodeYAML(data []byte) (Definition, error) {
	var def Definition
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return Definition{}, errors.New("empty program")
		}
		return Definition{}, fmt.Errorf("decode program: %w", err)
	}
	return def, nil
}

// DecodeCUE compiles a CUE program. filename is used in error positions.
func DecodeCUE(filename string, data []byte) (Definition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	return CompileProgram(v)
}

// CompileProgram decodes a CUE value into a Definition. The value must be
// concrete; id is required.
func CompileProgram(v cue.Value) (Definition, error) {
	if err := v.Err(); err != nil {
		return Definition{}, formatCUEError(err)
	}
	if !v.LookupPath(cue.ParsePath("id")).Exists() {
		return Definition{}, &CompileError{
			Field:   "id",
			Message: "id is required",
			Pos:     v.Pos(),
		}
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Definition{}, formatCUEError(err)
	}
	var def Definition
	if err := v.Decode(&def); err != nil {
		return Definition{}, formatCUEError(err)
	}
	return def, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

// LoadDir loads every program file in dir (not recursive), sorted by
// program id. All failures are reported together; validation is left to the
// caller.
func LoadDir(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read program dir: %w", err)
	}

	var (
		defs []Definition
		errs []error
	)
	for _, e := range entries {
		if e.IsDir() || !IsProgramFile(e.Name()) {
			continue
		}
		def, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, def)
	}
	slices.SortStableFunc(defs, func(a, b Definition) int { return a.ID - b.ID })
	return defs, errors.Join(errs...)
}

// IsProgramFile reports whether name has a program file extension.
func IsProgramFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}
