// Package config loads luma configuration files.
//
// A configuration is CUE or YAML, checked against the embedded CUE schema
// (schema.cue). The schema is closed, so misspelled keys are errors, and
// every field has a default:
//
//	programs: "programs"
//	memory:   "state/memory"
//	loop: {
//		keep_time:      "500ms"
//		location_delta: 2
//	}
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/luma/internal/runtime"
)

//go:embed schema.cue
var schemaCUE string

// Config is a decoded configuration.
type Config struct {
	Programs string `json:"programs"`
	Memory   string `json:"memory"`
	Journal  string `json:"journal"`
	Serve    string `json:"serve"`
	LogLevel string `json:"log_level"`
	Loop     Loop   `json:"loop"`
}

// Loop holds the frame loop settings.
type Loop struct {
	KeepTime      time.Duration `json:"-"`
	LocationDelta float64       `json:"location_delta"`
	FlushInterval time.Duration `json:"-"`
	MaxSteps      int           `json:"max_steps"`

	RawKeepTime      string `json:"keep_time"`
	RawFlushInterval string `json:"flush_interval"`
}

// Default returns the configuration of an empty file.
func Default() Config {
	cfg, err := decode(cuecontext.New(), nil)
	if err != nil {
		// The schema's defaults are always valid.
		panic(fmt.Sprintf("config: default configuration: %v", err))
	}
	return cfg
}

// Load reads the configuration at path. The decoder is chosen by extension
// (.cue, .yaml, .yml). Relative directories in the file are resolved
// against the file's directory.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	ctx := cuecontext.New()
	var user cue.Value
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		user = ctx.CompileBytes(data, cue.Filename(path))
	case ".yaml", ".yml":
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("%s: decode config: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
		user = ctx.Encode(raw)
	default:
		return Config{}, fmt.Errorf("%s: unsupported config file type", path)
	}
	if err := user.Err(); err != nil {
		return Config{}, fmt.Errorf("%s: %s", path, formatCUEError(err))
	}

	cfg, err := decode(ctx, &user)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

func decode(ctx *cue.Context, user *cue.Value) (Config, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))
	if user != nil {
		v = v.Unify(*user)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, errors.New(formatCUEError(err))
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	var err error
	if cfg.Loop.KeepTime, err = time.ParseDuration(cfg.Loop.RawKeepTime); err != nil {
		return Config{}, fmt.Errorf("loop.keep_time: %w", err)
	}
	if cfg.Loop.FlushInterval, err = time.ParseDuration(cfg.Loop.RawFlushInterval); err != nil {
		return Config{}, fmt.Errorf("loop.flush_interval: %w", err)
	}
	return cfg, nil
}

func (c *Config) resolve(dir string) {
	for _, p := range []*string{&c.Programs, &c.Memory, &c.Journal} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoopOptions returns the runtime options the configuration selects.
func (c Config) LoopOptions() []runtime.Option {
	opts := []runtime.Option{
		runtime.WithKeepTime(c.Loop.KeepTime),
		runtime.WithLocationDelta(c.Loop.LocationDelta),
		runtime.WithFlushInterval(c.Loop.FlushInterval),
		runtime.WithMemoryDir(c.Memory),
	}
	if c.Loop.MaxSteps > 0 {
		opts = append(opts, runtime.WithMaxSteps(c.Loop.MaxSteps))
	}
	return opts
}

// formatCUEError joins CUE errors with their positions, one per line.
func formatCUEError(err error) string {
	var lines []string
	for _, e := range cueerrors.Errors(err) {
		msg := e.Error()
		if pos := e.Position(); pos.IsValid() {
			msg = fmt.Sprintf("%s:%d:%d: %s", pos.Filename(), pos.Line(), pos.Column(), msg)
		}
		lines = append(lines, msg)
	}
	if len(lines) == 0 {
		return err.Error()
	}
	return strings.Join(lines, "\n")
}
