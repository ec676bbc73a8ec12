package session

import (
	"io"
	"log/slog"
)

// Env carries the process-wide runtime state sessions share: the structured
// logger and the destination directory for profiling output. A nil *Env is
// usable and logs nowhere.
type Env struct {
	logger     *slog.Logger
	profileDir string
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EnvOption {
	return func(e *Env) {
		e.logger = logger
	}
}

// WithProfileDir sets where profiling runs write their traces.
func WithProfileDir(dir string) EnvOption {
	return func(e *Env) {
		e.profileDir = dir
	}
}

// NewEnv creates an Env. Without options it logs nowhere.
func NewEnv(opts ...EnvOption) *Env {
	e := &Env{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Logger returns the environment's logger, always non-nil.
func (e *Env) Logger() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.logger
}

// ProfileDir returns the profiling output directory, possibly empty.
func (e *Env) ProfileDir() string {
	if e == nil {
		return ""
	}
	return e.profileDir
}
