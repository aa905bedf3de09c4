// Package config holds the option set for the tail command: the inbound
// configuration consumed by the follow engine plus presentation switches.
// Options come from flags, with an optional YAML file underneath
// (flags win over the file, the file wins over defaults).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/howjmay/coreutils/internal/follow"
)

// Options is the full configuration surface of a tail run.
type Options struct {
	// Paths are the operands; "-" names standard input.
	Paths []string `yaml:"paths"`

	// Lines is the initial last-N-lines count.
	Lines int `yaml:"lines"`
	// Bytes is the initial last-N-bytes count, used when ByBytes is set.
	Bytes int64 `yaml:"bytes"`
	// ByBytes selects byte counting over line counting.
	ByBytes bool `yaml:"by_bytes"`

	// Follow keeps emitting appended data after the initial output.
	Follow bool `yaml:"follow"`
	// FollowName additionally reopens paths after rotation and waits for
	// removed paths to reappear (-F).
	FollowName bool `yaml:"follow_name"`
	// Retry keeps missing or unreadable paths watched.
	Retry bool `yaml:"retry"`
	// Interval is the poll sweep period.
	Interval time.Duration `yaml:"interval"`

	// Quiet suppresses the per-source headers; Verbose forces them.
	Quiet   bool `yaml:"quiet"`
	Verbose bool `yaml:"verbose"`

	// PID, when nonzero, stops following once that process dies.
	PID int `yaml:"pid"`

	// LogLevel sets diagnostic verbosity (zap level names).
	LogLevel string `yaml:"log_level"`
}

// Default returns the option set matching plain "tail" with no flags.
func Default() Options {
	return Options{
		Lines:    10,
		Interval: time.Second,
		LogLevel: "warn",
	}
}

// LoadFile reads opts from a YAML file over the defaults. A missing file is
// an error; the flag layer decides whether a config file is in play at all.
func LoadFile(path string) (Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return opts, nil
}

// Validate rejects option combinations the engine cannot honor.
func (o *Options) Validate() error {
	if o.ByBytes && o.Bytes < 0 {
		return fmt.Errorf("config: invalid byte count %d", o.Bytes)
	}
	if !o.ByBytes && o.Lines < 0 {
		return fmt.Errorf("config: invalid line count %d", o.Lines)
	}
	if o.Interval <= 0 {
		return fmt.Errorf("config: invalid interval %s", o.Interval)
	}
	if o.PID < 0 {
		return fmt.Errorf("config: invalid pid %d", o.PID)
	}
	if o.Quiet && o.Verbose {
		return errors.New("config: quiet and verbose are mutually exclusive")
	}
	return nil
}

// Mode maps the follow switches onto the engine's run mode.
func (o *Options) Mode() follow.Mode {
	switch {
	case o.FollowName:
		return follow.ModeFollowRetry
	case o.Follow:
		return follow.ModeFollow
	default:
		return follow.ModeNone
	}
}

// ShowHeaders reports whether per-source banners should be printed: forced
// by Verbose, suppressed by Quiet, otherwise on when multiplexing more than
// one source.
func (o *Options) ShowHeaders() bool {
	if o.Quiet {
		return false
	}
	if o.Verbose {
		return true
	}
	return len(o.Paths) > 1
}

// EngineConfig translates the option set into the follow engine's inbound
// configuration.
func (o *Options) EngineConfig() follow.Config {
	return follow.Config{
		Paths:    o.Paths,
		Lines:    o.Lines,
		Bytes:    o.Bytes,
		ByBytes:  o.ByBytes,
		Mode:     o.Mode(),
		Retry:    o.Retry || o.FollowName,
		Interval: o.Interval,
	}
}
