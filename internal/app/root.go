// Package app wires the tail command line to the follow engine: flag
// parsing, config file merging, logger and sink construction, signal
// handling, and the --pid supervisor.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/howjmay/coreutils/internal/config"
	"github.com/howjmay/coreutils/internal/follow"
	"github.com/howjmay/coreutils/internal/output"
	"github.com/howjmay/coreutils/internal/proc"
)

var (
	flagLines      int
	flagBytes      int64
	flagFollow     bool
	flagFollowName bool
	flagRetry      bool
	flagInterval   time.Duration
	flagQuiet      bool
	flagVerbose    bool
	flagPID        int
	flagConfig     string
	flagLogLevel   string

	// RootCmd is the tail command.
	RootCmd = &cobra.Command{
		Use:   "tail [flags] [file ...]",
		Short: "Print the last part of files and follow them as they grow",
		Long: `tail prints the last 10 lines of each file to standard output. With more
than one file, each block of output is preceded by a header naming the file.
With no file, or when file is -, standard input is read.

In follow mode tail keeps running and prints data as it is appended. Rotated
files (the path replaced by a new file) and truncated files are detected and
reported inline, and with --retry a missing file is watched until it appears.
Follow mode prefers OS change notification and falls back to polling per path
when notification is unavailable.`,
		Example: `  # Last 20 lines of a log
  tail -n 20 /var/log/app.log

  # Follow two logs at once
  tail -f access.log error.log

  # Survive log rotation, wait for missing files
  tail -F /var/log/app.log

  # Stop following when process 1234 exits
  tail -f --pid 1234 build.log`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTail,
	}
)

func init() {
	// Unknown-flag typos get cobra suggestions.
	RootCmd.SuggestionsMinimumDistance = 2

	f := RootCmd.Flags()
	f.IntVarP(&flagLines, "lines", "n", 10, "output the last N lines")
	f.Int64VarP(&flagBytes, "bytes", "c", 0, "output the last N bytes instead of lines")
	f.BoolVarP(&flagFollow, "follow", "f", false, "output appended data as the file grows")
	f.BoolVarP(&flagFollowName, "follow-name", "F", false, "same as --follow --retry, reopening rotated paths by name")
	f.BoolVar(&flagRetry, "retry", false, "keep trying to open a file that is missing or unreadable")
	f.DurationVarP(&flagInterval, "sleep-interval", "s", time.Second, "poll interval between checks in follow mode")
	f.BoolVarP(&flagQuiet, "quiet", "q", false, "never print file name headers")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "always print file name headers")
	f.IntVar(&flagPID, "pid", 0, "with --follow, terminate after process PID dies")
	f.StringVar(&flagConfig, "config", "", "YAML file with default options")
	f.StringVar(&flagLogLevel, "log-level", "warn", "diagnostic log level (debug, info, warn, error)")
}

// Execute runs the tail command.
func Execute() error {
	return RootCmd.Execute()
}

func runTail(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions(cmd, args)
	if err != nil {
		return err
	}

	logger := newLogger(opts.LogLevel)
	defer logger.Sync() //nolint:errcheck

	sink := output.NewStreamSink(os.Stdout, os.Stderr, opts.ShowHeaders())

	engCfg := opts.EngineConfig()
	engCfg.Logger = logger
	eng, err := follow.New(engCfg, sink)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if opts.PID > 0 {
		var cancel context.CancelFunc
		ctx, cancel = watchPID(ctx, opts.PID, opts.Interval)
		defer cancel()
	}

	if err := eng.Run(ctx); err != nil {
		if errors.Is(err, follow.ErrNoSourcesRemaining) {
			return errors.New("no files remaining")
		}
		return err
	}
	return nil
}

// buildOptions layers explicitly-set flags over the config file (when given)
// over the defaults, then validates the result.
func buildOptions(cmd *cobra.Command, args []string) (config.Options, error) {
	opts := config.Default()
	if flagConfig != "" {
		loaded, err := config.LoadFile(flagConfig)
		if err != nil {
			return opts, err
		}
		opts = loaded
	}

	f := cmd.Flags()
	if f.Changed("lines") && f.Changed("bytes") {
		return opts, errors.New("cannot combine --lines and --bytes")
	}
	if f.Changed("lines") {
		opts.Lines = flagLines
		opts.ByBytes = false
	}
	if f.Changed("bytes") {
		opts.Bytes = flagBytes
		opts.ByBytes = true
	}
	if f.Changed("follow") {
		opts.Follow = flagFollow
	}
	if f.Changed("follow-name") {
		opts.FollowName = flagFollowName
	}
	if f.Changed("retry") {
		opts.Retry = flagRetry
	}
	if f.Changed("sleep-interval") {
		opts.Interval = flagInterval
	}
	if f.Changed("quiet") {
		opts.Quiet = flagQuiet
	}
	if f.Changed("verbose") {
		opts.Verbose = flagVerbose
	}
	if f.Changed("pid") {
		opts.PID = flagPID
	}
	if f.Changed("log-level") {
		opts.LogLevel = flagLogLevel
	}

	if len(args) > 0 {
		opts.Paths = args
	}
	if len(opts.Paths) == 0 {
		opts.Paths = []string{follow.StdinPath}
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// newLogger builds a console logger on stderr for engine diagnostics.
// User-visible output never goes through it; that is the sink's job.
func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.WarnLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), lvl)
	return zap.New(core)
}

// watchPID derives a context that is cancelled once the given process dies,
// so a run like "tail -f --pid $$ build.log" ends with its writer.
func watchPID(parent context.Context, pid int, interval time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	dead := proc.Wait(ctx, pid, interval)
	go func() {
		<-dead
		cancel()
	}()
	return ctx, cancel
}
