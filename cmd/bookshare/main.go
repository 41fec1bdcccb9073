package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aluiziolira/go-bookshare/config"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI(os.Stdout, os.Stderr, nil).RunContext(ctx, os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

// newCLI builds the application. transport, when non-nil, carries every
// backend and image request.
func newCLI(stdout, stderr io.Writer, transport http.RoundTripper) *cli.App {
	defaults := config.DefaultConfig()
	return &cli.App{
		Name:      "bookshare",
		Usage:     "browse and edit the BookShare catalog",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "base-url",
				Value:   defaults.BaseURL,
				Usage:   "catalog backend origin",
				EnvVars: []string{"BOOKSHARE_BASE_URL"},
			},
			&cli.StringFlag{
				Name:    "image-base-url",
				Usage:   "origin relative image paths resolve against (defaults to --base-url)",
				EnvVars: []string{"BOOKSHARE_IMAGE_BASE_URL"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   defaults.Timeout,
				Usage:   "per-request timeout",
				EnvVars: []string{"BOOKSHARE_TIMEOUT"},
			},
			&cli.Float64Flag{
				Name:    "rps",
				Value:   defaults.RequestsPerSecond,
				Usage:   "maximum backend requests per second (0 = unlimited)",
				EnvVars: []string{"BOOKSHARE_RPS"},
			},
			&cli.StringFlag{
				Name:    "user-agent",
				Value:   defaults.UserAgent,
				EnvVars: []string{"BOOKSHARE_USER_AGENT"},
			},
			&cli.DurationFlag{
				Name:    "stale-time",
				Value:   defaults.StaleTime,
				Usage:   "how long a fetched list is served without refetching",
				EnvVars: []string{"BOOKSHARE_STALE_TIME"},
			},
			&cli.IntFlag{
				Name:    "cache-size",
				Value:   defaults.CacheSize,
				EnvVars: []string{"BOOKSHARE_CACHE_SIZE"},
			},
			&cli.IntFlag{
				Name:    "probe-parallel",
				Value:   defaults.ProbeParallelism,
				Usage:   "concurrent image probes",
				EnvVars: []string{"BOOKSHARE_PROBE_PARALLEL"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   defaults.OutputFormat,
				Usage:   "output format: text, csv, or json",
				EnvVars: []string{"BOOKSHARE_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "write csv/json output to `FILE` instead of stdout",
				EnvVars: []string{"BOOKSHARE_OUTPUT"},
			},
			&cli.BoolFlag{
				Name:    "color",
				Value:   isatty.IsTerminal(os.Stdout.Fd()),
				Usage:   "colour category pills and author names",
				EnvVars: []string{"BOOKSHARE_COLOR"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Prometheus metrics listen address (e.g. :9090)",
				EnvVars: []string{"BOOKSHARE_METRICS_ADDR"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
				EnvVars: []string{"BOOKSHARE_VERBOSE"},
			},
		},
		Before: func(c *cli.Context) error {
			logger, level := newLogger(stderr, c.Bool("verbose"))
			slog.SetDefault(logger)
			slog.SetLogLoggerLevel(level.Level())
			return nil
		},
		Commands: commands(appFactory{transport: transport}),
	}
}

func configFromFlags(c *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = c.String("base-url")
	cfg.ImageBaseURL = c.String("image-base-url")
	cfg.Timeout = c.Duration("timeout")
	cfg.RequestsPerSecond = c.Float64("rps")
	cfg.UserAgent = c.String("user-agent")
	cfg.StaleTime = c.Duration("stale-time")
	cfg.CacheSize = c.Int("cache-size")
	cfg.ProbeParallelism = c.Int("probe-parallel")
	cfg.OutputFormat = strings.ToLower(c.String("format"))
	cfg.OutputFile = c.String("output")
	cfg.MetricsAddr = c.String("metrics-addr")
	cfg.Verbose = c.Bool("verbose")
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(w) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler), level
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// colorProfile matters only when --color is on, so w is assumed to be a
// terminal and the profile comes from TERM, COLORTERM and NO_COLOR.
func colorProfile(w io.Writer) termenv.Profile {
	return termenv.NewOutput(w, termenv.WithTTY(true)).EnvColorProfile()
}
