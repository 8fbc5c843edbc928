package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/geobot/config"
)

const usage = `geobot — geopolitical prediction-market bot

Usage:
  geobot [-config path] [-verbose] [-format text|json] <command> [args]

Commands:
  run [-strategy name|group]        one scan/select/settle cycle
  live status                       live trading status
  live pending                      pending proposals
  live cleanup                      expire stale proposals
  live execute <id>... | all        execute approved proposals
  live approve [-check] [-amount n] on-chain allowances for the CLOB
  close [-yes] <search>             manually close paper positions
  strategies                        list strategies and groups
  schedule [-cron spec] [-strategy] run cycles on a cron schedule
`

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	path := *configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !isFlagSet("config") {
		path = "" // sin config.yaml: defaults + entorno
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := dispatch(ctx, app, flag.Args()); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(os.Stderr, ue.Error())
			flag.Usage()
			os.Exit(2)
		}
		slog.Error("command failed", "cmd", flag.Arg(0), "err", err)
		os.Exit(1)
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

func dispatch(ctx context.Context, app *App, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		return cmdRun(ctx, app, rest)
	case "live":
		return cmdLive(ctx, app, rest)
	case "close":
		return cmdClose(ctx, app, rest)
	case "strategies":
		return cmdStrategies(app)
	case "schedule":
		return cmdSchedule(ctx, app, rest)
	default:
		return usageError(fmt.Sprintf("unknown command %q", cmd))
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
