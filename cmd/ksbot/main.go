// Command ksbot is the entry point for the KOOK RSS subscription bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/alanyoungcy/ksbot/internal/app"
	"github.com/alanyoungcy/ksbot/internal/config"
)

func main() {
	token := flag.String("token", "", "bot token; ignored if a config file is also given")
	tuningPath := flag.String("tuning", "config.toml", "path to the operational tuning file")
	flag.Parse()

	confPath := flag.Arg(0)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	identity, err := config.ResolveIdentity(*token, confPath)
	if err != nil {
		logger.Error("failed to resolve bot identity", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load(*tuningPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("path", *tuningPath), slog.String("error", err.Error()))
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	out := io.Writer(os.Stdout)
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50,
			MaxBackups: 7,
			MaxAge:     28,
			Compress:   true,
		})
	}
	logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("ksbot starting", slog.String("name", identity.Name), slog.String("tuning", *tuningPath))

	application := app.New(cfg, identity, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if err == context.Canceled {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("ksbot stopped")
}
