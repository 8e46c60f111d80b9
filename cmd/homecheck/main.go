// Command homecheck runs one round of connectivity checks over the
// configured devices and prints the id -> status mapping as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hamed0406/homecheck/internal/app"
	"github.com/hamed0406/homecheck/internal/config"
	"github.com/hamed0406/homecheck/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	config.LoadDotEnv()
	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.LogDir, logging.Options{Level: cfg.LogLevel, Console: cfg.LogConsole})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 1
	}
	defer logger.Sync()

	a, err := app.Build(cfg, logger, nil)
	if err != nil {
		logger.Error("startup_failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, roundErr := a.RunRound(ctx)
	out, err := json.MarshalIndent(snap.Statuses(), "", "  ")
	if err != nil {
		logger.Error("encode_statuses", zap.Error(err))
		return 1
	}
	fmt.Println(string(out))

	if roundErr != nil {
		logger.Error("round_not_persisted", zap.Error(roundErr))
		fmt.Fprintln(os.Stderr, roundErr)
		return 1
	}
	return 0
}
