package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/homecheck/internal/config"
	"github.com/hamed0406/homecheck/internal/domain"
	"github.com/hamed0406/homecheck/internal/repo"
	"github.com/hamed0406/homecheck/internal/repo/file"
)

const (
	dummyError       = "Dummy error"
	simulatedMessage = "Simulated failure logged"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "homecheck-cli",
		Short:         "homecheck operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadDotEnv()
		},
	}
	root.AddCommand(newRoundCmd())
	root.AddCommand(newSimulateFailureCmd())
	return root
}

func newRoundCmd() *cobra.Command {
	var (
		apiBase string
		apiKey  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "round",
		Short: "Ask a running API to check every target once and print the statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiBase == "" {
				apiBase = envOr("API_BASE", "http://localhost:8080")
			}
			if apiKey == "" {
				apiKey = firstKey(os.Getenv("ADMIN_API_KEYS"))
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			statuses, err := triggerRound(ctx, http.DefaultClient, apiBase, apiKey)
			if statuses != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(statuses); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&apiBase, "api", "", "API base URL (default $API_BASE or http://localhost:8080)")
	cmd.Flags().StringVar(&apiKey, "key", "", "admin API key (default first of $ADMIN_API_KEYS)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall request timeout")
	return cmd
}

type roundResponse struct {
	Statuses map[string]string `json:"statuses"`
	Error    string            `json:"error"`
}

// triggerRound POSTs /api/rounds. Statuses are returned whenever the server
// sent them, even alongside an error.
func triggerRound(ctx context.Context, c *http.Client, apiBase, key string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(apiBase, "/")+"/api/rounds", nil)
	if err != nil {
		return nil, err
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()

	var body roundResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("API returned %s: %w", resp.Status, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := body.Error
		if msg == "" {
			msg = resp.Status
		}
		return body.Statuses, fmt.Errorf("API returned %s: %s", resp.Status, msg)
	}
	return body.Statuses, nil
}

func newSimulateFailureCmd() *cobra.Command {
	var logDir string
	cmd := &cobra.Command{
		Use:   "simulate-failure",
		Short: "Append a dummy error record to the feedback log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if logDir == "" {
				logDir = config.FromEnv().LogDir
			}
			sink, err := file.New(logDir, nil)
			if err != nil {
				return err
			}
			defer sink.Close()
			if err := simulateFailure(sink, time.Now()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), simulatedMessage, "to", sink.FeedbackPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&logDir, "log-dir", "", "log directory (default $LOG_DIR or ./logs)")
	return cmd
}

func simulateFailure(sink repo.AuditSink, now time.Time) error {
	if err := sink.AppendRecord(domain.Record{Timestamp: now, Kind: domain.RecordSimulated, Error: dummyError}); err != nil {
		return err
	}
	return sink.AppendSystemLog(simulatedMessage)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstKey(list string) string {
	first, _, _ := strings.Cut(list, ",")
	return strings.TrimSpace(first)
}
