// Package app wires configuration, the audit sink, the probes and the
// orchestrator together for the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"net"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/homecheck/internal/config"
	"github.com/hamed0406/homecheck/internal/domain"
	"github.com/hamed0406/homecheck/internal/orchestrator"
	"github.com/hamed0406/homecheck/internal/probe"
	"github.com/hamed0406/homecheck/internal/repo"
	"github.com/hamed0406/homecheck/internal/repo/file"
	"github.com/hamed0406/homecheck/internal/sshclient"
)

type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Sink         *file.Sink
	Targets      []domain.Target
	Orchestrator *orchestrator.Orchestrator
}

// Build loads config.json and secrets.json, builds the registry and the
// probe set, and returns a ready orchestrator. Missing or broken documents
// are logged and replaced by empty ones; only a log directory that cannot
// be written is fatal. store may be nil.
func Build(cfg config.Config, logger *zap.Logger, store repo.SnapshotStore) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sink, err := file.New(cfg.LogDir, logger)
	if err != nil {
		return nil, err
	}

	var logErr error
	params := loadDocument(cfg.ConfigFile, sink, logger, &logErr)
	secrets := loadDocument(cfg.SecretsFile, sink, logger, &logErr)

	targets, err := config.Targets(params)
	if err != nil {
		logger.Warn("targets_invalid", zap.Error(err))
		logErr = multierr.Append(logErr, sink.AppendSystemLog(fmt.Sprintf("Invalid targets in %s: %v", filepath.Base(cfg.ConfigFile), err)))
	}
	if logErr != nil {
		_ = sink.Close()
		return nil, logErr
	}

	creds := config.NewSecrets(secrets)
	reach := probe.NewHTTPChecker(cfg.CheckTimeout)
	reach.Resolver = net.DefaultResolver
	auth := probe.NewAuthHTTPChecker(cfg.CheckTimeout, creds)
	auth.Resolver = net.DefaultResolver
	shell := probe.NewShellChecker(sshclient.New(cfg.KnownHostsFile, cfg.CheckTimeout), creds)

	probes := probe.Set{
		Reachability:  reach,
		Authenticated: auth,
		RemoteShell:   shell,
	}.Audited(sink, logger)

	logger.Info("app_ready",
		zap.Int("targets", len(targets)),
		zap.String("log_dir", cfg.LogDir),
		zap.Duration("check_timeout", cfg.CheckTimeout),
		zap.Int("max_concurrent", cfg.MaxConcurrent),
	)
	return &App{
		Config:       cfg,
		Logger:       logger,
		Sink:         sink,
		Targets:      targets,
		Orchestrator: orchestrator.New(logger, probes, sink, store, cfg.CheckTimeout, cfg.MaxConcurrent),
	}, nil
}

func loadDocument(path string, sink repo.AuditSink, logger *zap.Logger, errs *error) config.Document {
	doc, err := config.LoadDocument(path)
	if err != nil {
		logger.Warn("config_load_failed", zap.String("path", path), zap.Error(err))
		*errs = multierr.Append(*errs, sink.AppendSystemLog(fmt.Sprintf("Failed to load %s: %v", filepath.Base(path), err)))
	}
	return doc
}

// RunRound checks the whole registry once.
func (a *App) RunRound(ctx context.Context) (domain.Snapshot, error) {
	return a.Orchestrator.RunRound(ctx, a.Targets)
}

func (a *App) Close() error {
	return a.Sink.Close()
}
