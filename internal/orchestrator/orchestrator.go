// Package orchestrator runs one round of checks over the target registry
// and turns the outcomes into a single persisted snapshot.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/homecheck/internal/domain"
	"github.com/hamed0406/homecheck/internal/probe"
	"github.com/hamed0406/homecheck/internal/repo"
)

const (
	SummaryPrefix  = "Connection summary: "
	RoundCompleted = "round completed"
)

type Orchestrator struct {
	Logger      *zap.Logger
	Probes      probe.Set
	Sink        repo.AuditSink
	Store       repo.SnapshotStore
	Timeout     time.Duration
	Grace       time.Duration
	Concurrency int

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// New builds an orchestrator. store may be nil when nobody reads the
// latest snapshot back.
func New(
	logger *zap.Logger,
	probes probe.Set,
	sink repo.AuditSink,
	store repo.SnapshotStore,
	timeout time.Duration,
	concurrency int,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Orchestrator{
		Logger:      logger,
		Probes:      probes,
		Sink:        sink,
		Store:       store,
		Timeout:     timeout,
		Grace:       time.Second,
		Concurrency: concurrency,
		now:         time.Now,
	}
}

type result struct {
	out      domain.Outcome
	elapsed  time.Duration
	auditErr error
}

// RunRound checks every target once and returns the snapshot. The snapshot
// is always complete; a non-nil error means part of the audit trail could
// not be written and wraps domain.ErrStorage.
func (o *Orchestrator) RunRound(ctx context.Context, targets []domain.Target) (domain.Snapshot, error) {
	o.Logger.Info("round_started", zap.Int("targets", len(targets)))

	results := make([]result, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(o.Concurrency)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			results[i] = o.check(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	var errs error
	outcomes := make(map[domain.TargetID]domain.Outcome, len(targets))
	for i, t := range targets {
		r := results[i]
		outcomes[t.ID] = r.out
		errs = multierr.Append(errs, r.auditErr)
		o.Logger.Info("probe_finished",
			zap.String("target_id", string(t.ID)),
			zap.String("kind", string(t.Kind)),
			zap.String("status", string(r.out.Status)),
			zap.String("detail", r.out.Detail),
			zap.Duration("elapsed", r.elapsed),
		)
	}

	snap := domain.Snapshot{Timestamp: o.stamp(), Outcomes: outcomes}
	errs = multierr.Append(errs, o.persist(context.WithoutCancel(ctx), snap, targets))
	if errs != nil {
		o.Logger.Warn("round_storage_error", zap.Error(errs))
		return snap, fmt.Errorf("%w: persist round: %w", domain.ErrStorage, errs)
	}
	o.Logger.Info("round_completed", zap.Int("targets", len(targets)), zap.Time("timestamp", snap.Timestamp))
	return snap, nil
}

// check runs one probe in its own goroutine so that a panic or a probe that
// ignores ctx cannot hold up the round for longer than Timeout + Grace.
func (o *Orchestrator) check(ctx context.Context, t domain.Target) result {
	start := time.Now()
	p := o.Probes.For(t.Kind)
	if p == nil {
		out := domain.Outcome{
			TargetID: t.ID,
			Status:   domain.StatusUnavailable,
			Detail:   fmt.Sprintf("%v: no probe for kind %q", domain.ErrCapabilityUnavailable, t.Kind),
		}
		return result{out: out, elapsed: time.Since(start), auditErr: o.audit(out)}
	}

	tctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()
	cctx, abandon := context.WithCancelCause(tctx)
	defer abandon(nil)

	done := make(chan domain.Outcome, 1)
	panicked := make(chan any, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				panicked <- r
			}
		}()
		done <- p.Probe(cctx, t)
	}()

	timer := time.NewTimer(o.Timeout + o.Grace)
	defer timer.Stop()

	var out domain.Outcome
	synthesized := true
	select {
	case out = <-done:
		synthesized = false
		out.TargetID = t.ID
		if out.Status == "" {
			out.Status = domain.StatusUnknown
		}
	case r := <-panicked:
		o.Logger.Error("probe_panic", zap.String("target_id", string(t.ID)), zap.Any("panic", r))
		out = domain.Outcome{TargetID: t.ID, Status: domain.StatusUnavailable, Detail: fmt.Sprintf("probe panicked: %v", r)}
	case <-timer.C:
		abandon(probe.ErrAbandoned)
		o.Logger.Warn("probe_abandoned", zap.String("target_id", string(t.ID)), zap.Duration("timeout", o.Timeout))
		out = domain.Outcome{TargetID: t.ID, Status: domain.StatusOffline, Detail: fmt.Sprintf("timed out after %s", o.Timeout)}
	}

	res := result{out: out, elapsed: time.Since(start)}
	if synthesized {
		res.auditErr = o.audit(out)
	}
	return res
}

// audit records outcomes the probes never got to report themselves.
func (o *Orchestrator) audit(out domain.Outcome) error {
	if o.Sink == nil {
		return nil
	}
	return multierr.Append(
		o.Sink.AppendSystemLog(probe.FailureMessage(out)),
		o.Sink.AppendRecord(domain.Record{
			Timestamp: time.Now(),
			Kind:      domain.RecordFailure,
			TargetID:  out.TargetID,
			Status:    out.Status,
			Error:     out.Detail,
		}),
	)
}

func (o *Orchestrator) persist(ctx context.Context, snap domain.Snapshot, targets []domain.Target) error {
	var err error
	if o.Sink != nil {
		err = multierr.Append(err, o.Sink.AppendSystemLog(SummaryPrefix+Summary(snap, targets)))
		err = multierr.Append(err, o.Sink.AppendRecord(domain.Record{
			Timestamp: snap.Timestamp,
			Kind:      domain.RecordSnapshot,
			Snapshot:  &snap,
		}))
		err = multierr.Append(err, o.Sink.AppendSystemLog(RoundCompleted))
	}
	if o.Store != nil {
		err = multierr.Append(err, o.Store.SaveSnapshot(ctx, snap))
	}
	return err
}

// stamp returns the completion time, never earlier than the previous
// round's.
func (o *Orchestrator) stamp() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	ts := o.now().UTC()
	if ts.Before(o.last) {
		ts = o.last
	}
	o.last = ts
	return ts
}

// Summary renders "id=status" pairs in registry order.
func Summary(snap domain.Snapshot, targets []domain.Target) string {
	seen := make(map[domain.TargetID]bool, len(targets))
	parts := make([]string, 0, len(targets))
	for _, t := range targets {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		if o, ok := snap.Outcomes[t.ID]; ok {
			parts = append(parts, fmt.Sprintf("%s=%s", t.ID, o.Status))
		}
	}
	return strings.Join(parts, ", ")
}
