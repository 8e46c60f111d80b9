package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/homecheck/internal/domain"
	"github.com/hamed0406/homecheck/internal/repo"
)

// ErrAbandoned is the cancellation cause set on a check's context once the
// caller has stopped waiting for it and recorded the outcome itself.
var ErrAbandoned = errors.New("check abandoned")

// Audited records every non-online outcome of Inner: one system log line
// and one failure record in the feedback log. Audit write errors are logged
// and otherwise ignored here; the round reports storage failures itself.
// Outcomes that arrive after the check was abandoned are not recorded.
type Audited struct {
	Inner  Prober
	Sink   repo.AuditSink
	Logger *zap.Logger
}

func (a *Audited) Probe(ctx context.Context, t domain.Target) domain.Outcome {
	out := a.Inner.Probe(ctx, t)
	if out.Status == domain.StatusOnline || a.Sink == nil {
		return out
	}
	if errors.Is(context.Cause(ctx), ErrAbandoned) {
		a.logger().Debug("audit_skipped_abandoned", zap.String("target_id", string(t.ID)))
		return out
	}

	if err := a.Sink.AppendSystemLog(FailureMessage(out)); err != nil {
		a.logger().Warn("audit_system_log_error", zap.String("target_id", string(t.ID)), zap.Error(err))
	}
	rec := domain.Record{
		Timestamp: time.Now(),
		Kind:      domain.RecordFailure,
		TargetID:  t.ID,
		Status:    out.Status,
		Error:     out.Detail,
	}
	if err := a.Sink.AppendRecord(rec); err != nil {
		a.logger().Warn("audit_record_error", zap.String("target_id", string(t.ID)), zap.Error(err))
	}
	return out
}

func (a *Audited) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

// FailureMessage is the system log line for a non-online outcome.
func FailureMessage(o domain.Outcome) string {
	if o.Status == domain.StatusAuthFailed {
		if o.Detail == "" {
			return fmt.Sprintf("%s authentication failed", o.TargetID)
		}
		return fmt.Sprintf("%s authentication failed: %s", o.TargetID, o.Detail)
	}
	if o.Detail == "" {
		return fmt.Sprintf("%s check failed (%s)", o.TargetID, o.Status)
	}
	return fmt.Sprintf("%s check failed (%s): %s", o.TargetID, o.Status, o.Detail)
}

// Audited wraps every configured prober in s.
func (s Set) Audited(sink repo.AuditSink, log *zap.Logger) Set {
	wrap := func(p Prober) Prober {
		if p == nil {
			return nil
		}
		return &Audited{Inner: p, Sink: sink, Logger: log}
	}
	return Set{
		Reachability:  wrap(s.Reachability),
		Authenticated: wrap(s.Authenticated),
		RemoteShell:   wrap(s.RemoteShell),
	}
}
