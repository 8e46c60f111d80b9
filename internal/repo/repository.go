package repo

import (
	"context"

	"go.uber.org/multierr"

	"github.com/hamed0406/homecheck/internal/domain"
)

// AuditSink is the durable audit trail: a plain-text system log and a
// structured feedback log. Both only ever grow.
type AuditSink interface {
	// AppendSystemLog writes one "<timestamp> - <message>" line.
	AppendSystemLog(message string) error
	// AppendRecord adds rec to the end of the feedback log.
	AppendRecord(rec domain.Record) error
}

// SnapshotStore keeps the most recent round for readers such as the API.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s domain.Snapshot) error
	// LatestSnapshot returns nil, nil before the first round.
	LatestSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

// Tee fans writes out to several sinks. Every sink is attempted; errors are
// combined.
type Tee []AuditSink

func (t Tee) AppendSystemLog(message string) error {
	var err error
	for _, s := range t {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.AppendSystemLog(message))
	}
	return err
}

func (t Tee) AppendRecord(rec domain.Record) error {
	var err error
	for _, s := range t {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.AppendRecord(rec))
	}
	return err
}
