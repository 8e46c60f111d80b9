package domain

import (
	"fmt"
	"time"
)

type TargetID string

// Kind selects which probe checks a target.
type Kind string

const (
	KindHTTPReachability  Kind = "http_reachability"
	KindHTTPAuthenticated Kind = "http_authenticated"
	KindRemoteShell       Kind = "remote_shell"
)

// Kinds lists every known protocol kind.
func Kinds() []Kind {
	return []Kind{KindHTTPReachability, KindHTTPAuthenticated, KindRemoteShell}
}

func (k Kind) Valid() bool {
	switch k {
	case KindHTTPReachability, KindHTTPAuthenticated, KindRemoteShell:
		return true
	}
	return false
}

// Target is one remote endpoint to be checked. Port 0 means "not set".
type Target struct {
	ID            TargetID `json:"id"`
	Kind          Kind     `json:"kind"`
	Address       string   `json:"address"`
	Port          int      `json:"port,omitempty"`
	Path          string   `json:"path,omitempty"`
	CredentialRef string   `json:"credential_ref,omitempty"`
}

// HostPort renders address[:port].
func (t Target) HostPort() string {
	if t.Port > 0 {
		return fmt.Sprintf("%s:%d", t.Address, t.Port)
	}
	return t.Address
}

// Credential is the secret material a CredentialRef resolves to.
type Credential struct {
	User     string `json:"-"`
	Password string `json:"-"`
	Token    string `json:"-"`
}

type Status string

const (
	StatusOnline      Status = "online"
	StatusOffline     Status = "offline"
	StatusAuthFailed  Status = "auth_failed"
	StatusUnavailable Status = "unavailable"
	StatusUnknown     Status = "unknown"
)

// Outcome is the classified result of checking one target in one round.
type Outcome struct {
	TargetID TargetID `json:"target_id"`
	Status   Status   `json:"status"`
	Detail   string   `json:"detail,omitempty"`
}

// Snapshot is the full set of outcomes for one round.
type Snapshot struct {
	Timestamp time.Time            `json:"timestamp"`
	Outcomes  map[TargetID]Outcome `json:"outcomes"`
}

// Statuses flattens the snapshot to the target id -> status report.
func (s Snapshot) Statuses() map[string]string {
	out := make(map[string]string, len(s.Outcomes))
	for id, o := range s.Outcomes {
		out[string(id)] = string(o.Status)
	}
	return out
}

// RecordKind tags entries in the feedback log.
type RecordKind string

const (
	RecordFailure   RecordKind = "failure"
	RecordSnapshot  RecordKind = "snapshot"
	RecordSimulated RecordKind = "simulated"
)

// Record is one structured entry in the feedback log.
type Record struct {
	Timestamp time.Time  `json:"timestamp"`
	Kind      RecordKind `json:"kind,omitempty"`
	TargetID  TargetID   `json:"target_id,omitempty"`
	Status    Status     `json:"status,omitempty"`
	Error     string     `json:"error,omitempty"`
	Snapshot  *Snapshot  `json:"snapshot,omitempty"`
}
