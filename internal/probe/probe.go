// Package probe checks individual targets. Every prober folds its failures
// into a domain.Outcome; none of them return errors to the caller.
package probe

import (
	"context"
	"strings"

	"github.com/hamed0406/homecheck/internal/domain"
)

// Prober checks one target. The per-check deadline travels in ctx.
type Prober interface {
	Probe(ctx context.Context, t domain.Target) domain.Outcome
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, t domain.Target) domain.Outcome

func (f ProberFunc) Probe(ctx context.Context, t domain.Target) domain.Outcome { return f(ctx, t) }

// Credentials resolves a target's CredentialRef.
type Credentials interface {
	Credential(ref string) (domain.Credential, bool)
}

// Set holds one prober per protocol kind.
type Set struct {
	Reachability  Prober
	Authenticated Prober
	RemoteShell   Prober
}

// For returns the prober for k, or nil when k is unknown or no prober is
// configured for it.
func (s Set) For(k domain.Kind) Prober {
	switch k {
	case domain.KindHTTPReachability:
		return s.Reachability
	case domain.KindHTTPAuthenticated:
		return s.Authenticated
	case domain.KindRemoteShell:
		return s.RemoteShell
	}
	return nil
}

// noAddress is reported for targets whose address was never configured.
// Dialing "" would reach the local host instead.
var noAddress = domain.ErrTransport.Error() + ": no address configured"

func hasAddress(t domain.Target) bool {
	return strings.TrimSpace(t.Address) != ""
}

func outcome(t domain.Target, st domain.Status, detail string) domain.Outcome {
	return domain.Outcome{TargetID: t.ID, Status: st, Detail: detail}
}
