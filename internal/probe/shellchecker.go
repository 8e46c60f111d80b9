package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/hamed0406/homecheck/internal/domain"
)

// LivenessCommand is run on remote-shell targets; any output means alive.
const LivenessCommand = "echo online"

const defaultShellPort = 22

// ShellTransport is the remote-shell capability. Implementations wrap
// credential rejections in domain.ErrAuth and a missing or broken client
// setup in domain.ErrCapabilityUnavailable.
type ShellTransport interface {
	Dial(ctx context.Context, addr string, cred domain.Credential) (ShellSession, error)
}

// ShellSession is an authenticated connection. Close must be safe to call
// after ctx has expired.
type ShellSession interface {
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

// ShellChecker logs in to the target and runs LivenessCommand.
type ShellChecker struct {
	Transport ShellTransport
	Creds     Credentials
}

// NewShellChecker builds the remote-shell prober. A nil transport is valid:
// every target then reports unavailable.
func NewShellChecker(tr ShellTransport, creds Credentials) *ShellChecker {
	return &ShellChecker{Transport: tr, Creds: creds}
}

func (s *ShellChecker) Probe(ctx context.Context, t domain.Target) domain.Outcome {
	if s.Transport == nil {
		return outcome(t, domain.StatusUnavailable, domain.ErrCapabilityUnavailable.Error()+": no remote shell client")
	}
	if !hasAddress(t) {
		return outcome(t, domain.StatusOffline, noAddress)
	}

	var cred domain.Credential
	if s.Creds != nil {
		cred, _ = s.Creds.Credential(t.CredentialRef)
	}
	port := t.Port
	if port == 0 {
		port = defaultShellPort
	}
	addr := net.JoinHostPort(t.Address, strconv.Itoa(port))

	sess, err := s.Transport.Dial(ctx, addr, cred)
	if err != nil {
		return outcome(t, classifyShellError(err), err.Error())
	}
	defer sess.Close()

	out, err := sess.Run(ctx, LivenessCommand)
	if err != nil {
		return outcome(t, classifyShellError(err), err.Error())
	}
	if strings.TrimSpace(out) == "" {
		return outcome(t, domain.StatusUnknown, "empty output from liveness command")
	}
	return outcome(t, domain.StatusOnline, "")
}

func classifyShellError(err error) domain.Status {
	switch {
	case errors.Is(err, domain.ErrAuth):
		return domain.StatusAuthFailed
	case errors.Is(err, domain.ErrCapabilityUnavailable):
		return domain.StatusUnavailable
	default:
		return domain.StatusOffline
	}
}
