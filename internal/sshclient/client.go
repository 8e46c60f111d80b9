// Package sshclient is the remote-shell transport used by the shell probe.
package sshclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/hamed0406/homecheck/internal/domain"
	"github.com/hamed0406/homecheck/internal/probe"
)

// Transport dials password (or key) authenticated SSH sessions.
type Transport struct {
	// KnownHostsPath pins host keys. Empty accepts any host key, which is
	// what small home setups with re-flashed Pis usually need.
	KnownHostsPath string
	// Timeout bounds TCP connect and handshake when ctx has no deadline.
	Timeout time.Duration
}

var _ probe.ShellTransport = (*Transport)(nil)

func New(knownHostsPath string, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Transport{KnownHostsPath: knownHostsPath, Timeout: timeout}
}

func (t *Transport) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if t.KnownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(t.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load known_hosts %s: %v", domain.ErrCapabilityUnavailable, t.KnownHostsPath, err)
	}
	return cb, nil
}

func authMethods(cred domain.Credential) []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if cred.Token != "" {
		if signer, err := ssh.ParsePrivateKey([]byte(cred.Token)); err == nil {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}
	methods = append(methods,
		ssh.Password(cred.Password),
		ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = cred.Password
			}
			return answers, nil
		}),
	)
	return methods
}

// Dial connects to addr and authenticates. Credential rejection is wrapped
// in domain.ErrAuth, everything else on the way in domain.ErrTransport.
func (t *Transport) Dial(ctx context.Context, addr string, cred domain.Credential) (probe.ShellSession, error) {
	hostKey, err := t.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(t.Timeout)
	}
	d := net.Dialer{Deadline: deadline}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrTransport, addr, err)
	}
	// Handshake and command share the probe's deadline; closing the socket
	// on cancellation unblocks anything still reading from it.
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	cfg := &ssh.ClientConfig{
		User:            cred.User,
		Auth:            authMethods(cred),
		HostKeyCallback: hostKey,
	}
	cc, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		stop()
		_ = conn.Close()
		if isAuthError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrAuth, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: handshake with %s: %v", domain.ErrTransport, addr, ctxErr)
		}
		return nil, fmt.Errorf("%w: handshake with %s: %v", domain.ErrTransport, addr, err)
	}
	return &Session{client: ssh.NewClient(cc, chans, reqs), stop: stop}, nil
}

// isAuthError recognises the client-side authentication failure. The ssh
// package does not export a type for it.
func isAuthError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain")
}

// Session is one authenticated SSH connection.
type Session struct {
	client *ssh.Client
	stop   func() bool
}

// Run executes command and returns its trimmed stdout. On ctx expiry the
// remote process is killed and the connection closed.
func (s *Session) Run(ctx context.Context, command string) (string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: open session: %v", domain.ErrTransport, err)
	}
	defer sess.Close()

	var stdout bytes.Buffer
	sess.Stdout = &stdout

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = s.client.Close()
		return "", fmt.Errorf("%w: run %q: %v", domain.ErrTransport, command, ctx.Err())
	case err := <-done:
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				return "", fmt.Errorf("%w: %q exited with status %d", domain.ErrTransport, command, exitErr.ExitStatus())
			}
			return "", fmt.Errorf("%w: run %q: %v", domain.ErrTransport, command, err)
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (s *Session) Close() error {
	if s.stop != nil {
		s.stop()
	}
	err := s.client.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
