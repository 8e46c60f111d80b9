package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hamed0406/homecheck/internal/domain"
)

// TokenPlaceholder in a target path is replaced by the credential token.
const TokenPlaceholder = "{token}"

// HTTPChecker issues one GET per target. A 2xx/3xx answer is online;
// anything else, including transport errors, is offline. In authenticated
// mode the target's credential is sent along and 401/403 answers are
// reported as auth_failed.
type HTTPChecker struct {
	Client *http.Client
	Creds  Credentials

	// Resolver, when set, is used to add a DNS diagnosis to transport
	// failures against hostname targets.
	Resolver *net.Resolver

	authenticated bool
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

func NewAuthHTTPChecker(timeout time.Duration, creds Credentials) *HTTPChecker {
	c := NewHTTPChecker(timeout)
	c.Creds = creds
	c.authenticated = true
	return c
}

func (h *HTTPChecker) Probe(ctx context.Context, t domain.Target) domain.Outcome {
	if !hasAddress(t) {
		return outcome(t, domain.StatusOffline, noAddress)
	}
	path := t.Path
	if path == "" {
		path = "/"
	} else if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var cred domain.Credential
	if h.authenticated {
		var ok bool
		if h.Creds != nil {
			cred, ok = h.Creds.Credential(t.CredentialRef)
		}
		if !ok {
			return outcome(t, domain.StatusAuthFailed, "missing credential "+t.CredentialRef)
		}
	}
	secret := cred.Token
	if h.authenticated && secret == "" && strings.Contains(path, TokenPlaceholder) {
		return outcome(t, domain.StatusAuthFailed, "credential "+t.CredentialRef+" has no token")
	}
	inPath := secret != "" && strings.Contains(path, TokenPlaceholder)
	if inPath {
		path = strings.ReplaceAll(path, TokenPlaceholder, url.PathEscape(secret))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+t.HostPort()+path, nil)
	if err != nil {
		return outcome(t, domain.StatusOffline, redact(err.Error(), secret))
	}
	switch {
	case secret != "" && !inPath:
		req.Header.Set("Authorization", "Bearer "+secret)
	case cred.User != "" || cred.Password != "":
		req.SetBasicAuth(cred.User, cred.Password)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		detail := redact(err.Error(), secret)
		if h.Resolver != nil && ctx.Err() == nil && net.ParseIP(t.Address) == nil {
			detail += " dns=" + string(ClassifyDNS(ctx, h.Resolver, t.Address))
		}
		return outcome(t, domain.StatusOffline, detail)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		return outcome(t, domain.StatusOnline, "")
	case h.authenticated && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden):
		return outcome(t, domain.StatusAuthFailed, resp.Status)
	default:
		return outcome(t, domain.StatusOffline, resp.Status)
	}
}

// redact keeps a token that ended up in the request URL out of error text.
func redact(msg, secret string) string {
	if secret == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.PathEscape(secret), "***")
	return strings.ReplaceAll(msg, secret, "***")
}
