package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hamed0406/homecheck/internal/domain"
)

type fakeCreds map[string]domain.Credential

func (f fakeCreds) Credential(ref string) (domain.Credential, bool) {
	c, ok := f[ref]
	return c, ok
}

func targetFor(t *testing.T, rawURL string, kind domain.Kind, path string) domain.Target {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %s: %v", rawURL, err)
	}
	port, _ := strconv.Atoi(u.Port())
	return domain.Target{ID: "hub", Kind: kind, Address: u.Hostname(), Port: port, Path: path}
}

func TestHTTPChecker_StatusOK(t *testing.T) {
	var gotPath string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	chk := NewHTTPChecker(2 * time.Second)
	out := chk.Probe(context.Background(), targetFor(t, s.URL, domain.KindHTTPReachability, "/json-rpc"))
	if out.Status != domain.StatusOnline {
		t.Fatalf("want online, got %+v", out)
	}
	if out.TargetID != "hub" {
		t.Fatalf("want target id hub, got %q", out.TargetID)
	}
	if gotPath != "/json-rpc" {
		t.Fatalf("want /json-rpc, got %q", gotPath)
	}
}

func TestHTTPChecker_Status500(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	chk := NewHTTPChecker(2 * time.Second)
	out := chk.Probe(context.Background(), targetFor(t, s.URL, domain.KindHTTPReachability, "/json-rpc"))
	if out.Status != domain.StatusOffline {
		t.Fatalf("want offline, got %+v", out)
	}
	if !strings.HasPrefix(out.Detail, "500") {
		t.Fatalf("want detail to start with 500, got %q", out.Detail)
	}
}

func TestHTTPChecker_UnauthorizedIsOfflineWithoutAuthMode(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer s.Close()

	out := NewHTTPChecker(time.Second).Probe(context.Background(), targetFor(t, s.URL, domain.KindHTTPReachability, "/ping"))
	if out.Status != domain.StatusOffline {
		t.Fatalf("want offline, got %+v", out)
	}
}

func TestHTTPChecker_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	chk := NewHTTPChecker(time.Second)
	out := chk.Probe(context.Background(), domain.Target{ID: "hub", Address: "127.0.0.1", Port: addr.Port, Path: "/json-rpc"})
	if out.Status != domain.StatusOffline {
		t.Fatalf("want offline, got %+v", out)
	}
	if out.Detail == "" {
		t.Fatalf("want connection error text in detail")
	}
}

func TestHTTPChecker_EmptyAddressFailsFast(t *testing.T) {
	start := time.Now()
	out := NewHTTPChecker(5*time.Second).Probe(context.Background(), domain.Target{ID: "esp32", Path: "/ping"})
	if out.Status != domain.StatusOffline || out.Detail != "transport failure: no address configured" {
		t.Fatalf("want offline with no-address detail, got %+v", out)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("empty address should fail fast")
	}
}

func TestHTTPChecker_EmptyAddressNeverReachesLocalHost(t *testing.T) {
	var hits int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer s.Close()

	tgt := targetFor(t, s.URL, domain.KindHTTPReachability, "/ping")
	tgt.Address = ""
	for _, chk := range []*HTTPChecker{
		NewHTTPChecker(time.Second),
		NewAuthHTTPChecker(time.Second, fakeCreds{"": {Token: "t"}}),
	} {
		out := chk.Probe(context.Background(), tgt)
		if out.Status != domain.StatusOffline || !strings.Contains(out.Detail, "no address configured") {
			t.Fatalf("want offline for empty address, got %+v", out)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("empty address reached the local server %d times", n)
	}
}

func TestHTTPChecker_TimeoutIsOffline(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		w.WriteHeader(200)
	}))
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	out := NewHTTPChecker(5*time.Second).Probe(ctx, targetFor(t, s.URL, domain.KindHTTPReachability, "/"))
	if out.Status != domain.StatusOffline {
		t.Fatalf("want offline due to timeout, got %+v", out)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("context deadline not honoured, took %v", elapsed)
	}
	if out.Detail == "" {
		t.Fatalf("want non-empty error detail")
	}
}

func TestAuthHTTPChecker_TokenInPath(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/good-token/config" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(200)
	}))
	defer s.Close()

	tgt := targetFor(t, s.URL, domain.KindHTTPAuthenticated, "/api/{token}/config")
	tgt.CredentialRef = "hue"

	good := NewAuthHTTPChecker(time.Second, fakeCreds{"hue": {Token: "good-token"}})
	if out := good.Probe(context.Background(), tgt); out.Status != domain.StatusOnline {
		t.Fatalf("want online, got %+v", out)
	}

	bad := NewAuthHTTPChecker(time.Second, fakeCreds{"hue": {Token: "stale"}})
	out := bad.Probe(context.Background(), tgt)
	if out.Status != domain.StatusAuthFailed {
		t.Fatalf("want auth_failed, got %+v", out)
	}
}

func TestAuthHTTPChecker_BearerHeader(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer s.Close()

	tgt := targetFor(t, s.URL, domain.KindHTTPAuthenticated, "/status")
	tgt.CredentialRef = "cam"
	out := NewAuthHTTPChecker(time.Second, fakeCreds{"cam": {Token: "secret"}}).Probe(context.Background(), tgt)
	if out.Status != domain.StatusOnline {
		t.Fatalf("want online, got %+v", out)
	}
}

func TestAuthHTTPChecker_BasicAuth(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != "admin" || p != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(200)
	}))
	defer s.Close()

	tgt := targetFor(t, s.URL, domain.KindHTTPAuthenticated, "/")
	tgt.CredentialRef = "nas"
	out := NewAuthHTTPChecker(time.Second, fakeCreds{"nas": {User: "admin", Password: "pw"}}).Probe(context.Background(), tgt)
	if out.Status != domain.StatusOnline {
		t.Fatalf("want online, got %+v", out)
	}
}

func TestAuthHTTPChecker_MissingCredential(t *testing.T) {
	tgt := domain.Target{ID: "hue", Kind: domain.KindHTTPAuthenticated, Address: "127.0.0.1", Path: "/api/{token}/config", CredentialRef: "hue"}

	out := NewAuthHTTPChecker(time.Second, fakeCreds{}).Probe(context.Background(), tgt)
	if out.Status != domain.StatusAuthFailed {
		t.Fatalf("want auth_failed, got %+v", out)
	}

	out = NewAuthHTTPChecker(time.Second, fakeCreds{"hue": {User: "x"}}).Probe(context.Background(), tgt)
	if out.Status != domain.StatusAuthFailed || !strings.Contains(out.Detail, "no token") {
		t.Fatalf("want auth_failed for tokenless credential, got %+v", out)
	}
}

func TestAuthHTTPChecker_TokenRedactedFromErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	tgt := domain.Target{ID: "hue", Address: "127.0.0.1", Port: port, Path: "/api/{token}/config", CredentialRef: "hue"}
	out := NewAuthHTTPChecker(time.Second, fakeCreds{"hue": {Token: "very-secret-token"}}).Probe(context.Background(), tgt)
	if out.Status != domain.StatusOffline {
		t.Fatalf("want offline, got %+v", out)
	}
	if strings.Contains(out.Detail, "very-secret-token") {
		t.Fatalf("token leaked into detail: %q", out.Detail)
	}
}
