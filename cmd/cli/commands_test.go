package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/homecheck/internal/domain"
	"github.com/hamed0406/homecheck/internal/repo/file"
)

func TestSimulateFailureCmd_AppendsDummyRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"simulate-failure", "--log-dir", dir})
	for i := 0; i < 2; i++ {
		if err := root.Execute(); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	sink, err := file.New(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	recs, err := sink.ReadRecords()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("want 2 records, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Error != "Dummy error" || r.Kind != domain.RecordSimulated || r.Timestamp.IsZero() {
			t.Fatalf("unexpected record: %+v", r)
		}
	}
	data, _ := os.ReadFile(filepath.Join(dir, file.SystemLogName))
	if strings.Count(string(data), " - Simulated failure logged\n") != 2 {
		t.Fatalf("unexpected system log:\n%s", data)
	}
	if !strings.Contains(out.String(), "Simulated failure logged") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestTriggerRound(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/rounds" {
			http.NotFound(w, r)
			return
		}
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"timestamp": time.Now().UTC(),
			"statuses":  map[string]string{"hue": "online", "ssh": "auth_failed"},
		})
	}))
	defer srv.Close()

	statuses, err := triggerRound(context.Background(), srv.Client(), srv.URL+"/", "adm")
	if err != nil {
		t.Fatalf("triggerRound: %v", err)
	}
	if gotKey != "adm" {
		t.Fatalf("key not sent, got %q", gotKey)
	}
	if statuses["hue"] != "online" || statuses["ssh"] != "auth_failed" {
		t.Fatalf("unexpected statuses: %v", statuses)
	}
}

func TestTriggerRound_ServerErrorKeepsStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"statuses":{"hue":"online"},"error":"storage failure: disk full"}`))
	}))
	defer srv.Close()

	statuses, err := triggerRound(context.Background(), srv.Client(), srv.URL, "")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("want server error, got %v", err)
	}
	if statuses["hue"] != "online" {
		t.Fatalf("statuses should survive the error: %v", statuses)
	}
}

func TestRoundCmd_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"round", "--api", srv.URL, "--key", "pub"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "forbidden") {
		t.Fatalf("want forbidden error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("nothing should be printed without statuses, got %q", out.String())
	}
}

func TestFirstKey(t *testing.T) {
	if got := firstKey(" a1 , b2"); got != "a1" {
		t.Fatalf("want a1, got %q", got)
	}
	if got := firstKey(""); got != "" {
		t.Fatalf("want empty, got %q", got)
	}
}
