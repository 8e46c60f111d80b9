package selfcheck

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hamed0406/homecheck/internal/repo/memory"
)

func write(t *testing.T, path, src string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

const checked = `package a

import "os"

func Load() ([]byte, error) {
	b, err := os.ReadFile("config.json")
	if err != nil {
		return nil, err
	}
	return b, nil
}
`

const logging = `package b

type sink interface{ AppendSystemLog(string) error }

func Note(s sink) { _ = s.AppendSystemLog("hi") }
`

func TestScan_Flags(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a", "a.go"), checked)
	write(t, filepath.Join(root, "b", "b.go"), logging)
	write(t, filepath.Join(root, "_examples", "skip.go"), checked)
	write(t, filepath.Join(root, "notes.txt"), "not go")

	reports, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("want 2 reports, got %+v", reports)
	}
	byBase := map[string]FileReport{}
	for _, r := range reports {
		byBase[filepath.Base(r.Path)] = r
	}

	a := byBase["a.go"]
	if !a.HandlesErrors || !a.Returns || !a.UsesConfig || a.WritesSystemLog {
		t.Fatalf("unexpected flags for a.go: %+v", a)
	}
	b := byBase["b.go"]
	if b.HandlesErrors || b.Returns || b.UsesConfig || !b.WritesSystemLog {
		t.Fatalf("unexpected flags for b.go: %+v", b)
	}
}

func TestRun_LogsEveryFileThenCompletion(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.go"), checked)
	write(t, filepath.Join(root, "broken.go"), "package x\nfunc {")

	mem := memory.New()
	reports, err := Run(root, mem)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("want 2 reports, got %d", len(reports))
	}

	lines := mem.SystemLog()
	if len(lines) != 3 {
		t.Fatalf("want 3 log lines, got %+v", lines)
	}
	if lines[2].Message != Completed {
		t.Fatalf("last line should be %q, got %q", Completed, lines[2].Message)
	}
	var sawFile, sawError bool
	for _, l := range lines[:2] {
		if strings.HasPrefix(l.Message, "FILE ") && strings.Contains(l.Message, "error_handling=true") {
			sawFile = true
		}
		if strings.HasPrefix(l.Message, "ERROR reading ") {
			sawError = true
		}
	}
	if !sawFile || !sawError {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestRun_MissingRoot(t *testing.T) {
	mem := memory.New()
	_, err := Run(filepath.Join(t.TempDir(), "absent"), mem)
	if err == nil {
		t.Fatalf("want error for missing root")
	}
	lines := mem.SystemLog()
	if len(lines) == 0 || lines[len(lines)-1].Message != Completed {
		t.Fatalf("completion line must still be written: %+v", lines)
	}
}
