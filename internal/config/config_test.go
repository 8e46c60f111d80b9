package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_ParsesAndDefaults(t *testing.T) {
	t.Setenv("API_ADDR", ":9090")
	t.Setenv("LOG_DIR", "./_testlogs")
	t.Setenv("LOG_CONSOLE", "true")
	t.Setenv("CONFIG_FILE", "/etc/homecheck/config.json")
	t.Setenv("PUBLIC_API_KEYS", "pub_a, pub_b")
	t.Setenv("ADMIN_API_KEYS", "adm_x")
	t.Setenv("CHECK_TIMEOUT_MS", "1234")
	t.Setenv("MAX_CONCURRENT_CHECKS", "7")
	t.Setenv("PUBLIC_RPM", "111")
	t.Setenv("PUBLIC_BURST", "22")
	t.Setenv("ADMIN_RPM", "33")
	t.Setenv("ADMIN_BURST", "44")

	cfg := FromEnv()

	if cfg.Addr != ":9090" || cfg.LogDir != "./_testlogs" || !cfg.LogConsole {
		t.Fatalf("addr/logdir wrong: %+v", cfg)
	}
	if cfg.ConfigFile != "/etc/homecheck/config.json" || cfg.SecretsFile != "secrets.json" {
		t.Fatalf("config files wrong: %+v", cfg)
	}
	if len(cfg.PublicAPIKeys) != 2 || cfg.PublicAPIKeys[1] != "pub_b" {
		t.Fatalf("public keys wrong: %+v", cfg.PublicAPIKeys)
	}
	if len(cfg.AdminAPIKeys) != 1 || cfg.AdminAPIKeys[0] != "adm_x" {
		t.Fatalf("admin keys wrong: %+v", cfg.AdminAPIKeys)
	}
	if cfg.CheckTimeout != 1234*time.Millisecond || cfg.MaxConcurrent != 7 {
		t.Fatalf("check tuning wrong: %+v", cfg)
	}
	if cfg.PublicRPM != 111 || cfg.PublicBurst != 22 || cfg.AdminRPM != 33 || cfg.AdminBurst != 44 {
		t.Fatalf("rate limits wrong: %+v", cfg)
	}
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("API_ADDR", "")
	t.Setenv("ADDR", "")
	t.Setenv("CHECK_TIMEOUT_MS", "soon")
	t.Setenv("MAX_CONCURRENT_CHECKS", "-3")
	t.Setenv("LOG_CONSOLE", "maybe")

	cfg := FromEnv()
	if cfg.Addr != "127.0.0.1:8080" {
		t.Fatalf("want default addr, got %q", cfg.Addr)
	}
	if cfg.CheckTimeout != 5*time.Second {
		t.Fatalf("want 5s default timeout, got %v", cfg.CheckTimeout)
	}
	if cfg.MaxConcurrent != 4 {
		t.Fatalf("want default concurrency 4, got %d", cfg.MaxConcurrent)
	}
	if cfg.LogConsole {
		t.Fatalf("unparsable bool should fall back to false")
	}
}

func TestLoadDotEnv_ProcessEnvWins(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "test.env")
	if err := os.WriteFile(f, []byte("HOMECHECK_TEST_A=from_file\nHOMECHECK_TEST_B=from_file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOMECHECK_TEST_A", "from_env")
	t.Setenv("HOMECHECK_TEST_B", "")
	os.Unsetenv("HOMECHECK_TEST_B")

	loaded := LoadDotEnv(f, filepath.Join(dir, "missing.env"))
	if len(loaded) != 1 || loaded[0] != f {
		t.Fatalf("unexpected loaded files: %v", loaded)
	}
	if got := os.Getenv("HOMECHECK_TEST_A"); got != "from_env" {
		t.Fatalf("process env should win, got %q", got)
	}
	if got := os.Getenv("HOMECHECK_TEST_B"); got != "from_file" {
		t.Fatalf("file value should fill gaps, got %q", got)
	}
	os.Unsetenv("HOMECHECK_TEST_B")
}
