// cmd/preflight/main.go
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/homecheck/internal/config"
	"github.com/hamed0406/homecheck/internal/domain"
	"github.com/hamed0406/homecheck/internal/repo/file"
	"github.com/hamed0406/homecheck/internal/selfcheck"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	if loaded := config.LoadDotEnv(); len(loaded) > 0 {
		ok("loaded " + strings.Join(loaded, ", "))
	}
	cfg := config.FromEnv()

	sink, err := file.New(cfg.LogDir, nil)
	if err != nil {
		fail(fmt.Sprintf("LOG_DIR=%s is not writable: %v", cfg.LogDir, err))
	}
	defer sink.Close()
	ok("LOG_DIR=" + cfg.LogDir)

	params, err := config.LoadDocument(cfg.ConfigFile)
	if errors.Is(err, domain.ErrConfigurationMissing) {
		warn(fmt.Sprintf("%s: %v (default device targets will be used)", cfg.ConfigFile, err))
	} else {
		ok("CONFIG_FILE=" + cfg.ConfigFile)
	}
	targets, err := config.Targets(params)
	if err != nil {
		warn("some targets were skipped: " + err.Error())
	}
	for _, t := range targets {
		if t.Address == "" {
			warn(fmt.Sprintf("target %s has no address; it will report offline", t.ID))
		}
	}
	ok(fmt.Sprintf("%d targets configured", len(targets)))

	secretsDoc, err := config.LoadDocument(cfg.SecretsFile)
	if err != nil {
		warn(fmt.Sprintf("%s: %v (authenticated checks will report auth_failed)", cfg.SecretsFile, err))
	} else {
		ok("SECRETS_FILE=" + cfg.SecretsFile)
	}
	secrets := config.NewSecrets(secretsDoc)
	for _, t := range targets {
		if t.CredentialRef == "" {
			continue
		}
		if _, found := secrets.Credential(t.CredentialRef); !found {
			warn(fmt.Sprintf("target %s: no credential %q in secrets", t.ID, t.CredentialRef))
		}
	}

	if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS is empty; POST /api/rounds is open to anyone who can reach the API.")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty; read routes are open unless admin keys are set.")
	}
	if cfg.KnownHostsFile == "" {
		warn("SSH_KNOWN_HOSTS is empty; remote-shell host keys are not verified.")
	} else if _, err := os.Stat(cfg.KnownHostsFile); err != nil {
		warn(fmt.Sprintf("SSH_KNOWN_HOSTS: %v (remote-shell checks will report unavailable)", err))
	}
	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	root := os.Getenv("SELFCHECK_ROOT")
	if root == "" {
		root = "."
	}
	reports, err := selfcheck.Run(root, sink)
	if err != nil {
		warn("source scan: " + err.Error())
	}
	ok(fmt.Sprintf("scanned %d Go files under %s (see %s)", len(reports), root, sink.SystemLogPath()))

	ok("preflight passed")
}
