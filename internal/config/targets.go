package config

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/hamed0406/homecheck/internal/domain"
)

// Targets builds the registry from config.json.
//
// When the document carries a "targets" list, those entries are the
// registry. Otherwise the four home devices are described by the flat keys
// hyperhdr_ip/hyperhdr_port, esp32_ip, hue_ip and raspberry_ip. Missing keys
// resolve to defaults (mostly empty addresses) so a round still reports a
// status for every device.
//
// Invalid or duplicate list entries are skipped; the returned error
// describes every skipped entry and the remaining targets are still usable.
func Targets(params Document) ([]domain.Target, error) {
	raw, ok := params["targets"]
	if !ok {
		return deviceTargets(params), nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("targets: want a list, got %T", raw)
	}

	var errs error
	seen := make(map[domain.TargetID]bool, len(list))
	out := make([]domain.Target, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("targets[%d]: want an object, got %T", i, item))
			continue
		}
		t, err := targetFrom(Document(obj))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("targets[%d]: %w", i, err))
			continue
		}
		if seen[t.ID] {
			errs = multierr.Append(errs, fmt.Errorf("targets[%d]: duplicate id %q", i, t.ID))
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out, errs
}

func targetFrom(d Document) (domain.Target, error) {
	t := domain.Target{
		ID:            domain.TargetID(d.String("id", "")),
		Kind:          domain.Kind(d.String("kind", "")),
		Address:       d.String("address", ""),
		Port:          d.Int("port", 0),
		Path:          d.String("path", ""),
		CredentialRef: d.String("credential_ref", ""),
	}
	if t.ID == "" {
		return t, fmt.Errorf("missing id")
	}
	if !t.Kind.Valid() {
		return t, fmt.Errorf("target %q: unknown kind %q", t.ID, t.Kind)
	}
	if t.Port < 0 || t.Port > 65535 {
		return t, fmt.Errorf("target %q: port %d out of range", t.ID, t.Port)
	}
	return t, nil
}

func deviceTargets(params Document) []domain.Target {
	return []domain.Target{
		{
			ID:      "hyperhdr",
			Kind:    domain.KindHTTPReachability,
			Address: params.String("hyperhdr_ip", "localhost"),
			Port:    params.Int("hyperhdr_port", 8090),
			Path:    "/json-rpc",
		},
		{
			ID:      "esp32",
			Kind:    domain.KindHTTPReachability,
			Address: params.String("esp32_ip", ""),
			Path:    "/ping",
		},
		{
			ID:            "hue",
			Kind:          domain.KindHTTPAuthenticated,
			Address:       params.String("hue_ip", ""),
			Path:          "/api/{token}/config",
			CredentialRef: "hue",
		},
		{
			ID:            "ssh",
			Kind:          domain.KindRemoteShell,
			Address:       params.String("raspberry_ip", ""),
			Port:          22,
			CredentialRef: "ssh",
		},
	}
}
