package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STATS_TTL_SECONDS", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("default port = %q, want 8080", cfg.Port)
	}
	if cfg.StatsTTLSeconds != 20 {
		t.Fatalf("default stats ttl = %d, want 20", cfg.StatsTTLSeconds)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("address = %q, want :8080", cfg.Address())
	}
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("STATS_TTL_SECONDS", "-5")

	cfg := Load()
	if cfg.StatsTTLSeconds != 20 {
		t.Fatalf("ttl fallback = %d, want 20", cfg.StatsTTLSeconds)
	}
}
