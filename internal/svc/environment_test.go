package svc_test

import (
	"testing"

	"clmm-lp-agent/internal/config"
)

// TestIsTestEnv verifies the environment detection logic.
func TestIsTestEnv(t *testing.T) {
	tests := []struct {
		env      string
		expected bool
	}{
		{"test", true},
		{"", true}, // Empty defaults to test
		{"dev", false},
		{"prod", false},
	}

	for _, tt := range tests {
		t.Run("env="+tt.env, func(t *testing.T) {
			cfg := config.Config{
				Env: tt.env,
				TTL: config.CacheTTL{Short: 10, Medium: 60, Long: 300},
			}
			// Normalize via Validate (which sets env to "test" if empty)
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			result := cfg.IsTestEnv()
			if result != tt.expected {
				t.Errorf("IsTestEnv() for env=%q: expected %v, got %v (normalized to %q)",
					tt.env, tt.expected, result, cfg.Env)
			}
		})
	}
}
