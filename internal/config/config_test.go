package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("PORT", "")
	t.Setenv("STREAM_TICK_MS", "")
	t.Setenv("DEBUG", "")
	t.Setenv("TABLE_PREFIX", "")

	cfg := Load()
	if cfg.Environment != "dev" {
		t.Errorf("environment = %q, want dev", cfg.Environment)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.StreamTick != 80*time.Millisecond {
		t.Errorf("stream tick = %v, want 80ms", cfg.StreamTick)
	}
	if cfg.TablePrefix != "dev_" {
		t.Errorf("table prefix = %q, want dev_", cfg.TablePrefix)
	}
}

func TestLoadDebugPerEnvironment(t *testing.T) {
	tests := []struct {
		env       string
		debugVar  string
		wantDebug bool
	}{
		{"dev", "", true},
		{"test", "", true},
		{"prod", "", false},
		{"prod", "true", true},
		{"dev", "false", false},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.debugVar, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", tt.env)
			t.Setenv("DEBUG", tt.debugVar)
			t.Setenv("TABLE_PREFIX", "")

			cfg := Load()
			if cfg.Debug != tt.wantDebug {
				t.Errorf("debug = %v, want %v", cfg.Debug, tt.wantDebug)
			}
		})
	}
}

func TestTablePrefixOverride(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("TABLE_PREFIX", "custom_")

	cfg := Load()
	if cfg.TablePrefix != "custom_" {
		t.Errorf("table prefix = %q, want custom_", cfg.TablePrefix)
	}
}

func TestStreamTickRejectsInvalid(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("TABLE_PREFIX", "")

	for _, value := range []string{"abc", "-5", "0"} {
		t.Setenv("STREAM_TICK_MS", value)
		cfg := Load()
		if cfg.StreamTick != 80*time.Millisecond {
			t.Errorf("STREAM_TICK_MS=%q: tick = %v, want default 80ms", value, cfg.StreamTick)
		}
	}
}
