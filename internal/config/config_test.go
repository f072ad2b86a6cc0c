package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.GatewayURL != "ws://127.0.0.1:8765/gateway" {
		t.Errorf("GatewayURL = %q", cfg.GatewayURL)
	}
	if cfg.HistoryPageSize != 50 {
		t.Errorf("HistoryPageSize = %d, want 50", cfg.HistoryPageSize)
	}
	if cfg.FallbackDelayMS != 200 {
		t.Errorf("FallbackDelayMS = %d, want 200", cfg.FallbackDelayMS)
	}
	if cfg.DebugServerEnabled {
		t.Error("DebugServerEnabled should default to false")
	}
}

func TestLoadFromEnvOverride(t *testing.T) {
	t.Setenv("HISTORY_PAGE_SIZE", "10")
	t.Setenv("FALLBACK_DELAY_MS", "500")
	t.Setenv("DEBUG_SERVER_ENABLED", "true")

	cfg := Load()
	if cfg.HistoryPageSize != 10 {
		t.Errorf("HistoryPageSize = %d, want 10", cfg.HistoryPageSize)
	}
	if cfg.FallbackDelayMS != 500 {
		t.Errorf("FallbackDelayMS = %d, want 500", cfg.FallbackDelayMS)
	}
	if !cfg.DebugServerEnabled {
		t.Error("DebugServerEnabled = false, want true")
	}
}

func TestLoadRespectsMin(t *testing.T) {
	t.Setenv("FALLBACK_DELAY_MS", "1")
	cfg := Load()
	if cfg.FallbackDelayMS != 50 {
		t.Errorf("FallbackDelayMS = %d, want clamped to 50", cfg.FallbackDelayMS)
	}
}
