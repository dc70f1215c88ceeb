package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	_ = os.Setenv("GEXDASH_API_KEY", "test-key-123")
	defer func() { _ = os.Unsetenv("GEXDASH_API_KEY") }()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if cfg.API.APIKey != "test-key-123" {
		t.Errorf("expected API key 'test-key-123', got '%s'", cfg.API.APIKey)
	}

	if cfg.Dashboard.PollInterval().Seconds() != 5 {
		t.Errorf("expected 5s poll interval by default, got %v", cfg.Dashboard.PollInterval())
	}

	if cfg.Dashboard.DefaultTicker != "SPY" {
		t.Errorf("expected default ticker SPY, got %s", cfg.Dashboard.DefaultTicker)
	}

	if len(cfg.Dashboard.Timeframes) != 4 {
		t.Errorf("expected 4 default timeframes, got %v", cfg.Dashboard.Timeframes)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dash.yaml")
	content := `
api:
  base_url: https://analytics.example.com
dashboard:
  default_ticker: /ES
  lookback_days: 90
  poll_interval_sec: 2
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.BaseURL != "https://analytics.example.com" {
		t.Errorf("unexpected base url: %s", cfg.API.BaseURL)
	}
	if cfg.Dashboard.DefaultTicker != "/ES" || cfg.Dashboard.LookbackDays != 90 {
		t.Errorf("unexpected dashboard config: %+v", cfg.Dashboard)
	}
}

func TestLoadRejectsBadPollInterval(t *testing.T) {
	_ = os.Setenv("GEXDASH_DASHBOARD_POLL_INTERVAL_SEC", "0")
	defer func() { _ = os.Unsetenv("GEXDASH_DASHBOARD_POLL_INTERVAL_SEC") }()

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for zero poll interval")
	}
}

func TestLoadSnapshotDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Snapshot.OutputDir != "snapshots" || cfg.Snapshot.Workers != 2 {
		t.Errorf("unexpected snapshot config: %+v", cfg.Snapshot)
	}
	if cfg.Notify.Enabled || cfg.Notify.Server != "https://ntfy.sh" {
		t.Errorf("unexpected notify config: %+v", cfg.Notify)
	}
}

func TestNotifyConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     NotifyConfig
		wantErr bool
	}{
		{"disabled", NotifyConfig{}, false},
		{"valid", NotifyConfig{Enabled: true, Topic: "gex", Priority: "high"}, false},
		{"missing topic", NotifyConfig{Enabled: true, Priority: "default"}, true},
		{"bad priority", NotifyConfig{Enabled: true, Topic: "gex", Priority: "loud"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
