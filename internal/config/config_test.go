package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != "8080" {
		t.Errorf("App.Port = %s, want 8080", cfg.App.Port)
	}
	if cfg.Sla.AtRiskFraction != 0.2 {
		t.Errorf("Sla.AtRiskFraction = %v, want 0.2", cfg.Sla.AtRiskFraction)
	}
	if cfg.Sla.MonitorIntervalSpec != "@every 5m" {
		t.Errorf("Sla.MonitorIntervalSpec = %q", cfg.Sla.MonitorIntervalSpec)
	}
	if cfg.Geo.MaxSpeedKmh != 200 {
		t.Errorf("Geo.MaxSpeedKmh = %v, want 200", cfg.Geo.MaxSpeedKmh)
	}
	if cfg.Hub.HeartbeatSeconds != 30 {
		t.Errorf("Hub.HeartbeatSeconds = %d, want 30", cfg.Hub.HeartbeatSeconds)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("SLA_AT_RISK_FRACTION", "0.35")
	t.Setenv("GEO_MAX_SPEED_KMH", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != "9090" {
		t.Errorf("App.Port = %s, want 9090", cfg.App.Port)
	}
	if cfg.Sla.AtRiskFraction != 0.35 {
		t.Errorf("Sla.AtRiskFraction = %v, want 0.35", cfg.Sla.AtRiskFraction)
	}
	if cfg.Geo.MaxSpeedKmh != 120 {
		t.Errorf("Geo.MaxSpeedKmh = %v, want 120", cfg.Geo.MaxSpeedKmh)
	}
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid REDIS_DB to fail")
	}
}

func TestDurationHelpers(t *testing.T) {
	if got := (HubConfig{}).HeartbeatInterval(); got != 30*time.Second {
		t.Errorf("zero heartbeat = %v, want 30s", got)
	}
	if got := (HubConfig{HeartbeatSeconds: 10}).HeartbeatInterval(); got != 10*time.Second {
		t.Errorf("heartbeat = %v, want 10s", got)
	}
	if got := (GeocodeConfig{}).Timeout(); got != 5*time.Second {
		t.Errorf("zero geocode timeout = %v, want 5s", got)
	}
	if got := (AppConfig{RequestTimeoutSeconds: 15}).RequestTimeout(); got != 15*time.Second {
		t.Errorf("request timeout = %v, want 15s", got)
	}
}

func TestSlaLocationFallsBackToUTC(t *testing.T) {
	loc := SlaConfig{TimezoneName: "Nowhere/Invalid"}.Location()
	if loc != time.UTC {
		t.Errorf("location = %v, want UTC", loc)
	}
}
