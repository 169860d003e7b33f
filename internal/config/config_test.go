package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.SessionPeriodMinutes != 60 {
		t.Errorf("expected default session period 60, got %d", cfg.SessionPeriodMinutes)
	}
	if cfg.SessionBreakMinutes != 15 {
		t.Errorf("expected default session break 15, got %d", cfg.SessionBreakMinutes)
	}
	if cfg.AbsenceMinDays != 21 {
		t.Errorf("expected default absence minimum 21 days, got %d", cfg.AbsenceMinDays)
	}
	if cfg.FormRuleMode != FormRuleModeAuto {
		t.Errorf("expected auto form rule mode, got %s", cfg.FormRuleMode)
	}
	if cfg.CatalogCacheTTL != 10*time.Minute {
		t.Errorf("expected default catalog cache TTL 10m, got %s", cfg.CatalogCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_TIME_PERIOD_MINUTES", "45")
	t.Setenv("FORM_RULE_MODE", "treatment_target")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("USE_MEMORY_QUEUE", "true")

	cfg := Load()

	if cfg.SessionPeriodMinutes != 45 {
		t.Errorf("expected session period 45, got %d", cfg.SessionPeriodMinutes)
	}
	if cfg.FormRuleMode != FormRuleModeTreatmentTarget {
		t.Errorf("expected treatment_target mode, got %s", cfg.FormRuleMode)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://admin.example.com" {
		t.Errorf("unexpected CORS origins: %v", cfg.CORSOrigins)
	}
	if !cfg.UseMemoryQueue {
		t.Error("expected memory queue enabled")
	}
}

func TestParseFormRuleModeFallsBackToAuto(t *testing.T) {
	if got := parseFormRuleMode("bogus"); got != FormRuleModeAuto {
		t.Errorf("expected auto for unknown mode, got %s", got)
	}
	if got := parseFormRuleMode("Service"); got != FormRuleModeService {
		t.Errorf("expected case-insensitive parse, got %s", got)
	}
}
