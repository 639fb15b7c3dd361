package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.TargetURL != DefaultTargetURL {
		t.Errorf("TargetURL = %q, want default", cfg.TargetURL)
	}
	if cfg.DownloadDir != DefaultDownloadDir {
		t.Errorf("DownloadDir = %q, want %q", cfg.DownloadDir, DefaultDownloadDir)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("SMTP.Port = %d, want 587", cfg.SMTP.Port)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("AllowedOrigins = %v, want [http://localhost:3000]", cfg.AllowedOrigins)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("URL_PAGE_DANE", "https://example.org/precios")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SECTION_WAIT", "5s")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("REPORT_RECIPIENTS", "ops@example.com")

	cfg := FromEnv()

	if cfg.TargetURL != "https://example.org/precios" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.SectionWait != 5*time.Second {
		t.Errorf("SectionWait = %v, want 5s", cfg.SectionWait)
	}
	if cfg.SMTP.Port != 2525 {
		t.Errorf("SMTP.Port = %d, want 2525", cfg.SMTP.Port)
	}
	if len(cfg.Recipients) != 1 || cfg.Recipients[0] != "ops@example.com" {
		t.Errorf("Recipients = %v", cfg.Recipients)
	}
}

func TestFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("SMTP_PORT", "not-a-number")
	t.Setenv("SECTION_WAIT", "soon")

	cfg := FromEnv()

	if cfg.SMTP.Port != 587 {
		t.Errorf("SMTP.Port = %d, want fallback 587", cfg.SMTP.Port)
	}
	if cfg.SectionWait != 15*time.Second {
		t.Errorf("SectionWait = %v, want fallback 15s", cfg.SectionWait)
	}
}
