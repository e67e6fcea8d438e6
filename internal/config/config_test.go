package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/quoteapi",
		"REDIS_URL":    "redis://localhost:6379/0",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RoundType != "line" {
		t.Fatalf("round type = %q, want line", cfg.RoundType)
	}
	if cfg.ComputePrecision != 6 || cfg.DisplayPrecision != 2 {
		t.Fatalf("precision = %d/%d, want 6/2", cfg.ComputePrecision, cfg.DisplayPrecision)
	}
	if !cfg.TaxEnabled {
		t.Fatalf("tax should be enabled by default")
	}
	if cfg.DefaultShopID != 1 || cfg.DefaultCurrencyID != 1 {
		t.Fatalf("shop/currency defaults = %d/%d, want 1/1", cfg.DefaultShopID, cfg.DefaultCurrencyID)
	}
	if cfg.SettingsCacheTTL != 5*time.Minute {
		t.Fatalf("settings ttl = %s, want 5m", cfg.SettingsCacheTTL)
	}
	if got := cfg.HTTPAddr(); got != ":8080" {
		t.Fatalf("http addr = %q, want :8080", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":              "postgres://localhost/quoteapi",
		"REDIS_URL":                 "redis://localhost:6379/0",
		"ROUND_TYPE":                "total",
		"DISPLAY_PRECISION":         "3",
		"TAX_ENABLED":               "0",
		"USE_ECOTAX":                "true",
		"ECOTAX_TAX_RULES_GROUP_ID": "7",
		"DEFAULT_ROOMS":             "Cuisine, Salon",
		"DEFAULT_VAT":               "1:20, 2:10",
		"CORS_ALLOWED_ORIGINS":      "https://a.example, https://b.example",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RoundType != "total" || cfg.DisplayPrecision != 3 {
		t.Fatalf("overrides not applied: %q/%d", cfg.RoundType, cfg.DisplayPrecision)
	}
	if cfg.TaxEnabled {
		t.Fatalf("TAX_ENABLED=0 should disable tax")
	}
	if !cfg.UseEcotax || cfg.EcotaxTaxRulesGroupID != 7 {
		t.Fatalf("ecotax overrides not applied")
	}
	if cfg.DefaultVAT != "1:20, 2:10" {
		t.Fatalf("default vat = %q", cfg.DefaultVAT)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("cors origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadRequiresDatabase(t *testing.T) {
	if _, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
	}); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}
