//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

const minimal = `
database:
  url: postgres://localhost/saas
redis:
  url: localhost:6379
security:
  encryption_key: 0123456789abcdef
auth:
  jwt_secret: s3cret
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected default addr, got %q", cfg.HTTP.Addr)
	}
	if cfg.Payment.Currency != "INR" {
		t.Errorf("expected INR, got %q", cfg.Payment.Currency)
	}
	if cfg.Payment.DefaultSetupFee != 1200 {
		t.Errorf("expected setup fee 1200, got %d", cfg.Payment.DefaultSetupFee)
	}
	if cfg.Payment.AllowUnverifiedWebhooks {
		t.Error("unverified webhooks must be off by default")
	}
	if cfg.Redis.TTL != time.Hour {
		t.Errorf("expected 1h ttl, got %v", cfg.Redis.TTL)
	}
	if cfg.Provisioning.ReconcileInterval != 0 || cfg.Provisioning.StaleAfter != 0 {
		t.Errorf("provisioning reconciler must be off by default, got %+v", cfg.Provisioning)
	}
}

func TestLoad_ProvisioningReconciler(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal+"provisioning:\n  reconcile_interval: 2m\n"), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Provisioning.ReconcileInterval != 2*time.Minute || cfg.Provisioning.StaleAfter != 10*time.Minute {
		t.Errorf("unexpected provisioning config: %+v", cfg.Provisioning)
	}
}

func TestLoad_TrustedProxies(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal+"http:\n  trusted_proxies: [\"10.0.0.0/8\", \"192.168.1.7\"]\n"), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got, err := cfg.HTTP.TrustedPrefixes()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0].String() != "10.0.0.0/8" || got[1].String() != "192.168.1.7/32" {
		t.Errorf("unexpected prefixes: %v", got)
	}

	none, err := Load(writeConfig(t, minimal), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p, _ := none.HTTP.TrustedPrefixes(); len(p) != 0 {
		t.Errorf("no proxy is trusted by default, got %v", p)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/saas")
	t.Setenv("ADMIN_API_KEY", "adm")
	cfg, err := Load(writeConfig(t, minimal), true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.URL != "postgres://env/saas" {
		t.Errorf("expected env database url, got %q", cfg.Database.URL)
	}
	if cfg.Admin.APIKey != "adm" {
		t.Errorf("expected env admin key, got %q", cfg.Admin.APIKey)
	}
	if !cfg.Runtime.Dev {
		t.Error("expected dev runtime flag")
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"database.url":     strings.Replace(minimal, "postgres://localhost/saas", "", 1),
		"encryption_key":   strings.Replace(minimal, "0123456789abcdef", "short", 1),
		"payment.provider": minimal + "payment:\n  provider: paypal\n",
		"trusted_proxies":  minimal + "http:\n  trusted_proxies: [\"not-a-cidr\"]\n",
	}
	for want, body := range cases {
		t.Run(want, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), false)
			if err == nil || !strings.Contains(err.Error(), want) {
				t.Fatalf("expected error mentioning %q, got %v", want, err)
			}
		})
	}
}
