//go:build !integration

package config

import (
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
database:
  url: postgres://localhost/billing
bank:
  account:
    bank_code: VCB
    bank_bin: "970436"
    account_number: "0011001234567"
    account_name: CONG TY COMPANION
`

func TestParse_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := Parse([]byte(minimalYAML), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Payment.Window != 15*time.Minute {
		t.Errorf("expected 15m payment window, got %s", cfg.Payment.Window)
	}
	if cfg.Scheduler.PollInterval != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %s", cfg.Scheduler.PollInterval)
	}
	if cfg.Fees != DefaultFees() {
		t.Errorf("expected default fee table, got %+v", cfg.Fees)
	}
	if cfg.Bank.Rail != "memory" {
		t.Errorf("expected memory rail by default, got %q", cfg.Bank.Rail)
	}
}

func TestParse_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/billing")
	t.Setenv("BANK_WEBHOOK_SECRET", "s3cret")
	cfg, err := Parse([]byte(minimalYAML), true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.URL != "postgres://env/billing" {
		t.Errorf("expected env database url, got %q", cfg.Database.URL)
	}
	if cfg.Bank.WebhookSecret != "s3cret" {
		t.Errorf("expected webhook secret from env, got %q", cfg.Bank.WebhookSecret)
	}
	if !cfg.Runtime.Dev {
		t.Error("expected dev flag to be carried into runtime config")
	}
}

func TestParse_Validation(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	t.Run("missing bank account", func(t *testing.T) {
		_, err := Parse([]byte("database:\n  url: postgres://x\n"), false)
		if err == nil || !strings.Contains(err.Error(), "bank.account") {
			t.Fatalf("expected bank account error, got %v", err)
		}
	})

	t.Run("http rail needs a base url", func(t *testing.T) {
		_, err := Parse([]byte(minimalYAML+"  rail: http\n"), false)
		if err == nil {
			t.Fatal("expected an error for http rail without api_base_url")
		}
	})

	t.Run("fee rates above 100 percent are rejected", func(t *testing.T) {
		y := minimalYAML + `
fees:
  hirer_service_fee_bps: 20000
  withdrawal_max_amount: 10
`
		if _, err := Parse([]byte(y), false); err == nil {
			t.Fatal("expected validation error")
		}
	})
}
