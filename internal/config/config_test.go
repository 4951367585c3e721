package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"coffeeshop/internal/domain"
	"coffeeshop/internal/khqr"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_PORT", "KHQR_TTL", "KHQR_POLL_INTERVAL", "KHQR_POLL_INITIAL_DELAY",
		"KHQR_DEFAULT_CURRENCY", "BAKONG_API_URL", "BAKONG_PROD_BASE_API_URL_MD5",
		"BAKONG_API_TIMEOUT", "BAKONG_ACQUIRING_BANK", "CORS_ALLOWED_ORIGINS", "RABBITMQ_URL",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Payment.QRTTL != 5*time.Minute {
		t.Errorf("expected 5m ttl, got %s", cfg.Payment.QRTTL)
	}
	if cfg.Payment.InitialPollDelay != 2*time.Second || cfg.Payment.PollInterval != 3*time.Second {
		t.Errorf("unexpected poll timing %s / %s", cfg.Payment.InitialPollDelay, cfg.Payment.PollInterval)
	}
	if cfg.Payment.DefaultCurrency != domain.CurrencyUSD {
		t.Errorf("expected USD, got %s", cfg.Payment.DefaultCurrency)
	}
	if cfg.Bakong.APITimeout != 30*time.Second {
		t.Errorf("expected 30s api timeout, got %s", cfg.Bakong.APITimeout)
	}
	if cfg.Bakong.AcquiringBank != domain.DefaultAcquiringBank {
		t.Errorf("expected default bank, got %q", cfg.Bakong.AcquiringBank)
	}
	if !reflect.DeepEqual(cfg.Server.CORSAllowedOrigins, []string{"*"}) {
		t.Errorf("expected wildcard origins, got %v", cfg.Server.CORSAllowedOrigins)
	}
	if cfg.Events.RabbitURL != "" {
		t.Errorf("expected events disabled, got %q", cfg.Events.RabbitURL)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("KHQR_TTL", "90s")
	t.Setenv("KHQR_POLL_INTERVAL", "not-a-duration")
	t.Setenv("KHQR_DEFAULT_CURRENCY", "khr")
	t.Setenv("BAKONG_API_URL", "")
	t.Setenv("BAKONG_PROD_BASE_API_URL_MD5", "https://api-bakong.nbc.gov.kh/v1/check_transaction_by_md5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example, ,https://admin.example")
	t.Setenv("REDIS_DB", "3")

	cfg := FromEnv()

	if cfg.Payment.QRTTL != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.Payment.QRTTL)
	}
	if cfg.Payment.PollInterval != 3*time.Second {
		t.Errorf("expected fallback to 3s, got %s", cfg.Payment.PollInterval)
	}
	if cfg.Payment.DefaultCurrency != domain.CurrencyKHR {
		t.Errorf("expected KHR, got %s", cfg.Payment.DefaultCurrency)
	}
	if cfg.Bakong.APIURL != "https://api-bakong.nbc.gov.kh/v1/check_transaction_by_md5" {
		t.Errorf("expected legacy url fallback, got %q", cfg.Bakong.APIURL)
	}
	if want := []string{"https://shop.example", "https://admin.example"}; !reflect.DeepEqual(cfg.Server.CORSAllowedOrigins, want) {
		t.Errorf("expected %v, got %v", want, cfg.Server.CORSAllowedOrigins)
	}
	if cfg.Redis.DB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.Redis.DB)
	}
}

func TestLoad_AppliesConfigFile(t *testing.T) {
	t.Setenv("BAKONG_MERCHANT_NAME", "From Env")
	t.Setenv("BAKONG_MERCHANT_CITY", "Phnom Penh")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
bakong:
  merchant_name: Rattanak Coffee
  account_id: rattanak@aclb
payment:
  qr_ttl: 2m
  default_currency: KHR
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Bakong.MerchantName != "Rattanak Coffee" {
		t.Errorf("expected file to override env, got %q", cfg.Bakong.MerchantName)
	}
	if cfg.Bakong.MerchantCity != "Phnom Penh" {
		t.Errorf("expected env value kept, got %q", cfg.Bakong.MerchantCity)
	}
	if cfg.Payment.QRTTL != 2*time.Minute {
		t.Errorf("expected 2m, got %s", cfg.Payment.QRTTL)
	}
	if cfg.Payment.DefaultCurrency != domain.CurrencyKHR {
		t.Errorf("expected KHR, got %s", cfg.Payment.DefaultCurrency)
	}
	if missing := cfg.Bakong.MissingMerchantFields(); len(missing) != 0 {
		t.Errorf("expected complete merchant, missing %v", missing)
	}
}

func TestLoad_BadConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestBakongConfig_Merchant(t *testing.T) {
	t.Parallel()

	m := BakongConfig{AccountID: "a@b", MerchantName: "N", MerchantCity: "C"}.Merchant()
	if m.AcquiringBank != domain.DefaultAcquiringBank {
		t.Errorf("expected default bank, got %q", m.AcquiringBank)
	}

	missing := BakongConfig{}.MissingAPIFields()
	if !reflect.DeepEqual(missing, []string{"BAKONG_API_URL", "BAKONG_TOKEN"}) {
		t.Errorf("unexpected missing fields %v", missing)
	}
}

func TestBakongConfig_BlankValuesAreMissing(t *testing.T) {
	t.Parallel()

	b := BakongConfig{AccountID: "  ", MerchantName: "Rattanak Coffee", MerchantCity: "\t", APIURL: " ", Token: "\n"}

	want := []string{"BAKONG_ACCOUNT_ID", "BAKONG_MERCHANT_CITY"}
	if got := b.MissingMerchantFields(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	// The encoder behind /v1/bakong/status reports the same fields.
	if got := khqr.NewEncoder(b.Merchant()).MissingFields(); !reflect.DeepEqual(got, want) {
		t.Errorf("encoder disagrees: %v", got)
	}
	if got := b.MissingAPIFields(); !reflect.DeepEqual(got, []string{"BAKONG_API_URL", "BAKONG_TOKEN"}) {
		t.Errorf("unexpected missing API fields %v", got)
	}
}
