// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"companion-billing/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port" validate:"gt=0,lt=65536"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// Create requests per subject per minute.
	CreateRateLimit int `yaml:"create_rate_limit"`
}

type AdminConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" validate:"required"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type BankConfig struct {
	Account model.BankAccount `yaml:"account"`
	// Rail selects the transfer source: "http" or "memory".
	Rail          string        `yaml:"rail"`
	APIBaseURL    string        `yaml:"api_base_url"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	WebhookSecret string        `yaml:"webhook_secret"`
	DeeplinkBanks []string      `yaml:"deeplink_banks"`
}

type PaymentConfig struct {
	Window       time.Duration `yaml:"window"`
	CodePrefix   string        `yaml:"code_prefix" validate:"max=4"`
	CodeLength   int           `yaml:"code_length"`
	CodeCooldown time.Duration `yaml:"code_cooldown"`
}

type SchedulerConfig struct {
	PollInterval       time.Duration `yaml:"poll_interval"`
	PollBatch          int           `yaml:"poll_batch"`
	PollWorkers        int           `yaml:"poll_workers"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	SweepGrace         time.Duration `yaml:"sweep_grace"`
	CatalogRefresh     time.Duration `yaml:"catalog_refresh"`
	DetectorLockTTL    time.Duration `yaml:"detector_lock_ttl"`
	SettlementLookback time.Duration `yaml:"settlement_lookback"`
}

// FeeConfig holds the business-constant table. Rates are basis points.
type FeeConfig struct {
	HirerServiceFeeBps    int64 `yaml:"hirer_service_fee_bps" validate:"gte=0,lte=10000"`
	PlatformFeeBps        int64 `yaml:"platform_fee_bps" validate:"gte=0,lte=10000"`
	WithdrawalFeeBps      int64 `yaml:"withdrawal_fee_bps" validate:"gte=0,lte=10000"`
	WithdrawalMinFee      int64 `yaml:"withdrawal_min_fee" validate:"gte=0"`
	WithdrawalMinAmount   int64 `yaml:"withdrawal_min_amount" validate:"gte=0"`
	WithdrawalMaxAmount   int64 `yaml:"withdrawal_max_amount" validate:"gtefield=WithdrawalMinAmount"`
	FreeCancellationHours int   `yaml:"free_cancellation_hours" validate:"gte=0"`
	CancellationFeeBps    int64 `yaml:"cancellation_fee_bps" validate:"gte=0,lte=10000"`
}

type TelegramConfig struct {
	Token       string `yaml:"token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Bank      BankConfig      `yaml:"bank"`
	Payment   PaymentConfig   `yaml:"payment"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Fees      FeeConfig       `yaml:"fees"`
	Telegram  TelegramConfig  `yaml:"telegram"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, overlays secrets from the environment (and an
// optional .env next to the binary), applies defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is LoadConfig without the file read; tests feed YAML directly.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// a missing .env is normal in containers
	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if cfg.Bank.Account.AccountNumber == "" || cfg.Bank.Account.BankBIN == "" {
		return nil, errors.New("bank.account.account_number and bank.account.bank_bin are required")
	}
	if cfg.Bank.Rail == "http" && cfg.Bank.APIBaseURL == "" {
		return nil, errors.New("bank.api_base_url is required for the http rail")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("BANK_API_KEY"); v != "" {
		cfg.Bank.APIKey = v
	}
	if v := os.Getenv("BANK_WEBHOOK_SECRET"); v != "" {
		cfg.Bank.WebhookSecret = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.HTTP.CreateRateLimit <= 0 {
		cfg.HTTP.CreateRateLimit = 10
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 30 * time.Minute
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Bank.Rail == "" {
		cfg.Bank.Rail = "memory"
	}
	if cfg.Bank.Timeout <= 0 {
		cfg.Bank.Timeout = 10 * time.Second
	}
	if len(cfg.Bank.DeeplinkBanks) == 0 {
		cfg.Bank.DeeplinkBanks = []string{"vcb", "tcb", "mb", "acb", "vpb", "tpb"}
	}
	if cfg.Payment.Window <= 0 {
		cfg.Payment.Window = 15 * time.Minute
	}
	if cfg.Payment.CodePrefix == "" {
		cfg.Payment.CodePrefix = "CB"
	}
	if cfg.Payment.CodeLength <= 0 {
		cfg.Payment.CodeLength = 8
	}
	if cfg.Payment.CodeCooldown <= 0 {
		cfg.Payment.CodeCooldown = 24 * time.Hour
	}
	s := &cfg.Scheduler
	if s.PollInterval <= 0 {
		s.PollInterval = 5 * time.Second
	}
	if s.PollBatch <= 0 {
		s.PollBatch = 200
	}
	if s.PollWorkers <= 0 {
		s.PollWorkers = 4
	}
	if s.SweepInterval <= 0 {
		s.SweepInterval = time.Minute
	}
	if s.SweepGrace <= 0 {
		s.SweepGrace = 2 * time.Minute
	}
	if s.CatalogRefresh <= 0 {
		s.CatalogRefresh = 10 * time.Minute
	}
	if s.DetectorLockTTL <= 0 {
		s.DetectorLockTTL = 30 * time.Second
	}
	if s.SettlementLookback <= 0 {
		s.SettlementLookback = 5 * time.Minute
	}
	applyFeeDefaults(&cfg.Fees)
}

// DefaultFees is the business-constant table used when the config leaves it out.
func DefaultFees() FeeConfig {
	return FeeConfig{
		HirerServiceFeeBps:    500,
		PlatformFeeBps:        1500,
		WithdrawalFeeBps:      100,
		WithdrawalMinFee:      10_000,
		WithdrawalMinAmount:   100_000,
		WithdrawalMaxAmount:   50_000_000,
		FreeCancellationHours: 24,
		CancellationFeeBps:    5000,
	}
}

func applyFeeDefaults(f *FeeConfig) {
	if *f == (FeeConfig{}) {
		*f = DefaultFees()
	}
}
