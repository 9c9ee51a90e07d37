package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Classes tracked by the bot. Portal credentials must be configured for
// every class/account combination.
var Classes = []string{"11a", "11b"}

// Accounts polled per class. Either account may have visibility gaps in the
// portal, so both are fetched and reconciled.
var Accounts = []string{"boy", "girl"}

type Config struct {
	Env  string
	Port int

	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Telegram TelegramConfig
	Portal   PortalConfig
	Sync     SyncConfig
	Meet     MeetConfig
	Notify   NotifyConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// TelegramConfig holds bot API credentials.
type TelegramConfig struct {
	Token        string
	SuperAdminID int64
}

// Credentials is a single portal login identity.
type Credentials struct {
	Username string
	Password string
}

// ClassAccounts holds both portal identities polled for one class.
type ClassAccounts map[string]Credentials

// PortalConfig configures the NZ portal client and per-class accounts.
type PortalConfig struct {
	BaseURL  string
	Timeout  time.Duration
	TokenTTL time.Duration
	Classes  map[string]ClassAccounts
}

// SyncConfig governs the periodic schedule synchronisation job.
type SyncConfig struct {
	Interval    time.Duration
	ScheduleTTL time.Duration
	StaleAfter  time.Duration
	Timezone    string
	DailyHour   int
	DailyMinute int
}

// MeetConfig configures the conference redirect domain.
type MeetConfig struct {
	Domain string
}

// NotifyConfig bounds the message distribution queue.
type NotifyConfig struct {
	RatePerSecond int
	Workers       int
	BufferSize    int
	MaxRetries    int
	RetryDelay    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Telegram = TelegramConfig{
		Token:        v.GetString("TELEGRAM_BOT_TOKEN"),
		SuperAdminID: v.GetInt64("TELEGRAM_SUPER_ADMIN_ID"),
	}

	classes := make(map[string]ClassAccounts, len(Classes))
	for _, class := range Classes {
		accounts := make(ClassAccounts, len(Accounts))
		for _, account := range Accounts {
			prefix := fmt.Sprintf("NZ_%s_%s", strings.ToUpper(class), strings.ToUpper(account))
			accounts[account] = Credentials{
				Username: v.GetString(prefix + "_USERNAME"),
				Password: v.GetString(prefix + "_PASSWORD"),
			}
		}
		classes[class] = accounts
	}

	cfg.Portal = PortalConfig{
		BaseURL:  v.GetString("NZ_BASE_URL"),
		Timeout:  parseDuration(v.GetString("NZ_TIMEOUT"), 30*time.Second),
		TokenTTL: parseDuration(v.GetString("NZ_TOKEN_TTL"), 12*time.Hour),
		Classes:  classes,
	}

	cfg.Sync = SyncConfig{
		Interval:    parseDuration(v.GetString("SYNC_INTERVAL"), 5*time.Minute),
		ScheduleTTL: parseDuration(v.GetString("SCHEDULE_TTL"), 7*24*time.Hour),
		StaleAfter:  parseDuration(v.GetString("SCHEDULE_STALE_AFTER"), 10*time.Minute),
		Timezone:    v.GetString("SCHEDULE_TIMEZONE"),
		DailyHour:   v.GetInt("DAILY_SCHEDULE_HOUR"),
		DailyMinute: v.GetInt("DAILY_SCHEDULE_MINUTE"),
	}

	cfg.Meet = MeetConfig{
		Domain: v.GetString("CUSTOM_MEETING_DOMAIN"),
	}

	cfg.Notify = NotifyConfig{
		RatePerSecond: v.GetInt("NOTIFY_RATE_PER_SECOND"),
		Workers:       v.GetInt("NOTIFY_WORKERS"),
		BufferSize:    v.GetInt("NOTIFY_BUFFER_SIZE"),
		MaxRetries:    v.GetInt("NOTIFY_MAX_RETRIES"),
		RetryDelay:    parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 2*time.Second),
	}

	return cfg, nil
}

// Validate reports configuration that would make the sync pipeline
// inoperable at runtime.
func (c *Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return errors.New("NZ_BASE_URL is required")
	}
	if c.Telegram.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Meet.Domain == "" {
		return errors.New("CUSTOM_MEETING_DOMAIN is required")
	}
	for class, accounts := range c.Portal.Classes {
		for account, creds := range accounts {
			if creds.Username == "" || creds.Password == "" {
				return fmt.Errorf("portal credentials missing for %s/%s", class, account)
			}
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "nz_schedule_bot")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("NZ_BASE_URL", "https://api-mobile.nz.ua/v1")
	v.SetDefault("NZ_TIMEOUT", "30s")
	v.SetDefault("NZ_TOKEN_TTL", "12h")

	v.SetDefault("SYNC_INTERVAL", "5m")
	v.SetDefault("SCHEDULE_TTL", "168h")
	v.SetDefault("SCHEDULE_STALE_AFTER", "10m")
	v.SetDefault("SCHEDULE_TIMEZONE", "Europe/Kyiv")
	v.SetDefault("DAILY_SCHEDULE_HOUR", 7)
	v.SetDefault("DAILY_SCHEDULE_MINUTE", 30)

	v.SetDefault("NOTIFY_RATE_PER_SECOND", 15)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_BUFFER_SIZE", 256)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "2s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
