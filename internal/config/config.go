package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	SMS struct {
		AccountSID string
		AuthToken  string
		FromNumber string
	}
	Telegram struct {
		BotToken string
	}
	API struct {
		Port     string
		BasePath string
	}
	Notification struct {
		QueueSize      int
		MaxWorkers     int
		ChannelTimeout time.Duration
		TickInterval   time.Duration
		DigestLocation *time.Location
	}
	RateLimit struct {
		TelegramPerSecond int
		SMSPerSecond      int
	}
	Advisor struct {
		WindowDays     int
		SafetyDays     int
		MinSuggestion  int
		SmoothingAlpha float64
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, so tests can pass a map.
func FromEnv(getenv func(string) string) (Config, error) {
	var cfg Config
	var errs []string

	atoi := func(key string, dst *int) {
		v := getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, key)
			return
		}
		*dst = n
	}
	duration := func(key string, dst *time.Duration) {
		v := getenv(key)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, key)
			return
		}
		*dst = d
	}

	// Kafka settings
	cfg.Kafka.Broker = getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = getenv("KAFKA_GROUP_ID")

	// Database DSN
	cfg.DB.DSN = getenv("DB_DSN")

	// Email settings
	cfg.Email.SMTPServer = getenv("EMAIL_SMTP_SERVER")
	atoi("EMAIL_SMTP_PORT", &cfg.Email.SMTPPort)
	cfg.Email.Username = getenv("EMAIL_USERNAME")
	cfg.Email.Password = getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = getenv("EMAIL_FROM_NAME")

	// SMS (Twilio) settings
	cfg.SMS.AccountSID = getenv("TWILIO_ACCOUNT_SID")
	cfg.SMS.AuthToken = getenv("TWILIO_AUTH_TOKEN")
	cfg.SMS.FromNumber = getenv("TWILIO_FROM_NUMBER")

	cfg.Telegram.BotToken = getenv("TELEGRAM_BOT_TOKEN")

	// API settings
	cfg.API.Port = getenv("API_PORT")
	cfg.API.BasePath = getenv("API_BASE_PATH")

	// Notification worker settings
	atoi("QUEUE_SIZE", &cfg.Notification.QueueSize)
	atoi("MAX_WORKERS", &cfg.Notification.MaxWorkers)
	duration("CHANNEL_TIMEOUT", &cfg.Notification.ChannelTimeout)
	duration("DISPATCH_TICK_INTERVAL", &cfg.Notification.TickInterval)
	if tz := getenv("DIGEST_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			errs = append(errs, "DIGEST_TIMEZONE")
		} else {
			cfg.Notification.DigestLocation = loc
		}
	}

	atoi("TELEGRAM_RATE_LIMIT", &cfg.RateLimit.TelegramPerSecond)
	atoi("SMS_RATE_LIMIT", &cfg.RateLimit.SMSPerSecond)

	// Replenishment advisor settings
	atoi("ADVISOR_WINDOW_DAYS", &cfg.Advisor.WindowDays)
	atoi("ADVISOR_SAFETY_DAYS", &cfg.Advisor.SafetyDays)
	atoi("ADVISOR_MIN_SUGGESTION", &cfg.Advisor.MinSuggestion)
	if v := getenv("ADVISOR_SMOOTHING_ALPHA"); v != "" {
		a, err := strconv.ParseFloat(v, 64)
		if err != nil || a <= 0 || a > 1 {
			errs = append(errs, "ADVISOR_SMOOTHING_ALPHA")
		} else {
			cfg.Advisor.SmoothingAlpha = a
		}
	}

	cfg.Logging.Dir = getenv("LOG_DIR")
	cfg.Logging.Level = getenv("LOG_LEVEL")

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %v", errs)
	}

	// Apply defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "stock_movements"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "stock-alert-service"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Notification.QueueSize == 0 {
		cfg.Notification.QueueSize = 500
	}
	if cfg.Notification.MaxWorkers == 0 {
		cfg.Notification.MaxWorkers = 10
	}
	if cfg.Notification.ChannelTimeout == 0 {
		cfg.Notification.ChannelTimeout = 10 * time.Second
	}
	if cfg.Notification.TickInterval == 0 {
		cfg.Notification.TickInterval = time.Minute
	}
	if cfg.Notification.DigestLocation == nil {
		cfg.Notification.DigestLocation = time.UTC
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.RateLimit.TelegramPerSecond == 0 {
		cfg.RateLimit.TelegramPerSecond = 20
	}
	if cfg.RateLimit.SMSPerSecond == 0 {
		cfg.RateLimit.SMSPerSecond = 1
	}
	if cfg.Advisor.WindowDays == 0 {
		cfg.Advisor.WindowDays = 30
	}
	if cfg.Advisor.SafetyDays == 0 {
		cfg.Advisor.SafetyDays = 30
	}
	if cfg.Advisor.SmoothingAlpha == 0 {
		cfg.Advisor.SmoothingAlpha = 0.3
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
