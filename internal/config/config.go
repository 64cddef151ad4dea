package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strings"
	"time"
)

// First-login modes for contacts that have no stored credential.
const (
	FirstLoginInvite = "invite"
	FirstLoginTrust  = "trust"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env      string // application environment (dev, test, prod)
	Port     string // HTTP port to listen on
	LogLevel string // zap level name

	DBUser string
	DBPass string // empty allowed
	DBHost string
	DBPort string
	DBName string

	ServiceJWTSecret string        // signs service-identity and invitation JWTs
	InviteTTL        time.Duration // lifetime of first-login invitation tokens
	AccessTTL        time.Duration // zero: fall back to system parameters
	RefreshTTL       time.Duration // zero: fall back to system parameters
	BcryptCost       int
	FirstLoginMode   string // invite | trust
	OTPTTL           time.Duration

	CORSOrigins    []string
	RequestTimeout time.Duration // per-request DB budget in handlers
	Currency       string        // default invoice currency
	AMQPURL        string        // empty disables publishing and consumers
	WebhookSecret  string        // shared secret on provider callbacks; empty disables them

	Phone    PhoneConfig
	Wave     WaveConfig
	Orange   OrangeConfig
	SMS      SMSConfig
	SMTP     SMTPConfig
	Reminder ReminderConfig
}

// PhoneConfig carries the dialing rules used to normalise identifiers.
type PhoneConfig struct {
	CountryCode string // calling code without "+", e.g. 221
	LocalLength int    // digits in a national number; 0 disables the check
}

// WaveConfig configures the Wave checkout API.
type WaveConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// OrangeConfig configures the Orange Money QR-code checkout API.
type OrangeConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	MerchantCode string
	MerchantName string
	Validity     time.Duration
	Timeout      time.Duration
	CallbackURL  string // webhook base for notifications
}

// SMSConfig configures the HTTP SMS provider. An empty URL disables SMS.
type SMSConfig struct {
	URL     string
	APIKey  string
	Sender  string
	Timeout time.Duration
}

// SMTPConfig configures outbound mail. An empty Host disables email.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// ReminderConfig drives the scheduled overdue-invoice job.
type ReminderConfig struct {
	Enabled bool
	Cron    string
	LockTTL time.Duration
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:      must("APP_ENV"),
		Port:     must("APP_PORT"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		ServiceJWTSecret: must("SERVICE_JWT_SECRET"),
		InviteTTL:        envDur("INVITE_TOKEN_TTL", 72*time.Hour),
		AccessTTL:        envDur("ACCESS_TOKEN_TTL", 0),
		RefreshTTL:       envDur("REFRESH_TOKEN_TTL", 0),
		BcryptCost:       envInt("BCRYPT_COST", 12),
		FirstLoginMode:   firstLoginMode(envStr("AUTH_FIRST_LOGIN_MODE", FirstLoginInvite)),
		OTPTTL:           envDur("OTP_TTL", 10*time.Minute),

		CORSOrigins:    splitList(envStr("CORS_ALLOW_ORIGINS", "*")),
		RequestTimeout: envDur("REQUEST_TIMEOUT", 5*time.Second),
		Currency:       envStr("DEFAULT_CURRENCY", "XOF"),
		AMQPURL:        amqpURL(),
		WebhookSecret:  os.Getenv("PAYMENT_WEBHOOK_SECRET"),

		Phone: PhoneConfig{
			CountryCode: strings.TrimPrefix(envStr("PHONE_COUNTRY_CODE", "221"), "+"),
			LocalLength: envInt("PHONE_LOCAL_LENGTH", 9),
		},
		Wave: WaveConfig{
			BaseURL: envStr("WAVE_BASE_URL", "https://api.wave.com"),
			APIKey:  os.Getenv("WAVE_API_KEY"),
			Timeout: envDur("WAVE_TIMEOUT", 30*time.Second),
		},
		Orange: OrangeConfig{
			BaseURL:      envStr("ORANGE_BASE_URL", "https://api.sandbox.orange-sonatel.com"),
			ClientID:     os.Getenv("ORANGE_CLIENT_ID"),
			ClientSecret: os.Getenv("ORANGE_CLIENT_SECRET"),
			MerchantCode: os.Getenv("ORANGE_MERCHANT_CODE"),
			MerchantName: envStr("ORANGE_MERCHANT_NAME", "Rental"),
			Validity:     envDur("ORANGE_QR_VALIDITY", 15*time.Minute),
			Timeout:      envDur("ORANGE_TIMEOUT", 30*time.Second),
			CallbackURL:  os.Getenv("ORANGE_CALLBACK_URL"),
		},
		SMS: SMSConfig{
			URL:     os.Getenv("SMS_API_URL"),
			APIKey:  os.Getenv("SMS_API_KEY"),
			Sender:  envStr("SMS_SENDER", "RENTAL"),
			Timeout: envDur("SMS_TIMEOUT", 15*time.Second),
		},
		SMTP: SMTPConfig{
			Host: os.Getenv("SMTP_HOST"),
			Port: envInt("SMTP_PORT", 587),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: envStr("SMTP_FROM", "no-reply@localhost"),
		},
		Reminder: ReminderConfig{
			Enabled: envBool("REMINDER_ENABLED", true),
			Cron:    envStr("REMINDER_CRON", "0 9 * * *"),
			LockTTL: envDur("REMINDER_LOCK_TTL", 10*time.Minute),
		},
	}
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func firstLoginMode(v string) string {
	if strings.EqualFold(v, FirstLoginTrust) {
		return FirstLoginTrust
	}
	return FirstLoginInvite
}

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
