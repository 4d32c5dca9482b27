package config

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`
	// Comma-separated IPs or CIDRs allowed to set forwarding headers.
	TrustedProxies    string `mapstructure:"TRUSTED_PROXIES"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Ledger engine.
	Timezone           string        `mapstructure:"TIMEZONE"`
	SweepCron          string        `mapstructure:"SWEEP_CRON"`
	InvoicePrefix      string        `mapstructure:"INVOICE_PREFIX"`
	DefaultMonthsAhead int           `mapstructure:"DEFAULT_MONTHS_AHEAD"`
	ReminderCooldown   time.Duration `mapstructure:"REMINDER_COOLDOWN"`
	ReminderWindows    string        `mapstructure:"REMINDER_WINDOWS"`
	ChannelTimeout     time.Duration `mapstructure:"CHANNEL_TIMEOUT"`

	// Delivery integrations; empty disables them.
	CloudinaryURL       string `mapstructure:"CLOUDINARY_URL"`
	CloudinaryFolder    string `mapstructure:"CLOUDINARY_FOLDER"`
	FirebaseCredentials string `mapstructure:"FIREBASE_CREDENTIALS"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("TRUSTED_PROXIES", "")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 3)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "rentflow")
	viper.SetDefault("TIMEZONE", "Africa/Nairobi")
	viper.SetDefault("SWEEP_CRON", "0 6 * * *")
	viper.SetDefault("INVOICE_PREFIX", "INV")
	viper.SetDefault("DEFAULT_MONTHS_AHEAD", 12)
	viper.SetDefault("REMINDER_COOLDOWN", "24h")
	viper.SetDefault("REMINDER_WINDOWS", "3,1,0")
	viper.SetDefault("CHANNEL_TIMEOUT", "15s")
	viper.SetDefault("CLOUDINARY_URL", "")
	viper.SetDefault("CLOUDINARY_FOLDER", "rentflow/invoices")
	viper.SetDefault("FIREBASE_CREDENTIALS", "")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// Location returns the configured business timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("config: unknown TIMEZONE %q, falling back to UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

// ReminderWindowDays parses REMINDER_WINDOWS ("3,1,0") into day offsets.
// Malformed entries are ignored.
func (c Config) ReminderWindowDays() []int {
	var days []int
	for _, part := range strings.Split(c.ReminderWindows, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 {
			log.Printf("config: ignoring reminder window %q", part)
			continue
		}
		days = append(days, d)
	}
	return days
}

// TrustedProxyList splits TRUSTED_PROXIES. An empty list trusts no proxy.
func (c Config) TrustedProxyList() []string {
	var out []string
	for _, part := range strings.Split(c.TrustedProxies, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
