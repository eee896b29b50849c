package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Pesapal   PesapalConfig
	Pricing   PricingConfig
	Credits   CreditsConfig
	Redis     RedisConfig
	Firebase  FirebaseConfig
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	BasePath     string // prefix for every route, empty by default
	FrontendURL  string // prefix for /payment/success and /payment/failed redirects
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimitRPS float64
	RateBurst    int
}

type DatabaseConfig struct {
	Driver          string // mysql | sqlite
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// PesapalConfig for the Pesapal v3 API. Every field is required by `serve`.
type PesapalConfig struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	CallbackBaseURL string // callback is CallbackBaseURL + BasePath + /payments/callback
	IPNID           string
	Currency        string
	Timeout         time.Duration
}

// PricingConfig is the catalog used when a checkout omits the amount (major units).
type PricingConfig struct {
	VerificationAmount int64
	BoostAmounts       map[string]int64
}

type CreditsConfig struct {
	FreeAllotment int
}

type RedisConfig struct {
	Addr      string // empty disables the Redis dedupe store
	Password  string
	DB        int
	DedupeTTL time.Duration
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

type ReconcileConfig struct {
	Enabled      bool
	Interval     time.Duration
	PendingAfter time.Duration
	AbandonAfter time.Duration
	BatchSize    int
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8099"),
			Env:          getEnv("APP_ENV", "development"),
			BasePath:     strings.TrimRight(getEnv("SERVER_BASE_PATH", ""), "/"),
			FrontendURL:  strings.TrimRight(getEnv("FRONTEND_BASE_URL", ""), "/"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			RateLimitRPS: getFloat("RATE_LIMIT_RPS", 5),
			RateBurst:    getInt("RATE_LIMIT_BURST", 20),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "mysql"),
			DSN:             getEnv("DB_DSN", "nguvuhire:nguvuhire@tcp(localhost:3306)/nguvuhire?charset=utf8mb4&parseTime=True&loc=UTC"),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: getDuration("JWT_ACCESS_EXPIRY", time.Hour),
			Issuer:       getEnv("JWT_ISSUER", "nguvuhire"),
		},
		Pesapal: PesapalConfig{
			BaseURL:         strings.TrimRight(getEnv("PESAPAL_BASE_URL", ""), "/"),
			ConsumerKey:     getEnv("PESAPAL_CONSUMER_KEY", ""),
			ConsumerSecret:  getEnv("PESAPAL_CONSUMER_SECRET", ""),
			CallbackBaseURL: strings.TrimRight(getEnv("PESAPAL_CALLBACK_BASE_URL", ""), "/"),
			IPNID:           getEnv("PESAPAL_IPN_ID", ""),
			Currency:        getEnv("PESAPAL_CURRENCY", "KES"),
			Timeout:         getDuration("PESAPAL_TIMEOUT", 30*time.Second),
		},
		Pricing: PricingConfig{
			VerificationAmount: int64(getInt("PRICE_VERIFICATION", 10)),
			BoostAmounts: map[string]int64{
				"standard": int64(getInt("PRICE_BOOST_STANDARD", 100)),
				"premium":  int64(getInt("PRICE_BOOST_PREMIUM", 250)),
				"ultra":    int64(getInt("PRICE_BOOST_ULTRA", 500)),
			},
		},
		Credits: CreditsConfig{
			FreeAllotment: getInt("FREE_BOOST_CREDITS", 1),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getInt("REDIS_DB", 0),
			DedupeTTL: getDuration("ORDER_DEDUPE_TTL", 2*time.Minute),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		},
		Reconcile: ReconcileConfig{
			Enabled:      getBool("RECONCILE_ENABLED", true),
			Interval:     getDuration("RECONCILE_INTERVAL", 5*time.Minute),
			PendingAfter: getDuration("RECONCILE_PENDING_AFTER", 15*time.Minute),
			AbandonAfter: getDuration("RECONCILE_ABANDON_AFTER", 24*time.Hour),
			BatchSize:    getInt("RECONCILE_BATCH_SIZE", 100),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
