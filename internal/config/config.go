package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	GRPC     GRPCConfig
	HTTP     HTTPConfig
	Auth     AuthConfig
	Store    StoreConfig
	Geocode  GeocodeConfig
	Weather  WeatherConfig
	Log      LogConfig
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string // SQLite database file path
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string // gRPC server listen address (e.g., ":50051")
}

// HTTPConfig contains the lookup/websocket HTTP server settings.
type HTTPConfig struct {
	Address         string
	ShutdownTimeout time.Duration
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret      string // JWT signing secret
	TokenTTL       time.Duration
	OTPTTL         time.Duration
	OTPMaxAttempts int
}

// StoreConfig controls the booking store.
type StoreConfig struct {
	StrictTransitions bool
	Timezone          string // IANA name or "Local"
	SeedMock          bool   // seed demo bookings into an empty database
}

// Location resolves Timezone.
func (s StoreConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || strings.EqualFold(s.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// GeocodeConfig points at the places autocomplete provider.
type GeocodeConfig struct {
	BaseURL  string
	APIKey   string
	Debounce time.Duration
	Timeout  time.Duration
}

// WeatherConfig points at the forecast provider.
type WeatherConfig struct {
	BaseURL string
	Timeout time.Duration
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first if present.
func Load() (*Config, error) {
	cfg, err := load("")
	if err != nil {
		return nil, err
	}

	// Validate critical settings
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}

	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for JWT_SECRET in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	return load("dev-secret-change-me")
}

func load(defaultSecret string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	tokenTTL, err := getEnvDuration("TOKEN_TTL", 24*time.Hour)
	collect(err)
	otpTTL, err := getEnvDuration("OTP_TTL", 5*time.Minute)
	collect(err)
	otpAttempts, err := getEnvInt("OTP_MAX_ATTEMPTS", 5)
	collect(err)
	strict, err := getEnvBool("STRICT_TRANSITIONS", true)
	collect(err)
	seed, err := getEnvBool("SEED_MOCK", true)
	collect(err)
	debounce, err := getEnvDuration("AUTOCOMPLETE_DEBOUNCE", 300*time.Millisecond)
	collect(err)
	placesTimeout, err := getEnvDuration("PLACES_TIMEOUT", 10*time.Second)
	collect(err)
	weatherTimeout, err := getEnvDuration("WEATHER_TIMEOUT", 10*time.Second)
	collect(err)
	httpShutdown, err := getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second)
	collect(err)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "dispatch.db"),
		},
		GRPC: GRPCConfig{
			Address: getEnv("GRPC_ADDRESS", ":50051"),
		},
		HTTP: HTTPConfig{
			Address:         getEnv("HTTP_ADDRESS", ":8080"),
			ShutdownTimeout: httpShutdown,
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", defaultSecret),
			TokenTTL:       tokenTTL,
			OTPTTL:         otpTTL,
			OTPMaxAttempts: otpAttempts,
		},
		Store: StoreConfig{
			StrictTransitions: strict,
			Timezone:          getEnv("STORE_TIMEZONE", "Local"),
			SeedMock:          seed,
		},
		Geocode: GeocodeConfig{
			BaseURL:  getEnv("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
			APIKey:   getEnv("PLACES_API_KEY", ""),
			Debounce: debounce,
			Timeout:  placesTimeout,
		},
		Weather: WeatherConfig{
			BaseURL: getEnv("WEATHER_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
			Timeout: weatherTimeout,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
	if _, err := cfg.Store.Location(); err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEZONE: %w", err)
	}
	return cfg, nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	if value, exists := os.LookupEnv(key); exists {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("invalid boolean for %s: %w", key, err)
		}
		return b, nil
	}
	return defaultVal, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d, nil
	}
	return defaultVal, nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{DB: %s, gRPC: %s, HTTP: %s, StrictTransitions: %t, TZ: %s, Auth: *** (masked) ***, PlacesKey: %s}",
		c.Database.Path, c.GRPC.Address, c.HTTP.Address, c.Store.StrictTransitions, c.Store.Timezone, mask(c.Geocode.APIKey))
}

func mask(s string) string {
	if s == "" {
		return "(unset)"
	}
	return "***"
}
