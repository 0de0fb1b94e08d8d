package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"

	DriverSQLite  = "sqlite3"
	DriverMongoDB = "mongodb"

	TokenStoreDatabase = "database"
	TokenStoreRedis    = "redis"

	// DevJWTSecret is the placeholder secret shipped in config.example.toml.
	DevJWTSecret = "dev-secret-change-me"
)

// Config represents the application configuration loaded from a TOML file and the environment.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Auth        AuthConfig        `toml:"auth"`
	Credentials CredentialsConfig `toml:"credentials"`
	Spotify     SpotifyOptions    `toml:"spotify"`
	Redis       RedisConfig       `toml:"redis"`
	Log         LogConfig         `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string        `toml:"host"`
	Port           int           `toml:"port"`
	Mode           string        `toml:"mode"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	WriteTimeout   time.Duration `toml:"write_timeout"`
	AllowedOrigins []string      `toml:"allowed_origins"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Development reports whether error details may be returned to clients.
func (s ServerConfig) Development() bool {
	return s.Mode == ModeDevelopment
}

// DatabaseConfig contains document store connection settings.
//
// Path is used by the sqlite3 driver, URI and Name by the mongodb driver.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	URI          string `toml:"uri"`
	Name         string `toml:"name"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// AuthConfig contains bearer token and password hashing settings.
type AuthConfig struct {
	JWTSecret  string        `toml:"jwt_secret"`
	TokenTTL   time.Duration `toml:"token_ttl"`
	BcryptCost int           `toml:"bcrypt_cost"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and client settings.
type SpotifyConfig struct {
	ClientID     string        `toml:"client_id"`
	ClientSecret string        `toml:"client_secret"`
	RedirectURI  string        `toml:"redirect_uri"`
	APIURL       string        `toml:"api_url"`
	RateLimit    float64       `toml:"rate_limit"`
	Timeout      time.Duration `toml:"timeout"`
}

// Map returns the credentials in the form expected by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"api_url":       s.APIURL,
	}
}

// Configured reports whether both client id and secret are present.
func (s SpotifyConfig) Configured() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// SpotifyOptions selects where per-user Spotify tokens are kept.
type SpotifyOptions struct {
	TokenStore string `toml:"token_store"`
}

// RedisConfig contains the Redis connection URL used by the redis token store.
type RedisConfig struct {
	URL string `toml:"url"`
}

// LogConfig controls the log level and optional rotating log file.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load resolves the runtime configuration.
//
// The TOML file at path is used when it exists, otherwise the embedded defaults.
// A .env file in the working directory is loaded next (existing variables win),
// and environment variables are applied last.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	_ = godotenv.Load()

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides configuration values with environment variables.
func (c *Config) ApplyEnv() error {
	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := os.LookupEnv(key); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&c.Server.Host, "HOST")
	setString(&c.Server.Mode, "APP_ENV", "NODE_ENV")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.Path, "DATABASE_PATH")
	setString(&c.Database.URI, "MONGODB_URI", "DATABASE_URL")
	setString(&c.Database.Name, "DATABASE_NAME")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	setString(&c.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	setString(&c.Credentials.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	setString(&c.Spotify.TokenStore, "SPOTIFY_TOKEN_STORE")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.File, "LOG_FILE")

	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT must be a number, got %q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}

	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.AllowedOrigins = origins
	}

	return nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for %s", ErrInvalidConfig, DriverSQLite)
		}
	case DriverMongoDB:
		if c.Database.URI == "" {
			return fmt.Errorf("%w: database.uri is required for %s", ErrInvalidConfig, DriverMongoDB)
		}
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	switch c.Spotify.TokenStore {
	case TokenStoreDatabase:
	case TokenStoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("%w: redis.url is required for the redis token store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown spotify.token_store %q", ErrInvalidConfig, c.Spotify.TokenStore)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret (JWT_SECRET) is required", ErrInvalidConfig)
	}
	if c.Auth.JWTSecret == DevJWTSecret && !c.Server.Development() {
		return fmt.Errorf("%w: auth.jwt_secret must be changed outside development", ErrInvalidConfig)
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("%w: auth.token_ttl must be positive", ErrInvalidConfig)
	}

	return nil
}
