package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Driver != DriverSQLite {
			t.Errorf("expected database driver %s, got %s", DriverSQLite, config.Database.Driver)
		}

		if config.Database.Path != "./setlist.db" {
			t.Errorf("expected database path ./setlist.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3001 {
			t.Errorf("expected server port 3001, got %d", config.Server.Port)
		}

		if config.Auth.TokenTTL != time.Hour {
			t.Errorf("expected token ttl 1h, got %v", config.Auth.TokenTTL)
		}

		if config.Spotify.TokenStore != TokenStoreDatabase {
			t.Errorf("expected token store %s, got %s", TokenStoreDatabase, config.Spotify.TokenStore)
		}

		if len(config.Server.AllowedOrigins) == 0 {
			t.Error("expected default allowed origins")
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate, got %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"
max_open_conns = 20

[server]
port = 8080
mode = "production"

[auth]
jwt_secret = "s3cret"
token_ttl = "30m"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/callback"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Database.Driver != DriverSQLite {
			t.Errorf("unset values should keep defaults, got driver %q", config.Database.Driver)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Auth.TokenTTL != 30*time.Minute {
			t.Errorf("expected token ttl 30m, got %v", config.Auth.TokenTTL)
		}

		if !config.Credentials.Spotify.Configured() {
			t.Error("expected spotify credentials to be configured")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("PORT", "4000")
		t.Setenv("JWT_SECRET", "from-env")
		t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
		t.Setenv("DATABASE_DRIVER", DriverMongoDB)
		t.Setenv("SPOTIFY_CLIENT_ID", "env-client")
		t.Setenv("NODE_ENV", ModeProduction)
		t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

		config := DefaultConfig()
		if err := config.ApplyEnv(); err != nil {
			t.Fatalf("ApplyEnv failed: %v", err)
		}

		if config.Server.Port != 4000 {
			t.Errorf("expected port 4000, got %d", config.Server.Port)
		}
		if config.Auth.JWTSecret != "from-env" {
			t.Errorf("expected jwt secret from env, got %q", config.Auth.JWTSecret)
		}
		if config.Database.Driver != DriverMongoDB || config.Database.URI != "mongodb://localhost:27017" {
			t.Errorf("expected mongodb settings from env, got %+v", config.Database)
		}
		if config.Credentials.Spotify.ClientID != "env-client" {
			t.Errorf("expected spotify client id from env, got %q", config.Credentials.Spotify.ClientID)
		}
		if config.Server.Development() {
			t.Error("NODE_ENV=production should disable development mode")
		}
		if len(config.Server.AllowedOrigins) != 2 || config.Server.AllowedOrigins[1] != "https://b.example" {
			t.Errorf("unexpected origins: %v", config.Server.AllowedOrigins)
		}
	})

	t.Run("ApplyEnv Invalid Port", func(t *testing.T) {
		t.Setenv("PORT", "eighty")

		err := DefaultConfig().ApplyEnv()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			modify func(c *Config)
		}{
			{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }},
			{"placeholder secret in production", func(c *Config) { c.Server.Mode = ModeProduction }},
			{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }},
			{"mongodb without uri", func(c *Config) { c.Database.Driver = DriverMongoDB; c.Database.URI = "" }},
			{"redis store without url", func(c *Config) { c.Spotify.TokenStore = TokenStoreRedis }},
			{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.modify(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})
}
