package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// load parses args into a fresh Config the way the serve command does.
func load(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	cfg.Flags(fs)
	require.NoError(t, fs.Parse(args))
	err := Load(viper.New(), fs)
	return cfg, err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shelf.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":1337", cfg.Bind)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 15*time.Minute, cfg.AuthRateWindow)
	assert.Equal(t, []string{"hello"}, cfg.Extensions)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SHELF_JWT_SECRET", "from-env")
	t.Setenv("SHELF_TOKEN_TTL", "2h")
	t.Setenv("SHELF_EXTENSIONS", "hello,other")
	t.Setenv("SHELF_TRUST_PROXY", "true")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"hello", "other"}, cfg.Extensions)
	assert.True(t, cfg.TrustProxy)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
bind = ":8080"
jwt-secret = "from-file"
max-upload-bytes = 1024
auth-rate-window = "1m"
extensions = []
allowed-origins = ["https://a.example", "https://b.example"]
`)
	cfg, err := load(t, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Bind)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
	assert.Equal(t, time.Minute, cfg.AuthRateWindow)
	assert.Empty(t, cfg.Extensions)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, `
bind = ":1"
db = "file.db"
log-format = "json"
`)
	t.Setenv("SHELF_BIND", ":2")
	t.Setenv("SHELF_DB", "env.db")

	cfg, err := load(t, "--config", path, "--bind", ":3")
	require.NoError(t, err)
	assert.Equal(t, ":3", cfg.Bind, "flag beats env and file")
	assert.Equal(t, "env.db", cfg.DB, "env beats file")
	assert.Equal(t, "json", cfg.LogFormat, "file beats default")
}

func TestLoad_FlagSliceNotAppended(t *testing.T) {
	cfg, err := load(t, "--extensions", "a,b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cfg.Extensions)
}

func TestLoad_UnknownFileKey(t *testing.T) {
	path := writeFile(t, `
bind = ":8080"
jwt_secret = "typo"
`)
	_, err := load(t, "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid option in configuration file: jwt_secret")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(t, "--config", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("SHELF_TOKEN_TTL", "soon")
	_, err := load(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token-ttl")
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.JWTSecret = "s"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no secret", func(c *Config) { c.JWTSecret = "" }, "jwt-secret"},
		{"bad driver", func(c *Config) { c.DBDriver = "postgres" }, "db-driver"},
		{"no db", func(c *Config) { c.DB = "" }, "db must be set"},
		{"zero upload", func(c *Config) { c.MaxUploadBytes = 0 }, "max-upload-bytes"},
		{"negative ttl", func(c *Config) { c.TokenTTL = -time.Second }, "token-ttl"},
		{"window", func(c *Config) { c.AuthRateWindow = 0 }, "auth-rate-window"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log-format"},
		{"shutdown", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown-timeout"},
		{"empty extension", func(c *Config) { c.Extensions = []string{"hello", " "} }, "empty module name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	noLimit := valid
	noLimit.AuthRateLimit = 0
	noLimit.AuthRateWindow = 0
	assert.NoError(t, noLimit.Validate(), "window is unused when limiting is off")
}
