// Package config defines the shelf server configuration and binds it to
// command line flags, SHELF_* environment variables and an optional TOML
// file, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/shelf/internal/store"
)

// EnvPrefix prefixes environment variables. The variable for a flag is
// EnvPrefix + "_" + the flag name upper-cased with dashes as underscores.
const EnvPrefix = "SHELF"

// Log formats.
const (
	LogText = "text"
	LogJSON = "json"
)

// Config holds everything the serve command needs.
type Config struct {
	Bind        string
	MetricsBind string

	DB       string
	DBDriver string

	UploadDir      string
	MaxUploadBytes int64
	MarkerDir      string

	JWTSecret      string
	TokenTTL       time.Duration
	AuthRateLimit  int
	AuthRateWindow time.Duration

	Extensions     []string
	AllowedOrigins []string
	TrustProxy     bool

	LogFormat       string
	ShutdownTimeout time.Duration
}

// Default returns the configuration used when nothing is overridden.
// JWTSecret has no default and must be supplied.
func Default() Config {
	return Config{
		Bind:            ":1337",
		DB:              "database.db",
		DBDriver:        store.DriverCGO,
		UploadDir:       "uploads",
		MaxUploadBytes:  5 << 20,
		MarkerDir:       ".",
		AuthRateLimit:   5,
		AuthRateWindow:  15 * time.Minute,
		Extensions:      []string{"hello"},
		AllowedOrigins:  []string{"*"},
		LogFormat:       LogText,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Flags registers a flag for every field of c, using the current values
// as defaults.
func (c *Config) Flags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Bind, "bind", c.Bind, "address to serve the API on")
	fs.StringVar(&c.MetricsBind, "metrics-bind", c.MetricsBind, "address to serve /metrics on (disabled when empty)")
	fs.StringVar(&c.DB, "db", c.DB, "path to the SQLite database")
	fs.StringVar(&c.DBDriver, "db-driver", c.DBDriver, "SQLite driver (sqlite3|sqlite)")
	fs.StringVar(&c.UploadDir, "upload-dir", c.UploadDir, "directory for uploaded files")
	fs.Int64Var(&c.MaxUploadBytes, "max-upload-bytes", c.MaxUploadBytes, "largest accepted upload in bytes")
	fs.StringVar(&c.MarkerDir, "marker-dir", c.MarkerDir, "directory holding <collection>.schema.json markers")
	fs.StringVar(&c.JWTSecret, "jwt-secret", c.JWTSecret, "HMAC secret for signing tokens")
	fs.DurationVar(&c.TokenTTL, "token-ttl", c.TokenTTL, "token lifetime (0 for tokens that never expire)")
	fs.IntVar(&c.AuthRateLimit, "auth-rate-limit", c.AuthRateLimit, "register/login attempts per client per window (0 disables)")
	fs.DurationVar(&c.AuthRateWindow, "auth-rate-window", c.AuthRateWindow, "rate limit window")
	fs.StringSliceVar(&c.Extensions, "extensions", c.Extensions, "extension modules to load, in order")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "CORS allowed origins")
	fs.BoolVar(&c.TrustProxy, "trust-proxy", c.TrustProxy, "take the client address from X-Forwarded-For")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format (text|json)")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "grace period for in-flight requests on shutdown")
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Bind == "":
		return fmt.Errorf("bind must be set")
	case c.DB == "":
		return fmt.Errorf("db must be set")
	case c.DBDriver != store.DriverCGO && c.DBDriver != store.DriverPure:
		return fmt.Errorf("db-driver %q: must be %q or %q", c.DBDriver, store.DriverCGO, store.DriverPure)
	case c.UploadDir == "":
		return fmt.Errorf("upload-dir must be set")
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("max-upload-bytes must be positive, got %d", c.MaxUploadBytes)
	case c.MarkerDir == "":
		return fmt.Errorf("marker-dir must be set")
	case c.JWTSecret == "":
		return fmt.Errorf("jwt-secret must be set (flag --jwt-secret or %s_JWT_SECRET)", EnvPrefix)
	case c.TokenTTL < 0:
		return fmt.Errorf("token-ttl must not be negative")
	case c.AuthRateLimit < 0:
		return fmt.Errorf("auth-rate-limit must not be negative")
	case c.AuthRateLimit > 0 && c.AuthRateWindow <= 0:
		return fmt.Errorf("auth-rate-window must be positive when auth-rate-limit is set")
	case c.LogFormat != LogText && c.LogFormat != LogJSON:
		return fmt.Errorf("log-format %q: must be %q or %q", c.LogFormat, LogText, LogJSON)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("shutdown-timeout must be positive")
	}
	for _, name := range c.Extensions {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("extensions: empty module name")
		}
	}
	return nil
}

// Load takes flags as the definition of every option and its default,
// then fills each one from the command line, the environment, and the
// TOML file named by the "config" key, in that priority order. Each flag
// points at its destination, so Load writes straight into the bound
// Config.
//
// Keys in the file that do not name a flag are rejected.
func Load(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	validKeys := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validKeys[f.Name] = true
	})

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading configuration file %q: %w", path, err)
		}
		for _, key := range v.AllKeys() {
			if !validKeys[key] {
				return fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			// Flags given on the command line win. Skipping them also
			// avoids Set appending to slice values that were already set.
			return
		}
		var value string
		if f.Value.Type() == "stringSlice" {
			// GetString is empty for a list read from the file.
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			value = v.GetString(f.Name)
		}
		if err := f.Value.Set(value); err != nil {
			flagErr = fmt.Errorf("option %s: %w", f.Name, err)
		}
	})
	return flagErr
}
