package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables, applies defaults and
// validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load reading variables through getenv. Every unset required
// variable and every unparseable value is reported, not only the first.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), getenv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// loadStruct fills the tagged fields of v, recursing into nested sections.
//
// Tags: env names the variable, envAlt a fallback variable, default the value
// used when both are unset, and required:"true" makes an unset variable an
// error.
func loadStruct(v reflect.Value, getenv func(string) string) error {
	var errs []error
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fv, getenv); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		value, ok := lookup(field.Tag, getenv)
		if !ok {
			if field.Tag.Get("required") == "true" {
				errs = append(errs, fmt.Errorf("required environment variable %s is not set", name))
			}
			continue
		}
		if err := setField(fv, value); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s=%q: %w", name, value, err))
		}
	}
	return errors.Join(errs...)
}

// lookup returns the env value of a field, its alternate, or its default.
func lookup(tag reflect.StructTag, getenv func(string) string) (string, bool) {
	for _, key := range []string{tag.Get("env"), tag.Get("envAlt")} {
		if key == "" {
			continue
		}
		if value := getenv(key); value != "" {
			return value, true
		}
	}
	if def := tag.Get("default"); def != "" {
		return def, true
	}
	return "", false
}

// setField parses value into field according to its type.
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		field.Set(reflect.ValueOf(splitList(value)))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// splitList splits a comma-separated value, dropping blank items.
func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration and reports every failure at once.
func (c *Config) Validate() error {
	var errs []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}
	oneOf := func(value string, allowed ...string) bool {
		for _, a := range allowed {
			if value == a {
				return true
			}
		}
		return false
	}

	db := c.Database
	check(db.URL != "", "DATABASE_URL is required")
	check(oneOf(db.Driver, "postgres", "sqlite", "mysql"), "DB_DRIVER (%q) must be one of: postgres, sqlite, mysql", db.Driver)
	check(oneOf(db.FlushMode, "copy", "insert"), "DB_FLUSH_MODE (%q) must be one of: copy, insert", db.FlushMode)
	check(db.MaxConns > 0, "DB_MAX_CONNS must be positive")
	check(db.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
	check(db.MaxConns >= db.MinConns, "DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns)
	check(db.ConnectTimeout > 0, "DB_CONNECT_TIMEOUT must be positive")

	srv := c.Server
	check(srv.Port > 0 && srv.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", srv.Port)
	check(srv.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	check(srv.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")

	load := c.Load
	check(load.BatchSize > 0, "LOAD_BATCH_SIZE must be positive")
	check(load.ErrorBatchSize > 0, "LOAD_ERROR_BATCH_SIZE must be positive")
	check(load.RetainErrors >= 0, "LOAD_RETAIN_ERRORS must be non-negative")
	check(load.MaxConcurrent > 0, "LOAD_MAX_CONCURRENT must be positive")
	check(load.MaxWaitTime > 0, "LOAD_MAX_WAIT_TIME must be positive")
	check(load.Timeout > 0, "LOAD_TIMEOUT must be positive")
	check(load.Retention > 0, "LOAD_RETENTION must be positive")

	check(!c.Security.RequireAPIKey || len(c.Security.APIKeys) > 0, "API_KEYS must be set when API_REQUIRE_KEY is true")

	check(oneOf(strings.ToLower(c.Logging.Level), "debug", "info", "warn", "error"), "LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	check(oneOf(strings.ToLower(c.Logging.Format), "text", "json"), "LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String renders the config for logging. The database URL and API keys are
// masked.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Config{Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Database: {Driver: %q, URL: [MASKED], FlushMode: %q, MaxConns: %d}, ",
		c.Database.Driver, c.Database.FlushMode, c.Database.MaxConns)
	fmt.Fprintf(&b, "Load: {BatchSize: %d, MaxConcurrent: %d, Timeout: %s, FeedRoot: %q}, ",
		c.Load.BatchSize, c.Load.MaxConcurrent, c.Load.Timeout, c.Load.FeedRoot)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %t, APIKeys: %d}, ", c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}}", c.Logging.Level, c.Logging.Format)
	return b.String()
}
