package database

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DriverPostgres selects lib/pq.
	DriverPostgres = "postgres"
	// DriverSQLite selects the pure Go modernc.org/sqlite driver.
	DriverSQLite = "sqlite"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Driver string `yaml:"driver" envconfig:"DB_DRIVER"`
	// URL takes precedence over the discrete fields below.
	URL            string `yaml:"url" envconfig:"DATABASE_URL"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	Migrate        bool   `yaml:"migrate" envconfig:"DB_MIGRATE"`
}

// Normalize fills defaults and validates the driver specific fields.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	c.URL = strings.TrimSpace(c.URL)
	if c.Driver == "" {
		c.Driver = DriverPostgres
		if strings.HasPrefix(c.URL, "sqlite") {
			c.Driver = DriverSQLite
		}
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 5
	}
	switch c.Driver {
	case DriverPostgres:
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
		if c.URL != "" {
			return c.normalizePostgresURL()
		}
		if c.Host == "" || c.Name == "" {
			return fmt.Errorf("database: host and name are required when url is empty")
		}
		if c.Port == "" {
			c.Port = "5432"
		}
	case DriverSQLite:
		if c.Path == "" && c.URL != "" {
			c.Path = strings.TrimPrefix(strings.TrimPrefix(c.URL, "sqlite3://"), "sqlite://")
		}
		if c.Path == "" {
			return fmt.Errorf("database: path is required for sqlite")
		}
		// One writer at a time.
		c.MaxConnections = 1
	default:
		return fmt.Errorf("database: unsupported driver %q; allowed: postgres, sqlite", c.Driver)
	}
	return nil
}

// DSN returns the connection string understood by the sql driver.
func (c Config) DSN() string {
	switch c.Driver {
	case DriverSQLite:
		return "file:" + c.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	default:
		if c.URL != "" {
			return c.URL
		}
		return c.postgresURL()
	}
}

// MigrateURL returns the database URL in the form golang-migrate expects.
func (c Config) MigrateURL() string {
	switch c.Driver {
	case DriverSQLite:
		return "sqlite://" + c.Path
	default:
		if c.URL != "" {
			return c.URL
		}
		return c.postgresURL()
	}
}

func (c Config) postgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// asyncpgParams are query parameters understood by asyncpg and SQLAlchemy
// but rejected by lib/pq.
var asyncpgParams = []string{"ssl", "prepared_statement_cache_size", "statement_cache_size", "command_timeout"}

// normalizePostgresURL rewrites SQLAlchemy style schemes such as
// postgresql+asyncpg:// into plain postgres:// and makes sslmode explicit.
// An sslmode already in the URL wins over SSLMode; otherwise an asyncpg
// ssl=... flag is translated, and SSLMode is the last resort.
func (c *Config) normalizePostgresURL() error {
	if !strings.Contains(c.URL, "://") {
		// key=value DSN, passed through as is.
		return nil
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("database: invalid url: %w", err)
	}
	switch base, _, _ := strings.Cut(u.Scheme, "+"); base {
	case "postgres", "postgresql":
	default:
		return fmt.Errorf("database: url scheme %q is not postgres", u.Scheme)
	}
	u.Scheme = "postgres"

	q := u.Query()
	mode := q.Get("sslmode")
	if mode == "" {
		mode = sslFlagMode(q.Get("ssl"))
	}
	if mode == "" {
		mode = c.SSLMode
	}
	for _, p := range asyncpgParams {
		q.Del(p)
	}
	q.Set("sslmode", mode)
	u.RawQuery = q.Encode()

	c.SSLMode = mode
	c.URL = u.String()
	return nil
}

// sslFlagMode maps the asyncpg ssl flag to a libpq sslmode.
func sslFlagMode(flag string) string {
	switch strings.ToLower(flag) {
	case "", "prefer":
		return ""
	case "false", "0", "disable", "off":
		return "disable"
	case "true", "1", "on":
		return "require"
	}
	return strings.ToLower(flag)
}

// Target returns the server and database name for logs. Credentials are
// never part of it.
func (c Config) Target() (host, port, name string) {
	switch {
	case c.Driver == DriverSQLite:
		return "", "", c.Path
	case c.URL == "":
		return c.Host, c.Port, c.Name
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", "", ""
	}
	return u.Hostname(), u.Port(), strings.TrimPrefix(u.Path, "/")
}
