package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds the Postgres connection and pool settings
type Config struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	ConnectTimeout  time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LoadConfig reads the database.* keys from v, falling back to local development defaults
func LoadConfig(v *viper.Viper) Config {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "pesa_tracker")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 15*time.Minute)

	return Config{
		Host:            v.GetString("database.host"),
		Port:            v.GetString("database.port"),
		User:            v.GetString("database.user"),
		Password:        v.GetString("database.password"),
		Name:            v.GetString("database.name"),
		SSLMode:         v.GetString("database.ssl_mode"),
		ConnectTimeout:  v.GetDuration("database.connect_timeout"),
		MaxOpenConns:    v.GetInt("database.max_open_conns"),
		MaxIdleConns:    v.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
	}
}

// DSN renders the config as a postgres:// URL with credentials escaped
func (c Config) DSN() string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if secs := int(c.ConnectTimeout / time.Second); secs > 0 {
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open connects to Postgres and applies the schema. The caller owns the returned handle
// and must close it.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := prepare(ctx, db, cfg, log); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// prepare configures the pool, checks connectivity and brings the schema up to date
func prepare(ctx context.Context, db *sql.DB, cfg Config, log zerolog.Logger) error {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to %s@%s:%s: %w", cfg.Name, cfg.Host, cfg.Port, err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		return err
	}

	log.Info().
		Str("database", cfg.Name).
		Str("host", cfg.Host).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("Database ready")
	return nil
}
