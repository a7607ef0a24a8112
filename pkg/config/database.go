package config

import "fmt"

// DatabaseConfig describes a SQL backend for the bi-temporal graph store (C10).
// Three dialects are supported; the dialect determines both the driver used by
// DBPool and the SQL this package's callers must generate (range/containment
// operators differ between Postgres, MySQL, and SQLite).
type DatabaseConfig struct {
	Dialect  string `yaml:"dialect" json:"dialect"` // "postgres", "mysql", "sqlite"
	DSN_     string `yaml:"dsn" json:"dsn"`
	MaxConns int    `yaml:"max_conns,omitempty" json:"max_conns,omitempty"`
	MaxIdle  int    `yaml:"max_idle,omitempty" json:"max_idle,omitempty"`
}

// DriverName returns the database/sql driver name registered for this dialect.
func (c *DatabaseConfig) DriverName() string {
	switch c.Dialect {
	case "postgres", "postgresql":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return c.Dialect
	}
}

// DSN returns the connection string sql.Open should use.
func (c *DatabaseConfig) DSN() string {
	return c.DSN_
}

func (c *DatabaseConfig) Validate() error {
	if c.Dialect == "" {
		return fmt.Errorf("database config: dialect is required")
	}
	if c.DSN_ == "" {
		return fmt.Errorf("database config: dsn is required")
	}
	switch c.DriverName() {
	case "postgres", "mysql", "sqlite3":
	default:
		return fmt.Errorf("database config: unsupported dialect %q", c.Dialect)
	}
	return nil
}
