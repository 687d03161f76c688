package store

import "fmt"

// Config selects and configures a settings store backend.
type Config struct {
	Type string `toml:"type" mapstructure:"type"` // "sqlite", "postgres", "memory"
	DSN  string `toml:"dsn" mapstructure:"dsn"`
}

// NewFromConfig builds a Store from config. An empty type means memory.
func NewFromConfig(c Config) (Store, error) {
	switch c.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(c.DSN)
	case "postgres", "postgresql":
		return NewPostgresStore(c.DSN)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", c.Type)
	}
}
