package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/studylog/core/internal/infrastructure/config"
)

// DB is the connection behind the SQL selection store
type DB struct {
	DB     *sqlx.DB
	config config.DatabaseConfig
}

// New opens the session database and verifies it answers
func New(cfg config.DatabaseConfig) (*DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}

	return &DB{DB: db, config: cfg}, nil
}

// GetConnectionInfo returns pool statistics for startup logging
func (db *DB) GetConnectionInfo() map[string]interface{} {
	stats := db.DB.Stats()

	info := map[string]interface{}{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"idle":                 stats.Idle,
	}
	if db.config.Driver == config.DriverSQLite {
		info["path"] = db.config.Path
	} else {
		info["host"] = db.config.Host
		info["name"] = db.config.Name
	}
	return info
}
