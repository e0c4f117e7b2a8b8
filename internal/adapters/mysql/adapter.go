// Package mysql provides the MySQL engine adapter, the reference engine for
// spatial metadata: geometry columns, spatial indexes and stored functions.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/canonica-labs/geometa/internal/adapters"

	"github.com/go-sql-driver/mysql"
)

// Adapter implements adapters.EngineAdapter for MySQL.
type Adapter struct {
	*adapters.SQLAdapter
	database string
}

// Config adds MySQL specifics to adapters.Options.
type Config struct {
	adapters.Options

	// CreateDatabase creates the DSN's database when it does not exist.
	CreateDatabase bool
}

// New connects to the database named in cfg.DSN.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	dsnCfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql adapter: invalid dsn: %w", err)
	}
	if dsnCfg.DBName == "" {
		return nil, fmt.Errorf("mysql adapter: dsn must name a database")
	}

	hooks := adapters.NewQueryHooks(cfg.Logger, cfg.SlowQueryThreshold)

	if cfg.CreateDatabase {
		if err := createDatabase(ctx, dsnCfg, hooks, cfg.Retry); err != nil {
			return nil, err
		}
	}

	db, err := adapters.Connect(ctx, adapters.MySQL, func() (*sql.DB, error) {
		return adapters.OpenWithHooks("mysql", &mysql.MySQLDriver{}, cfg.DSN, hooks)
	}, cfg.Retry)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	dialect, _ := adapters.DialectFor(adapters.MySQL)
	return &Adapter{
		SQLAdapter: adapters.NewSQLAdapter(adapters.MySQL, dialect, db, hooks),
		database:   dsnCfg.DBName,
	}, nil
}

// Database returns the schema name the adapter is connected to.
func (a *Adapter) Database() string {
	return a.database
}

func createDatabase(ctx context.Context, dsnCfg *mysql.Config, hooks *adapters.QueryHooks, retry adapters.RetryConfig) error {
	server := dsnCfg.Clone()
	name := server.DBName
	server.DBName = ""

	db, err := adapters.Connect(ctx, adapters.MySQL, func() (*sql.DB, error) {
		return adapters.OpenWithHooks("mysql", &mysql.MySQLDriver{}, server.FormatDSN(), hooks)
	}, retry)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4", name)); err != nil {
		return fmt.Errorf("mysql adapter: create database %s: %w", name, err)
	}
	return nil
}
