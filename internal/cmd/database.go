package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"parking_control/internal/config"
	"parking_control/internal/repository"
	"parking_control/internal/repository/postgresql"
	"parking_control/internal/repository/sqlite"

	"github.com/rs/zerolog/log"
)

// Database bundles an open connection with the repositories built on it.
type Database struct {
	DB           *sql.DB
	ParkingSpots repository.ParkingSpotRepository
	Users        repository.UserRepository
	migrate      func(ctx context.Context, db *sql.DB) error
}

func openDatabase(cfg *config.Config) (*Database, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := sqlite.NewDB(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("connected to sqlite")
		return &Database{
			DB:           db,
			ParkingSpots: sqlite.NewParkingSpotRepository(db),
			Users:        sqlite.NewUserRepository(db),
			migrate:      sqlite.Migrate,
		}, nil
	case config.DriverPgx, config.DriverPostgres:
		db, err := postgresql.NewDB(cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info().Str("driver", cfg.DBDriver).Str("host", cfg.DBHost).Str("database", cfg.DBName).Msg("connected to postgres")
		return &Database{
			DB:           db,
			ParkingSpots: postgresql.NewPgParkingSpotRepository(db),
			Users:        postgresql.NewPgUserRepository(db),
			migrate:      postgresql.Migrate,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func (d *Database) Migrate(ctx context.Context) error {
	if err := d.migrate(ctx, d.DB); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	log.Info().Msg("database schema is up to date")
	return nil
}

func (d *Database) Close() error {
	return d.DB.Close()
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
