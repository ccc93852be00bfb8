package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"parking_control/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// NewDB opens Postgres through either the pgx stdlib driver or lib/pq, as chosen by DB_DRIVER.
func NewDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.DBDriver, cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS parking_spots (
	id                  UUID PRIMARY KEY,
	parking_spot_number VARCHAR(10)  NOT NULL,
	license_plate_car   VARCHAR(7)   NOT NULL,
	brand_car           VARCHAR(70)  NOT NULL,
	model_car           VARCHAR(70)  NOT NULL,
	color_car           VARCHAR(70)  NOT NULL,
	registration_date   TIMESTAMPTZ  NOT NULL,
	responsible_name    VARCHAR(130) NOT NULL,
	apartment           VARCHAR(30)  NOT NULL,
	block               VARCHAR(30)  NOT NULL,
	CONSTRAINT parking_spots_parking_spot_number_key UNIQUE (parking_spot_number),
	CONSTRAINT parking_spots_license_plate_car_key UNIQUE (license_plate_car),
	CONSTRAINT parking_spots_apartment_block_key UNIQUE (apartment, block)
);

CREATE TABLE IF NOT EXISTS users (
	id            SERIAL PRIMARY KEY,
	username      VARCHAR(50) NOT NULL,
	password_hash TEXT        NOT NULL,
	role          VARCHAR(20) NOT NULL,
	last_login_at TIMESTAMPTZ NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CONSTRAINT users_username_key UNIQUE (username)
);`

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
