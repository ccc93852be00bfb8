package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"parking_control/internal/domain"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")

// Constraint violations reported by the storage layer. Each wraps ErrDuplicateEntry.
var (
	ErrLicensePlateTaken      = fmt.Errorf("%w: license plate car", ErrDuplicateEntry)
	ErrParkingSpotNumberTaken = fmt.Errorf("%w: parking spot number", ErrDuplicateEntry)
	ErrApartmentBlockTaken    = fmt.Errorf("%w: apartment/block", ErrDuplicateEntry)
)

type ParkingSpotRepository interface {
	Create(ctx context.Context, spot *domain.ParkingSpot) (*domain.ParkingSpot, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ParkingSpot, error)
	FindByLicensePlateCar(ctx context.Context, licensePlateCar string) (*domain.ParkingSpot, error)
	FindAll(ctx context.Context, filter domain.ParkingSpotFilter, page domain.PageRequest) ([]domain.ParkingSpot, int64, error)
	Update(ctx context.Context, spot *domain.ParkingSpot) (*domain.ParkingSpot, error)
	Delete(ctx context.Context, id uuid.UUID) error

	ExistsByLicensePlateCar(ctx context.Context, licensePlateCar string) (bool, error)
	ExistsByParkingSpotNumber(ctx context.Context, parkingSpotNumber string) (bool, error)
	ExistsByApartmentAndBlock(ctx context.Context, apartment, block string) (bool, error)

	// WithinTx runs fn against a repository bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(repo ParkingSpotRepository) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, id int, at time.Time) error
}

// RunInTx executes fn inside a *sql.Tx.
// If fn returns an error the tx rolls back, else it commits.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
