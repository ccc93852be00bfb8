package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"parking_control/internal/domain"
	"parking_control/internal/repository"
	"strings"
	"time"

	"github.com/google/uuid"
)

const parkingSpotColumns = `id, parking_spot_number, license_plate_car, brand_car, model_car, color_car,
	registration_date, responsible_name, apartment, block`

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgParkingSpotRepository struct {
	db *sql.DB // nil when bound to a transaction
	q  dbtx
}

func NewPgParkingSpotRepository(db *sql.DB) repository.ParkingSpotRepository {
	return &pgParkingSpotRepository{db: db, q: db}
}

func (r *pgParkingSpotRepository) WithinTx(ctx context.Context, fn func(repo repository.ParkingSpotRepository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return repository.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&pgParkingSpotRepository{q: tx})
	})
}

// Create returns the row as stored, so registration_date carries the column's precision.
func (r *pgParkingSpotRepository) Create(ctx context.Context, spot *domain.ParkingSpot) (*domain.ParkingSpot, error) {
	query := `INSERT INTO parking_spots (` + parkingSpotColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING ` + parkingSpotColumns
	created, err := scanParkingSpot(r.q.QueryRowContext(ctx, query,
		spot.ID, spot.ParkingSpotNumber, spot.LicensePlateCar, spot.BrandCar, spot.ModelCar, spot.ColorCar,
		spot.RegistrationDate, spot.ResponsibleName, spot.Apartment, spot.Block,
	))
	if err != nil {
		if dup := mapSpotConstraint(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("ParkingSpotRepository.Create: %w", err)
	}
	return created, nil
}

func (r *pgParkingSpotRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ParkingSpot, error) {
	query := `SELECT ` + parkingSpotColumns + ` FROM parking_spots WHERE id = $1`
	spot, err := scanParkingSpot(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingSpotRepository.FindByID: %w", err)
	}
	return spot, nil
}

func (r *pgParkingSpotRepository) FindByLicensePlateCar(ctx context.Context, licensePlateCar string) (*domain.ParkingSpot, error) {
	query := `SELECT ` + parkingSpotColumns + ` FROM parking_spots WHERE license_plate_car = $1`
	spot, err := scanParkingSpot(r.q.QueryRowContext(ctx, query, licensePlateCar))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingSpotRepository.FindByLicensePlateCar: %w", err)
	}
	return spot, nil
}

func (r *pgParkingSpotRepository) FindAll(ctx context.Context, filter domain.ParkingSpotFilter, page domain.PageRequest) ([]domain.ParkingSpot, int64, error) {
	var conditions []string
	var args []any
	if filter.Apartment.Valid {
		args = append(args, filter.Apartment.String)
		conditions = append(conditions, fmt.Sprintf("apartment = $%d", len(args)))
	}
	if filter.Block.Valid {
		args = append(args, filter.Block.String)
		conditions = append(conditions, fmt.Sprintf("block = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_spots`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ParkingSpotRepository.FindAll (count): %w", err)
	}

	direction := domain.SortAsc
	if page.Direction == domain.SortDesc {
		direction = domain.SortDesc
	}
	query := fmt.Sprintf(`SELECT %s FROM parking_spots%s ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d`,
		parkingSpotColumns, where, page.SortColumn(), direction, len(args)+1, len(args)+2)
	args = append(args, page.Size, page.Offset())

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ParkingSpotRepository.FindAll: %w", err)
	}
	defer rows.Close()

	spots := make([]domain.ParkingSpot, 0, page.Size)
	for rows.Next() {
		spot, err := scanParkingSpot(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ParkingSpotRepository.FindAll (scanning row): %w", err)
		}
		spots = append(spots, *spot)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ParkingSpotRepository.FindAll (rows error): %w", err)
	}
	return spots, total, nil
}

// Update replaces every mutable column. registration_date is never written.
func (r *pgParkingSpotRepository) Update(ctx context.Context, spot *domain.ParkingSpot) (*domain.ParkingSpot, error) {
	query := `UPDATE parking_spots
	          SET parking_spot_number = $1, license_plate_car = $2, brand_car = $3, model_car = $4,
	              color_car = $5, responsible_name = $6, apartment = $7, block = $8
	          WHERE id = $9
	          RETURNING ` + parkingSpotColumns
	updated, err := scanParkingSpot(r.q.QueryRowContext(ctx, query,
		spot.ParkingSpotNumber, spot.LicensePlateCar, spot.BrandCar, spot.ModelCar,
		spot.ColorCar, spot.ResponsibleName, spot.Apartment, spot.Block, spot.ID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		if dup := mapSpotConstraint(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("ParkingSpotRepository.Update: %w", err)
	}
	return updated, nil
}

func (r *pgParkingSpotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM parking_spots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ParkingSpotRepository.Delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ParkingSpotRepository.Delete (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *pgParkingSpotRepository) ExistsByLicensePlateCar(ctx context.Context, licensePlateCar string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM parking_spots WHERE license_plate_car = $1)`, licensePlateCar)
}

func (r *pgParkingSpotRepository) ExistsByParkingSpotNumber(ctx context.Context, parkingSpotNumber string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM parking_spots WHERE parking_spot_number = $1)`, parkingSpotNumber)
}

func (r *pgParkingSpotRepository) ExistsByApartmentAndBlock(ctx context.Context, apartment, block string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM parking_spots WHERE apartment = $1 AND block = $2)`, apartment, block)
}

func (r *pgParkingSpotRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("ParkingSpotRepository.exists: %w", err)
	}
	return found, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParkingSpot(row rowScanner) (*domain.ParkingSpot, error) {
	spot := &domain.ParkingSpot{}
	err := row.Scan(
		&spot.ID, &spot.ParkingSpotNumber, &spot.LicensePlateCar, &spot.BrandCar, &spot.ModelCar, &spot.ColorCar,
		&spot.RegistrationDate, &spot.ResponsibleName, &spot.Apartment, &spot.Block,
	)
	if err != nil {
		return nil, err
	}
	spot.RegistrationDate = spot.RegistrationDate.In(time.UTC)
	return spot, nil
}

func mapSpotConstraint(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	switch constraint {
	case "parking_spots_license_plate_car_key":
		return repository.ErrLicensePlateTaken
	case "parking_spots_parking_spot_number_key":
		return repository.ErrParkingSpotNumberTaken
	case "parking_spots_apartment_block_key":
		return repository.ErrApartmentBlockTaken
	default:
		return fmt.Errorf("%w: constraint %s", repository.ErrDuplicateEntry, constraint)
	}
}
