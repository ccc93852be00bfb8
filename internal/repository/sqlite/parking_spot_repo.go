package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"parking_control/internal/domain"
	"parking_control/internal/repository"
	"strings"

	"github.com/google/uuid"
)

const parkingSpotColumns = `id, parking_spot_number, license_plate_car, brand_car, model_car, color_car,
	registration_date, responsible_name, apartment, block`

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type parkingSpotRepository struct {
	db *sql.DB // nil when bound to a transaction
	q  dbtx
}

func NewParkingSpotRepository(db *sql.DB) repository.ParkingSpotRepository {
	return &parkingSpotRepository{db: db, q: db}
}

func (r *parkingSpotRepository) WithinTx(ctx context.Context, fn func(repo repository.ParkingSpotRepository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return repository.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&parkingSpotRepository{q: tx})
	})
}

func (r *parkingSpotRepository) Create(ctx context.Context, spot *domain.ParkingSpot) (*domain.ParkingSpot, error) {
	query := `INSERT INTO parking_spots (` + parkingSpotColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		spot.ID.String(), spot.ParkingSpotNumber, spot.LicensePlateCar, spot.BrandCar, spot.ModelCar, spot.ColorCar,
		formatTime(spot.RegistrationDate), spot.ResponsibleName, spot.Apartment, spot.Block,
	)
	if err != nil {
		if dup := mapSpotConstraint(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("ParkingSpotRepository.Create: %w", err)
	}
	return r.FindByID(ctx, spot.ID)
}

func (r *parkingSpotRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ParkingSpot, error) {
	query := `SELECT ` + parkingSpotColumns + ` FROM parking_spots WHERE id = ?`
	spot, err := scanParkingSpot(r.q.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingSpotRepository.FindByID: %w", err)
	}
	return spot, nil
}

func (r *parkingSpotRepository) FindByLicensePlateCar(ctx context.Context, licensePlateCar string) (*domain.ParkingSpot, error) {
	query := `SELECT ` + parkingSpotColumns + ` FROM parking_spots WHERE license_plate_car = ?`
	spot, err := scanParkingSpot(r.q.QueryRowContext(ctx, query, licensePlateCar))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingSpotRepository.FindByLicensePlateCar: %w", err)
	}
	return spot, nil
}

func (r *parkingSpotRepository) FindAll(ctx context.Context, filter domain.ParkingSpotFilter, page domain.PageRequest) ([]domain.ParkingSpot, int64, error) {
	var conditions []string
	var args []any
	if filter.Apartment.Valid {
		conditions = append(conditions, "apartment = ?")
		args = append(args, filter.Apartment.String)
	}
	if filter.Block.Valid {
		conditions = append(conditions, "block = ?")
		args = append(args, filter.Block.String)
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
	query := fmt.Sprintf(`SELECT %s FROM parking_spots%s ORDER BY %s %s, id ASC LIMIT ? OFFSET ?`,
		parkingSpotColumns, where, page.SortColumn(), direction)
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
func (r *parkingSpotRepository) Update(ctx context.Context, spot *domain.ParkingSpot) (*domain.ParkingSpot, error) {
	query := `UPDATE parking_spots
	          SET parking_spot_number = ?, license_plate_car = ?, brand_car = ?, model_car = ?,
	              color_car = ?, responsible_name = ?, apartment = ?, block = ?
	          WHERE id = ?`
	result, err := r.q.ExecContext(ctx, query,
		spot.ParkingSpotNumber, spot.LicensePlateCar, spot.BrandCar, spot.ModelCar,
		spot.ColorCar, spot.ResponsibleName, spot.Apartment, spot.Block, spot.ID.String(),
	)
	if err != nil {
		if dup := mapSpotConstraint(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("ParkingSpotRepository.Update: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("ParkingSpotRepository.Update (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return nil, repository.ErrNotFound
	}
	return r.FindByID(ctx, spot.ID)
}

func (r *parkingSpotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM parking_spots WHERE id = ?`, id.String())
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

func (r *parkingSpotRepository) ExistsByLicensePlateCar(ctx context.Context, licensePlateCar string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM parking_spots WHERE license_plate_car = ?)`, licensePlateCar)
}

func (r *parkingSpotRepository) ExistsByParkingSpotNumber(ctx context.Context, parkingSpotNumber string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM parking_spots WHERE parking_spot_number = ?)`, parkingSpotNumber)
}

func (r *parkingSpotRepository) ExistsByApartmentAndBlock(ctx context.Context, apartment, block string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM parking_spots WHERE apartment = ? AND block = ?)`, apartment, block)
}

func (r *parkingSpotRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found int64
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("ParkingSpotRepository.exists: %w", err)
	}
	return found != 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParkingSpot(row rowScanner) (*domain.ParkingSpot, error) {
	spot := &domain.ParkingSpot{}
	var id, registrationDate string
	err := row.Scan(
		&id, &spot.ParkingSpotNumber, &spot.LicensePlateCar, &spot.BrandCar, &spot.ModelCar, &spot.ColorCar,
		&registrationDate, &spot.ResponsibleName, &spot.Apartment, &spot.Block,
	)
	if err != nil {
		return nil, err
	}
	if spot.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse stored id %q: %w", id, err)
	}
	if spot.RegistrationDate, err = parseTime(registrationDate); err != nil {
		return nil, err
	}
	return spot, nil
}

func mapSpotConstraint(err error) error {
	columns, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	switch {
	case strings.Contains(columns, "parking_spots.license_plate_car"):
		return repository.ErrLicensePlateTaken
	case strings.Contains(columns, "parking_spots.parking_spot_number"):
		return repository.ErrParkingSpotNumberTaken
	case strings.Contains(columns, "parking_spots.apartment"):
		return repository.ErrApartmentBlockTaken
	default:
		return fmt.Errorf("%w: %s", repository.ErrDuplicateEntry, columns)
	}
}
