package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"parking_control/internal/domain"
	"parking_control/internal/repository"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"
)

func newTestRepo(t *testing.T) repository.ParkingSpotRepository {
	t.Helper()
	db, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewParkingSpotRepository(db)
}

func newSpot(n int) *domain.ParkingSpot {
	return &domain.ParkingSpot{
		ID:                uuid.New(),
		ParkingSpotNumber: fmt.Sprintf("%d", n),
		LicensePlateCar:   fmt.Sprintf("ABC%04d", n),
		BrandCar:          "Fiat",
		ModelCar:          "Uno",
		ColorCar:          "Red",
		RegistrationDate:  time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC),
		ResponsibleName:   "Maria",
		Apartment:         fmt.Sprintf("%d", 100+n),
		Block:             "A",
	}
}

func TestCreateAndFindByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	spot := newSpot(1)

	created, err := repo.Create(ctx, spot)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	found, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !found.RegistrationDate.Equal(spot.RegistrationDate) {
		t.Errorf("RegistrationDate = %v, want %v", found.RegistrationDate, spot.RegistrationDate)
	}
	found.RegistrationDate = spot.RegistrationDate
	if *found != *spot {
		t.Errorf("FindByID = %+v, want %+v", found, spot)
	}

	byPlate, err := repo.FindByLicensePlateCar(ctx, spot.LicensePlateCar)
	if err != nil {
		t.Fatalf("FindByLicensePlateCar: %v", err)
	}
	if byPlate.ID != spot.ID {
		t.Errorf("FindByLicensePlateCar id = %s, want %s", byPlate.ID, spot.ID)
	}

	if _, err := repo.FindByID(ctx, uuid.New()); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("FindByID unknown id error = %v, want ErrNotFound", err)
	}
}

func TestExistsPredicates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	spot := newSpot(1)
	if _, err := repo.Create(ctx, spot); err != nil {
		t.Fatalf("Create: %v", err)
	}

	checks := []struct {
		name string
		fn   func() (bool, error)
		want bool
	}{
		{"plate taken", func() (bool, error) { return repo.ExistsByLicensePlateCar(ctx, spot.LicensePlateCar) }, true},
		{"plate free", func() (bool, error) { return repo.ExistsByLicensePlateCar(ctx, "ZZZ9999") }, false},
		{"number taken", func() (bool, error) { return repo.ExistsByParkingSpotNumber(ctx, spot.ParkingSpotNumber) }, true},
		{"number free", func() (bool, error) { return repo.ExistsByParkingSpotNumber(ctx, "999") }, false},
		{"apartment block taken", func() (bool, error) { return repo.ExistsByApartmentAndBlock(ctx, spot.Apartment, spot.Block) }, true},
		{"same apartment other block", func() (bool, error) { return repo.ExistsByApartmentAndBlock(ctx, spot.Apartment, "B") }, false},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.fn()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestCreateMapsUniqueConstraints(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.Create(ctx, newSpot(1)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(s *domain.ParkingSpot)
		want   error
	}{
		{"license plate", func(s *domain.ParkingSpot) { s.LicensePlateCar = "ABC0001" }, repository.ErrLicensePlateTaken},
		{"spot number", func(s *domain.ParkingSpot) { s.ParkingSpotNumber = "1" }, repository.ErrParkingSpotNumberTaken},
		{"apartment block", func(s *domain.ParkingSpot) { s.Apartment, s.Block = "101", "A" }, repository.ErrApartmentBlockTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spot := newSpot(2)
			tt.mutate(spot)
			_, err := repo.Create(ctx, spot)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Create error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, repository.ErrDuplicateEntry) {
				t.Errorf("error %v should wrap ErrDuplicateEntry", err)
			}
		})
	}
}

func TestFindAllPagingAndSorting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var ids []string
	for i := 1; i <= 12; i++ {
		spot := newSpot(i)
		if i > 6 {
			spot.Block = "B"
		}
		if _, err := repo.Create(ctx, spot); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		ids = append(ids, spot.ID.String())
	}
	sort.Strings(ids)

	spots, total, err := repo.FindAll(ctx, domain.ParkingSpotFilter{}, domain.DefaultPageRequest())
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if total != 12 {
		t.Errorf("total = %d, want 12", total)
	}
	if len(spots) != domain.DefaultPageSize {
		t.Fatalf("len = %d, want %d", len(spots), domain.DefaultPageSize)
	}
	for i, s := range spots {
		if s.ID.String() != ids[i] {
			t.Errorf("spots[%d].ID = %s, want %s", i, s.ID, ids[i])
		}
	}

	second := domain.DefaultPageRequest()
	second.Page = 1
	spots, _, err = repo.FindAll(ctx, domain.ParkingSpotFilter{}, second)
	if err != nil {
		t.Fatalf("FindAll page 1: %v", err)
	}
	if len(spots) != 2 || spots[0].ID.String() != ids[10] {
		t.Errorf("page 1 = %d spots starting %v, want 2 starting %s", len(spots), spots, ids[10])
	}

	byNumberDesc := domain.PageRequest{Page: 0, Size: 3, SortBy: "parkingSpotNumber", Direction: domain.SortDesc}
	spots, _, err = repo.FindAll(ctx, domain.ParkingSpotFilter{}, byNumberDesc)
	if err != nil {
		t.Fatalf("FindAll desc: %v", err)
	}
	// TEXT ordering: "9" > "8" > "7" > "12" > ...
	want := []string{"9", "8", "7"}
	for i, s := range spots {
		if s.ParkingSpotNumber != want[i] {
			t.Errorf("desc[%d] = %s, want %s", i, s.ParkingSpotNumber, want[i])
		}
	}

	filtered, total, err := repo.FindAll(ctx, domain.ParkingSpotFilter{Block: null.StringFrom("B")}, domain.DefaultPageRequest())
	if err != nil {
		t.Fatalf("FindAll filtered: %v", err)
	}
	if total != 6 || len(filtered) != 6 {
		t.Errorf("filtered total=%d len=%d, want 6/6", total, len(filtered))
	}
	for _, s := range filtered {
		if s.Block != "B" {
			t.Errorf("filter leaked block %q", s.Block)
		}
	}
}

func TestUpdateKeepsRegistrationDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	spot := newSpot(1)
	if _, err := repo.Create(ctx, spot); err != nil {
		t.Fatalf("Create: %v", err)
	}

	replacement := newSpot(5)
	replacement.ID = spot.ID
	replacement.RegistrationDate = time.Now()
	updated, err := repo.Update(ctx, replacement)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.RegistrationDate.Equal(spot.RegistrationDate) {
		t.Errorf("RegistrationDate = %v, want %v", updated.RegistrationDate, spot.RegistrationDate)
	}
	if updated.LicensePlateCar != replacement.LicensePlateCar {
		t.Errorf("LicensePlateCar = %s, want %s", updated.LicensePlateCar, replacement.LicensePlateCar)
	}

	missing := newSpot(7)
	if _, err := repo.Update(ctx, missing); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Update unknown id error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	spot := newSpot(1)
	if _, err := repo.Create(ctx, spot); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, spot.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, spot.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestWithinTxRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	spot := newSpot(1)
	boom := errors.New("boom")

	err := repo.WithinTx(ctx, func(tx repository.ParkingSpotRepository) error {
		if _, err := tx.Create(ctx, spot); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx error = %v, want boom", err)
	}
	if _, err := repo.FindByID(ctx, spot.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("record survived rollback: err = %v", err)
	}
}
