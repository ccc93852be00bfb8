package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"parking_control/internal/domain"
	"parking_control/internal/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// EventPublisher receives parking spot changes after they are committed.
type EventPublisher interface {
	PublishParkingSpotEvent(ctx context.Context, event domain.ParkingSpotEvent)
}

type ParkingSpotService struct {
	repo       repository.ParkingSpotRepository
	clock      clockwork.Clock
	publishers []EventPublisher
}

func NewParkingSpotService(repo repository.ParkingSpotRepository, clock clockwork.Clock, publishers ...EventPublisher) *ParkingSpotService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ParkingSpotService{
		repo:       repo,
		clock:      clock,
		publishers: publishers,
	}
}

// CreateParkingSpot runs the uniqueness gate and the insert in one transaction.
// Checks run in a fixed order and the first violation wins.
func (s *ParkingSpotService) CreateParkingSpot(ctx context.Context, dto domain.ParkingSpotDTO) (*domain.ParkingSpot, error) {
	var created *domain.ParkingSpot
	err := s.repo.WithinTx(ctx, func(repo repository.ParkingSpotRepository) error {
		if err := checkUniqueness(ctx, repo, dto); err != nil {
			return err
		}

		spot := dto.ToModel()
		spot.ID = uuid.New()
		spot.RegistrationDate = s.clock.Now().UTC()

		var err error
		created, err = repo.Create(ctx, spot)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("id", created.ID.String()).Str("licensePlateCar", created.LicensePlateCar).Msg("parking spot registered")
	s.publish(ctx, domain.ParkingSpotCreated, *created)
	return created, nil
}

func checkUniqueness(ctx context.Context, repo repository.ParkingSpotRepository, dto domain.ParkingSpotDTO) error {
	taken, err := repo.ExistsByLicensePlateCar(ctx, dto.LicensePlateCar)
	if err != nil {
		return fmt.Errorf("check license plate car: %w", err)
	}
	if taken {
		return repository.ErrLicensePlateTaken
	}

	taken, err = repo.ExistsByParkingSpotNumber(ctx, dto.ParkingSpotNumber)
	if err != nil {
		return fmt.Errorf("check parking spot number: %w", err)
	}
	if taken {
		return repository.ErrParkingSpotNumberTaken
	}

	taken, err = repo.ExistsByApartmentAndBlock(ctx, dto.Apartment, dto.Block)
	if err != nil {
		return fmt.Errorf("check apartment/block: %w", err)
	}
	if taken {
		return repository.ErrApartmentBlockTaken
	}
	return nil
}

func (s *ParkingSpotService) GetParkingSpotByID(ctx context.Context, id uuid.UUID) (*domain.ParkingSpot, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ParkingSpotService) GetParkingSpotByLicensePlate(ctx context.Context, licensePlateCar string) (*domain.ParkingSpot, error) {
	return s.repo.FindByLicensePlateCar(ctx, licensePlateCar)
}

func (s *ParkingSpotService) ListParkingSpots(ctx context.Context, filter domain.ParkingSpotFilter, page domain.PageRequest) (domain.Page[domain.ParkingSpot], error) {
	page = normalizePage(page)
	spots, total, err := s.repo.FindAll(ctx, filter, page)
	if err != nil {
		return domain.Page[domain.ParkingSpot]{}, err
	}
	return domain.NewPage(spots, page, total), nil
}

// UpdateParkingSpot fully replaces the mutable fields of an existing record.
// The stored id and registration date always win over the request.
func (s *ParkingSpotService) UpdateParkingSpot(ctx context.Context, id uuid.UUID, dto domain.ParkingSpotDTO) (*domain.ParkingSpot, error) {
	var updated *domain.ParkingSpot
	err := s.repo.WithinTx(ctx, func(repo repository.ParkingSpotRepository) error {
		existing, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		spot := dto.ToModel()
		spot.ID = existing.ID
		spot.RegistrationDate = existing.RegistrationDate

		updated, err = repo.Update(ctx, spot)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("id", updated.ID.String()).Msg("parking spot updated")
	s.publish(ctx, domain.ParkingSpotUpdated, *updated)
	return updated, nil
}

func (s *ParkingSpotService) DeleteParkingSpot(ctx context.Context, id uuid.UUID) error {
	var deleted *domain.ParkingSpot
	err := s.repo.WithinTx(ctx, func(repo repository.ParkingSpotRepository) error {
		existing, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, existing.ID); err != nil {
			return err
		}
		deleted = existing
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("id", id.String()).Msg("parking spot deleted")
	s.publish(ctx, domain.ParkingSpotDeleted, *deleted)
	return nil
}

func (s *ParkingSpotService) publish(ctx context.Context, eventType domain.ParkingSpotEventType, spot domain.ParkingSpot) {
	if len(s.publishers) == 0 {
		return
	}
	event := domain.ParkingSpotEvent{Type: eventType, ParkingSpot: spot, OccurredAt: s.clock.Now().UTC()}
	for _, p := range s.publishers {
		p.PublishParkingSpotEvent(ctx, event)
	}
}

func normalizePage(page domain.PageRequest) domain.PageRequest {
	if page.Page < 0 {
		page.Page = 0
	}
	if page.Size <= 0 {
		page.Size = domain.DefaultPageSize
	}
	if page.Size > domain.MaxPageSize {
		page.Size = domain.MaxPageSize
	}
	if page.Page > math.MaxInt/page.Size {
		page.Page = math.MaxInt / page.Size
	}
	if _, ok := domain.SortableFields[page.SortBy]; !ok {
		page.SortBy = domain.DefaultSortBy
	}
	if page.Direction != domain.SortDesc {
		page.Direction = domain.SortAsc
	}
	return page
}

// IsConflict reports whether err is one of the uniqueness violations.
func IsConflict(err error) bool {
	return errors.Is(err, repository.ErrDuplicateEntry)
}
