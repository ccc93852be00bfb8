package handler

import (
	"errors"
	"math"
	"net/http"
	"parking_control/internal/api/validation"
	"parking_control/internal/domain"
	"parking_control/internal/repository"
	"parking_control/internal/service"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/guregu/null.v4"
)

const (
	msgParkingSpotNotFound = "Parking spot not found."
	msgParkingSpotDeleted  = "Parking spot deleted successfully"
)

var conflictMessages = []struct {
	err error
	msg string
}{
	{repository.ErrLicensePlateTaken, "Conflict: License plate car is already in use!"},
	{repository.ErrParkingSpotNumberTaken, "Conflict: Parking spot is already in use"},
	{repository.ErrApartmentBlockTaken, "Conflict: Parking spot already registered for this apartment/block"},
}

type ParkingSpotHandler struct {
	parkingSpotService *service.ParkingSpotService
}

func NewParkingSpotHandler(ps *service.ParkingSpotService) *ParkingSpotHandler {
	return &ParkingSpotHandler{parkingSpotService: ps}
}

// POST /parking-spot
func (h *ParkingSpotHandler) CreateParkingSpot(c *gin.Context) {
	var dto domain.ParkingSpotDTO
	if !bindJSON(c, &dto) {
		return
	}

	spot, err := h.parkingSpotService.CreateParkingSpot(c.Request.Context(), dto)
	if err != nil {
		writeServiceError(c, err, "Could not register parking spot")
		return
	}
	c.JSON(http.StatusCreated, spot)
}

// GET /parking-spot
func (h *ParkingSpotHandler) GetAllParkingSpots(c *gin.Context) {
	page, err := parsePageRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter := domain.ParkingSpotFilter{
		Apartment: queryString(c, "apartment"),
		Block:     queryString(c, "block"),
	}

	result, err := h.parkingSpotService.ListParkingSpots(c.Request.Context(), filter, page)
	if err != nil {
		writeServiceError(c, err, "Could not list parking spots")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /parking-spot/:id
func (h *ParkingSpotHandler) GetParkingSpotByID(c *gin.Context) {
	id, ok := parseSpotID(c)
	if !ok {
		return
	}
	spot, err := h.parkingSpotService.GetParkingSpotByID(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err, "Could not load parking spot")
		return
	}
	c.JSON(http.StatusOK, spot)
}

// PUT /parking-spot/:id
func (h *ParkingSpotHandler) UpdateParkingSpot(c *gin.Context) {
	id, ok := parseSpotID(c)
	if !ok {
		return
	}
	var dto domain.ParkingSpotDTO
	if !bindJSON(c, &dto) {
		return
	}

	spot, err := h.parkingSpotService.UpdateParkingSpot(c.Request.Context(), id, dto)
	if err != nil {
		writeServiceError(c, err, "Could not update parking spot")
		return
	}
	c.JSON(http.StatusOK, spot)
}

// DELETE /parking-spot/:id
func (h *ParkingSpotHandler) DeleteParkingSpot(c *gin.Context) {
	id, ok := parseSpotID(c)
	if !ok {
		return
	}
	if err := h.parkingSpotService.DeleteParkingSpot(c.Request.Context(), id); err != nil {
		writeServiceError(c, err, "Could not delete parking spot")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgParkingSpotDeleted})
}

func bindJSON(c *gin.Context, dto interface{}) bool {
	if err := c.ShouldBindJSON(dto); err != nil {
		body := gin.H{"error": "Invalid request body"}
		if fields := validation.Describe(err); fields != nil {
			body["error"] = "Validation failed"
			body["fields"] = fields
		} else {
			body["details"] = err.Error()
		}
		c.JSON(http.StatusBadRequest, body)
		return false
	}
	return true
}

func parseSpotID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parking spot id"})
		return uuid.Nil, false
	}
	return id, true
}

func writeServiceError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgParkingSpotNotFound})
		return
	}
	for _, cm := range conflictMessages {
		if errors.Is(err, cm.err) {
			c.JSON(http.StatusConflict, gin.H{"error": cm.msg})
			return
		}
	}
	if errors.Is(err, repository.ErrDuplicateEntry) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback, "details": err.Error()})
}

// parsePageRequest reads page, size and sort=field[,asc|desc].
func parsePageRequest(c *gin.Context) (domain.PageRequest, error) {
	page := domain.DefaultPageRequest()

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, errors.New("page must be a non-negative integer")
		}
		page.Page = n
	}
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, errors.New("size must be a positive integer")
		}
		if n > domain.MaxPageSize {
			n = domain.MaxPageSize
		}
		page.Size = n
	}
	if page.Page > math.MaxInt/page.Size {
		return page, errors.New("page is too large")
	}
	if raw := c.Query("sort"); raw != "" {
		parts := strings.Split(raw, ",")
		field := strings.TrimSpace(parts[0])
		if _, ok := domain.SortableFields[field]; !ok {
			return page, errors.New("unknown sort field: " + field)
		}
		page.SortBy = field
		if len(parts) > 1 {
			switch strings.ToUpper(strings.TrimSpace(parts[1])) {
			case string(domain.SortAsc):
				page.Direction = domain.SortAsc
			case string(domain.SortDesc):
				page.Direction = domain.SortDesc
			default:
				return page, errors.New("sort direction must be asc or desc")
			}
		}
	}
	return page, nil
}

func queryString(c *gin.Context, key string) null.String {
	if v, ok := c.GetQuery(key); ok && v != "" {
		return null.StringFrom(v)
	}
	return null.String{}
}
