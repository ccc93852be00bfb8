package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"
)

// LicensePlatePattern matches the old (ABC1234) and Mercosul (ABC1D23) plate formats.
var LicensePlatePattern = regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z0-9][0-9]{2}$`)

type ParkingSpot struct {
	ID                uuid.UUID `json:"id"`
	ParkingSpotNumber string    `json:"parkingSpotNumber"`
	LicensePlateCar   string    `json:"licensePlateCar"`
	BrandCar          string    `json:"brandCar"`
	ModelCar          string    `json:"modelCar"`
	ColorCar          string    `json:"colorCar"`
	RegistrationDate  time.Time `json:"registrationDate"`
	ResponsibleName   string    `json:"responsibleName"`
	Apartment         string    `json:"apartment"`
	Block             string    `json:"block"`
}

// ParkingSpotDTO is the request body for create and full-replace update.
type ParkingSpotDTO struct {
	ParkingSpotNumber string `json:"parkingSpotNumber" binding:"required,notblank,max=10"`
	LicensePlateCar   string `json:"licensePlateCar" binding:"required,notblank,licenseplate"`
	BrandCar          string `json:"brandCar" binding:"required,notblank,max=70"`
	ModelCar          string `json:"modelCar" binding:"required,notblank,max=70"`
	ColorCar          string `json:"colorCar" binding:"required,notblank,max=70"`
	ResponsibleName   string `json:"responsibleName" binding:"required,notblank,max=130"`
	Apartment         string `json:"apartment" binding:"required,notblank,max=30"`
	Block             string `json:"block" binding:"required,notblank,max=30"`
}

// ToModel copies every DTO field onto a new ParkingSpot. ID and RegistrationDate stay zero.
func (dto ParkingSpotDTO) ToModel() *ParkingSpot {
	return &ParkingSpot{
		ParkingSpotNumber: dto.ParkingSpotNumber,
		LicensePlateCar:   dto.LicensePlateCar,
		BrandCar:          dto.BrandCar,
		ModelCar:          dto.ModelCar,
		ColorCar:          dto.ColorCar,
		ResponsibleName:   dto.ResponsibleName,
		Apartment:         dto.Apartment,
		Block:             dto.Block,
	}
}

type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 2000
	DefaultSortBy   = "id"
)

// SortableFields maps JSON field names accepted in ?sort= to column names.
var SortableFields = map[string]string{
	"id":                "id",
	"parkingSpotNumber": "parking_spot_number",
	"licensePlateCar":   "license_plate_car",
	"brandCar":          "brand_car",
	"modelCar":          "model_car",
	"colorCar":          "color_car",
	"registrationDate":  "registration_date",
	"responsibleName":   "responsible_name",
	"apartment":         "apartment",
	"block":             "block",
}

// PageRequest describes one page of a sorted listing. Page is zero based.
type PageRequest struct {
	Page      int
	Size      int
	SortBy    string
	Direction SortDirection
}

func DefaultPageRequest() PageRequest {
	return PageRequest{Page: 0, Size: DefaultPageSize, SortBy: DefaultSortBy, Direction: SortAsc}
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// SortColumn returns the column for SortBy, falling back to id.
func (p PageRequest) SortColumn() string {
	if col, ok := SortableFields[p.SortBy]; ok {
		return col
	}
	return SortableFields[DefaultSortBy]
}

// ParkingSpotFilter narrows a listing; unset fields match everything.
type ParkingSpotFilter struct {
	Apartment null.String
	Block     null.String
}

type Page[T any] struct {
	Content          []T    `json:"content"`
	Number           int    `json:"number"`
	Size             int    `json:"size"`
	TotalElements    int64  `json:"totalElements"`
	TotalPages       int    `json:"totalPages"`
	NumberOfElements int    `json:"numberOfElements"`
	First            bool   `json:"first"`
	Last             bool   `json:"last"`
	Empty            bool   `json:"empty"`
	Sort             string `json:"sort"`
}

func NewPage[T any](content []T, req PageRequest, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:          content,
		Number:           req.Page,
		Size:             req.Size,
		TotalElements:    total,
		TotalPages:       totalPages,
		NumberOfElements: len(content),
		First:            req.Page == 0,
		Last:             req.Page+1 >= totalPages,
		Empty:            len(content) == 0,
		Sort:             req.SortBy + ": " + string(req.Direction),
	}
}
