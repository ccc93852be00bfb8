package handler

import (
	"encoding/base64"
	"errors"
	"net/http"
	"parking_control/internal/domain"
	"parking_control/internal/repository"
	"parking_control/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type LPRHandler struct {
	lprService         *service.LPRService
	parkingSpotService *service.ParkingSpotService
}

func NewLPRHandler(lprService *service.LPRService, parkingSpotService *service.ParkingSpotService) *LPRHandler {
	return &LPRHandler{lprService: lprService, parkingSpotService: parkingSpotService}
}

// POST /parking-spot/lpr
func (h *LPRHandler) RecognizePlate(c *gin.Context) {
	var req domain.LPRRequestDTO
	if !bindJSON(c, &req) {
		return
	}

	imageBytes, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image is not valid base64"})
		return
	}
	if len(imageBytes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image is empty"})
		return
	}

	plate, confidence, err := h.lprService.DetectPlate(c.Request.Context(), imageBytes)
	if errors.Is(err, service.ErrPlateNotDetected) {
		c.JSON(http.StatusOK, domain.LPRResponseDTO{ErrorMessage: "No license plate recognized."})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("license plate recognition failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "License plate recognition failed", "details": err.Error()})
		return
	}

	resp := domain.LPRResponseDTO{DetectedPlate: plate, Confidence: confidence}
	spot, err := h.parkingSpotService.GetParkingSpotByLicensePlate(c.Request.Context(), plate)
	switch {
	case err == nil:
		resp.ParkingSpot = spot
	case errors.Is(err, repository.ErrNotFound):
		resp.ErrorMessage = msgParkingSpotNotFound
	default:
		writeServiceError(c, err, "Could not look up parking spot")
		return
	}
	c.JSON(http.StatusOK, resp)
}
