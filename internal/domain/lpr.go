package domain

// LPRRequestDTO carries a base64 encoded photo of a car.
type LPRRequestDTO struct {
	ImageBase64 string `json:"imageBase64" binding:"required"`
}

type LPRResponseDTO struct {
	DetectedPlate string       `json:"detectedPlate"`
	Confidence    float32      `json:"confidence,omitempty"`
	ParkingSpot   *ParkingSpot `json:"parkingSpot,omitempty"`
	ErrorMessage  string       `json:"errorMessage,omitempty"`
}
