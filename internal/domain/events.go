package domain

import "time"

type ParkingSpotEventType string

const (
	ParkingSpotCreated ParkingSpotEventType = "parking_spot.created"
	ParkingSpotUpdated ParkingSpotEventType = "parking_spot.updated"
	ParkingSpotDeleted ParkingSpotEventType = "parking_spot.deleted"
)

// ParkingSpotEvent is pushed to websocket clients and the IoT events topic.
type ParkingSpotEvent struct {
	Type        ParkingSpotEventType `json:"type"`
	ParkingSpot ParkingSpot          `json:"parkingSpot"`
	OccurredAt  time.Time            `json:"occurredAt"`
}
