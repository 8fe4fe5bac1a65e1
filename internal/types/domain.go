// Package types defines the shared domain model for the evTrak tracking
// platform: shuttle records, position reports, transition events, the
// realtime message envelope, and the application error taxonomy. It has no
// dependencies on other internal packages so that every layer can import it.
package types

import "time"

// Shuttle mirrors a row of the shuttles table. Coordinates and the
// mirrored display attributes are nullable because a shuttle exists in the
// fleet before its device has ever reported a position.
type Shuttle struct {
	ShuttleNumber    int        `json:"shuttle_number"`
	Latitude         *float64   `json:"latitude"`
	Longitude        *float64   `json:"longitude"`
	AvailableSeats   *int       `json:"available_seats"`
	EstimatedArrival *string    `json:"estimated_arrival"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// HasPosition reports whether the shuttle has a complete last known position.
func (s *Shuttle) HasPosition() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// PositionReport is the inbound payload of a device position update
// (PUT /v1/shuttles). AvailableSeats and EstimatedArrival are optional
// display attributes mirrored through to live viewers unchanged.
type PositionReport struct {
	ShuttleNumber    int     `json:"shuttle_number" validate:"required,gt=0"`
	Latitude         float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude        float64 `json:"longitude" validate:"gte=-180,lte=180"`
	AvailableSeats   *int    `json:"available_seats,omitempty" validate:"omitempty,gte=0"`
	EstimatedArrival *string `json:"estimated_arrival,omitempty"`
}

// EntityPosition is a single accepted position observation for a tracked
// entity. The engine keys entities by an opaque string id; for shuttles the
// id is the decimal shuttle number.
type EntityPosition struct {
	EntityID   string    `json:"entity_id"`
	Longitude  float64   `json:"longitude"`
	Latitude   float64   `json:"latitude"`
	ObservedAt time.Time `json:"observed_at"`
}

// EventKind distinguishes the two geofence transition directions.
type EventKind string

const (
	EventEnter EventKind = "enter"
	EventExit  EventKind = "exit"
)

// TransitionEvent is a discrete boundary-crossing notification. It is
// constructed by the transition detector, consumed once by the publisher,
// and never persisted.
type TransitionEvent struct {
	Kind         EventKind      `json:"event"`
	GeofenceName string         `json:"geofence_name"`
	EntityID     string         `json:"entity_id"`
	NewPosition  EntityPosition `json:"new_position"`
	Timestamp    time.Time      `json:"timestamp"`
}
