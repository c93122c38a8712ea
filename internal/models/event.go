package models

import "time"

// EventType discriminates the two activity segment kinds.
type EventType string

const (
	EventStop  EventType = "stop"
	EventDrive EventType = "drive"
)

// StopDetail holds the fields specific to a dwell segment.
type StopDetail struct {
	Latitude  float64 `json:"latitude" db:"latitude"`   // centroid of the contributing samples
	Longitude float64 `json:"longitude" db:"longitude"`
	Address   string  `json:"address,omitempty" db:"address"`
}

// DriveDetail holds the fields specific to a movement segment.
type DriveDetail struct {
	DistanceKm     float64 `json:"distance_km" db:"distance_km"`
	TopSpeedKmh    float64 `json:"top_speed_kmh" db:"top_speed_kmh"`
	StartLatitude  float64 `json:"start_latitude" db:"start_latitude"`
	StartLongitude float64 `json:"start_longitude" db:"start_longitude"`
	EndLatitude    float64 `json:"end_latitude" db:"end_latitude"`
	EndLongitude   float64 `json:"end_longitude" db:"end_longitude"`
	StartAddress   string  `json:"start_address,omitempty" db:"start_address"`
	EndAddress     string  `json:"end_address,omitempty" db:"end_address"`
}

// ActivityEvent is a derived Stop or Drive segment. Exactly one of Stop and
// Drive is set, matching Type. Events are append-only once created.
type ActivityEvent struct {
	ID          int64     `json:"id" db:"id"`
	EngineerID  int64     `json:"engineer_id" db:"engineer_id"`
	Type        EventType `json:"type" db:"event_type"`
	StartTime   time.Time `json:"start_time" db:"start_time"`
	EndTime     time.Time `json:"end_time" db:"end_time"`
	DurationMin int       `json:"duration_min" db:"duration_min"` // truncated, not rounded

	Stop  *StopDetail  `json:"stop,omitempty"`
	Drive *DriveDetail `json:"drive,omitempty"`
}
