package models

import "time"

// LocationSample is one raw GPS ping from an engineer's device.
type LocationSample struct {
	ID         int64     `json:"id" db:"id"`
	EngineerID int64     `json:"engineer_id" db:"engineer_id"`
	Latitude   float64   `json:"latitude" db:"latitude"`
	Longitude  float64   `json:"longitude" db:"longitude"`
	Speed      *float64  `json:"speed,omitempty" db:"speed"` // m/s, nil = unknown
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
	Processed  bool      `json:"processed" db:"processed"`
}

// SpeedOrZero treats an unknown speed as standing still.
func (s *LocationSample) SpeedOrZero() float64 {
	if s.Speed == nil {
		return 0
	}
	return *s.Speed
}
