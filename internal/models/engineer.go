package models

import "time"

// Engineer is a tracked field worker.
type Engineer struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Timezone  string    `json:"timezone" db:"timezone"` // IANA name, e.g. "Asia/Jakarta"
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
