package storage

import (
	"time"

	"github.com/google/uuid"
)

// Reading is one archived parameter observation.
type Reading struct {
	ID        uuid.UUID `json:"id"`
	Module    string    `json:"module"`
	Parameter string    `json:"parameter"`
	Channel   int       `json:"channel"`
	Digital   *int64    `json:"digital,omitempty"` // raw bitfield, digital parameters
	Analog    *float64  `json:"analog,omitempty"`  // engineering value, analog parameters
	TakenAt   time.Time `json:"taken_at"`
}

// ModuleEvent records an operator action or a state change worth keeping
// (setpoint writes, event clears, trips seen in status words).
type ModuleEvent struct {
	ID        uuid.UUID `json:"id"`
	Module    string    `json:"module"`
	Kind      string    `json:"kind"`
	Parameter string    `json:"parameter,omitempty"`
	Channel   int       `json:"channel"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
