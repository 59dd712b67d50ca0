package model

import "time"

// Tag is a free-text label, unique by exact (case-sensitive) name.
// Tag rows outlive their last association.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
