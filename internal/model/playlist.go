package model

import "time"

// Playlist belongs to exactly one user. Its recordings are a set; deleting the
// playlist only removes membership edges.
type Playlist struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PlaylistDetail is a playlist with its recordings and the tags found on them.
type PlaylistDetail struct {
	Playlist
	Recordings []Recording `json:"recordings"`
	Tags       []Tag       `json:"tags"`
}
