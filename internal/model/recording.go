package model

import "time"

// Recording is one song saved into a library.
//
// MBID is the metadata service's identifier. Title, Artist and Release are a
// snapshot taken when the recording was added; later upstream edits are not
// propagated. StreamingID is empty when no catalog match was chosen.
type Recording struct {
	ID          string    `json:"id"`
	MBID        string    `json:"mbid"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Release     string    `json:"release,omitempty"`
	StreamingID string    `json:"streamingId,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	Tags        []Tag     `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
