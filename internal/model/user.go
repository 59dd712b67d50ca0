// Package model defines the entities musophile stores: users, recordings,
// playlists and tags. JSON tags are the API's wire names.
package model

import "time"

// DefaultImageURL is the profile picture shown when a user registers without one.
const DefaultImageURL = "https://www.seaside3ny.com/wp/wp-content/uploads/seaside3ny.com/2015/09/Camera-Shy.png"

// Roles is the closed set of answers to "what is your relationship with music?".
// Registration rejects anything outside it.
var Roles = []string{
	"Student",
	"Professor/Academic",
	"Music Teacher (K-12)",
	"Music Teacher (Private)",
	"DJ",
	"Composer/Arranger",
	"Music Producer",
	"Audio Engineer",
	"Performer (vocals)",
	"Performer (instrument)",
	"Label Representative",
	"Music Fan",
	"Other",
}

// ValidRole reports whether role is one of Roles (exact match).
func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents a registered user account.
//
// Username and Email are each globally unique (UNIQUE constraints in the DB).
// PasswordHash holds the bcrypt output and is never serialized to JSON;
// the `json:"-"` tag keeps it out of every API response.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	Role         string    `json:"role"      db:"role"`
	ImageURL     string    `json:"imgUrl"    db:"img_url"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
