package domain

import "time"

// Reaction is one ephemeral emoji on the overlay. Left is a cosmetic
// horizontal position in percent. Reactions are fire-and-forget: no
// ordering, no delivery guarantee, gone after the display TTL.
type Reaction struct {
	ID      string    `json:"id"`
	Emoji   string    `json:"emoji"`
	Left    int       `json:"left"`
	Created time.Time `json:"created"`
}
