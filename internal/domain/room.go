// Package domain contains entities without logic, just meta-data.
package domain

type RoomID string

// Room is created implicitly when the first peer joins and dropped
// when the last member leaves. No persistence, no explicit teardown.
type Room struct {
	ID RoomID
}
