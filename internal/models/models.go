// Package models holds the shared document and account types.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User represents an account able to own and collaborate on rooms.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	CreatedAt    time.Time `json:"createdAt"`
}

// Component is one element on a view canvas. Properties is free-form and
// interpreted only by clients and the code generator.
type Component struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	X          float64                `json:"x"`
	Y          float64                `json:"y"`
	Width      float64                `json:"width"`
	Height     float64                `json:"height"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// View is one screen of the designed application.
type View struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	BackgroundColor string      `json:"backgroundColor,omitempty"`
	Components      []Component `json:"components"`
}

// Room is a collaborative design document: a named tree of views owned by
// one user and shared with collaborators. Live mutation events are relayed
// out-of-band; the persisted document is replaced wholesale on save.
type Room struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	OwnerID       uuid.UUID   `json:"ownerId"`
	Collaborators []uuid.UUID `json:"collaborators"`
	AccessCode    string      `json:"accessCode"`
	Views         []View      `json:"views"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// ViewsJSON serializes the view tree for storage in a jsonb column.
func (r *Room) ViewsJSON() ([]byte, error) {
	if r.Views == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Views)
}

// HasAccess reports whether the user owns the room or collaborates on it.
func (r *Room) HasAccess(userID uuid.UUID) bool {
	if r.OwnerID == userID {
		return true
	}
	for _, c := range r.Collaborators {
		if c == userID {
			return true
		}
	}
	return false
}
