// Package domain contains entity types without logic, just meta-data.
package domain

type (
	// ConnID identifies one websocket connection for its whole lifetime.
	ConnID string

	// RoomID is chosen by clients; rooms are never pre-registered.
	RoomID string

	UserID string
)
