package room

import "github.com/wfunc/atlas/models"

// Broadcaster fans events out to every subscriber of a room topic.
// This is defined here to break the import cycle between room and broadcast.
// Implementations must not block: rooms publish while holding their lock.
type Broadcaster interface {
	BroadcastToRoom(roomID string, event models.Event) error
}
