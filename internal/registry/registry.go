// Package registry indexes live push connections by id, user and quiz room.
package registry

import (
	"log"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// Registry is process-local and safe for concurrent use. State is lost on restart;
// clients re-register when they reconnect.
//
// Connection and user indexes share one lock, rooms have their own, and no
// method holds both at once.
type Registry struct {
	now func() time.Time

	mu          sync.RWMutex
	connections map[string]domain.Connection
	users       map[string]domain.Connection

	roomsMu sync.RWMutex
	rooms   map[string]map[string]struct{}
}

func New() *Registry {
	return NewWithClock(time.Now)
}

// NewWithClock allows deterministic connected-at timestamps in tests.
func NewWithClock(now func() time.Time) *Registry {
	return &Registry{
		now:         now,
		connections: make(map[string]domain.Connection),
		users:       make(map[string]domain.Connection),
		rooms:       make(map[string]map[string]struct{}),
	}
}

// Join upserts connectionID into all three indexes. The user mapping is
// most-recent-wins: an older connection of the same user stays in the other
// indexes until it disconnects.
func (r *Registry) Join(connectionID, quizID, userID string) domain.Connection {
	conn := domain.Connection{
		ID:          connectionID,
		UserID:      userID,
		QuizID:      quizID,
		ConnectedAt: r.now(),
	}

	r.mu.Lock()
	prev, existed := r.connections[connectionID]
	r.connections[connectionID] = conn
	r.users[userID] = conn
	r.mu.Unlock()

	// A connection sits in one room at a time.
	if existed && prev.QuizID != quizID {
		r.Leave(connectionID, prev.QuizID)
	}

	r.roomsMu.Lock()
	room, ok := r.rooms[quizID]
	if !ok {
		room = make(map[string]struct{})
		r.rooms[quizID] = room
	}
	room[connectionID] = struct{}{}
	r.roomsMu.Unlock()

	log.Printf("registry: user %s joined quiz %s on connection %s", userID, quizID, connectionID)
	return conn
}

// Leave removes connectionID from the room and drops the room once empty.
func (r *Registry) Leave(connectionID, quizID string) {
	r.roomsMu.Lock()
	if room, ok := r.rooms[quizID]; ok {
		delete(room, connectionID)
		if len(room) == 0 {
			delete(r.rooms, quizID)
		}
	}
	r.roomsMu.Unlock()
}

// Disconnect leaves the connection's room and forgets the connection. The user
// mapping is cleared only if it still points at this connection.
func (r *Registry) Disconnect(connectionID string) {
	r.mu.RLock()
	conn, ok := r.connections[connectionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	r.Leave(connectionID, conn.QuizID)

	r.mu.Lock()
	delete(r.connections, connectionID)
	if current, ok := r.users[conn.UserID]; ok && current.ID == connectionID {
		delete(r.users, conn.UserID)
	}
	r.mu.Unlock()

	log.Printf("registry: connection %s removed", connectionID)
}

// ConnectionsInRoom returns a snapshot of the room's connection ids; empty if unknown.
func (r *Registry) ConnectionsInRoom(quizID string) []string {
	r.roomsMu.RLock()
	defer r.roomsMu.RUnlock()
	room := r.rooms[quizID]
	ids := make([]string, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	return ids
}

// ConnectionForUser returns the user's most recent connection.
func (r *Registry) ConnectionForUser(userID string) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.users[userID]
	return conn, ok
}

// ConnectionByID looks up a connection.
func (r *Registry) ConnectionByID(connectionID string) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[connectionID]
	return conn, ok
}
