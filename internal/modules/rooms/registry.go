package rooms

import "sync"

// Registry hands out the per-room and per-player mutexes that serialize all
// game-state mutation. Lock order is room before player, never the reverse;
// a player lock is held for the whole validate-execute-score-persist span.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*sync.Mutex
	players map[string]*sync.Mutex
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]*sync.Mutex),
		players: make(map[string]*sync.Mutex),
	}
}

// RoomLock returns the mutex serializing a room's transitions.
func (r *Registry) RoomLock(roomCode string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.rooms[roomCode]
	if !ok {
		lock = &sync.Mutex{}
		r.rooms[roomCode] = lock
	}
	return lock
}

// PlayerLock returns the mutex serializing one player's updates.
func (r *Registry) PlayerLock(playerID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.players[playerID]
	if !ok {
		lock = &sync.Mutex{}
		r.players[playerID] = lock
	}
	return lock
}

// Forget drops the locks of a deleted room and its players. Callers must
// not hold any of them.
func (r *Registry) Forget(roomCode string, playerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, roomCode)
	for _, id := range playerIDs {
		delete(r.players, id)
	}
}
