package hub

import (
	"sync"
	"time"
)

// Room groups the clients whose sessions belong to one contest, so contest
// lifecycle events from the event bus can be fanned out without scanning
// every connection.
type Room struct {
	ContestID string
	CreatedAt time.Time

	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewRoom(contestID string) *Room {
	return &Room{
		ContestID: contestID,
		CreatedAt: time.Now(),
		clients:   make(map[*Client]bool),
	}
}

func (r *Room) AddClient(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client] = true
}

func (r *Room) RemoveClient(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, client)
}

func (r *Room) GetClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Room) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients) == 0
}

type RoomManager struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*Room),
	}
}

func (rm *RoomManager) GetRoom(contestID string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[contestID]
}

func (rm *RoomManager) JoinRoom(contestID string, client *Client) *Room {
	rm.mu.Lock()
	room, exists := rm.rooms[contestID]
	if !exists {
		room = NewRoom(contestID)
		rm.rooms[contestID] = room
	}
	rm.mu.Unlock()

	room.AddClient(client)
	return room
}

func (rm *RoomManager) LeaveRoom(contestID string, client *Client) {
	rm.mu.RLock()
	room := rm.rooms[contestID]
	rm.mu.RUnlock()

	if room == nil {
		return
	}
	room.RemoveClient(client)

	if room.IsEmpty() {
		rm.mu.Lock()
		if room.IsEmpty() {
			delete(rm.rooms, contestID)
		}
		rm.mu.Unlock()
	}
}

func (rm *RoomManager) GetStats() map[string]interface{} {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	totalClients := 0
	for _, room := range rm.rooms {
		totalClients += room.ClientCount()
	}

	return map[string]interface{}{
		"totalRooms":   len(rm.rooms),
		"totalClients": totalClients,
	}
}
