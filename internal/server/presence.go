package server

import "sync"

// PresenceRegistry tracks which live connections belong to which
// account so signals can be delivered to all of a user's sessions.
// Purely in-memory; clients re-join after a restart.
type PresenceRegistry struct {
	mu    sync.RWMutex
	users map[int]map[*Client]struct{}
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		users: make(map[int]map[*Client]struct{}),
	}
}

// Register adds a connection under its user's id. Registering the
// same connection twice is a no-op.
func (p *PresenceRegistry) Register(c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.users[c.user.Id] == nil {
		p.users[c.user.Id] = make(map[*Client]struct{})
	}
	p.users[c.user.Id][c] = struct{}{}
}

// Unregister removes a connection. No-op if the connection was never
// registered; removing the last connection deletes the user's entry.
func (p *PresenceRegistry) Unregister(c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conns, ok := p.users[c.user.Id]
	if !ok {
		return
	}

	delete(conns, c)
	if len(conns) == 0 {
		delete(p.users, c.user.Id)
	}
}

// ConnectionsFor returns the user's live connections; empty if the
// user is not present.
func (p *PresenceRegistry) ConnectionsFor(userId int) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conns := make([]*Client, 0, len(p.users[userId]))
	for c := range p.users[userId] {
		conns = append(conns, c)
	}
	return conns
}

func (p *PresenceRegistry) Online(userId int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.users[userId]) > 0
}

func (p *PresenceRegistry) NumOnline() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.users)
}
