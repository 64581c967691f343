package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection is one live real-time attachment for a user. Connections are
// process-local and intentionally volatile: a restart clears them all, and
// callers must treat "not found" as "not connected".
type Connection struct {
	ID                string
	UserID            uuid.UUID
	ConnectedAt       time.Time
	LastHeartbeat     time.Time
	HeartbeatCount    int64
	MessagesDelivered int64
}

// Healthy reports whether the connection heartbeated within the timeout.
func (c *Connection) Healthy(now time.Time, timeout time.Duration) bool {
	return now.Sub(c.LastHeartbeat) < timeout
}

// Registry tracks live connections per user and answers "who is online".
type Registry struct {
	mu               sync.RWMutex
	conns            map[string]*Connection
	byUser           map[uuid.UUID]map[string]*Connection
	heartbeatTimeout time.Duration
	clock            func() time.Time
}

func New(heartbeatTimeout time.Duration) *Registry {
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = 60 * time.Second
	}
	return &Registry{
		conns:            make(map[string]*Connection),
		byUser:           make(map[uuid.UUID]map[string]*Connection),
		heartbeatTimeout: heartbeatTimeout,
		clock:            time.Now,
	}
}

// Register records a new connection and returns its ID.
func (r *Registry) Register(userID uuid.UUID) string {
	now := r.clock()
	conn := &Connection{
		ID:            uuid.New().String(),
		UserID:        userID,
		ConnectedAt:   now,
		LastHeartbeat: now,
	}

	r.mu.Lock()
	r.conns[conn.ID] = conn
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]*Connection)
	}
	r.byUser[userID][conn.ID] = conn
	r.mu.Unlock()

	return conn.ID
}

// Heartbeat refreshes a connection. Returns false for unknown IDs.
func (r *Registry) Heartbeat(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[connectionID]
	if !ok {
		return false
	}
	conn.LastHeartbeat = r.clock()
	conn.HeartbeatCount++
	return true
}

// Unregister removes a connection. Unknown IDs are a no-op.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(connectionID)
}

func (r *Registry) remove(connectionID string) {
	conn, ok := r.conns[connectionID]
	if !ok {
		return
	}
	delete(r.conns, connectionID)
	if userConns, ok := r.byUser[conn.UserID]; ok {
		delete(userConns, connectionID)
		if len(userConns) == 0 {
			delete(r.byUser, conn.UserID)
		}
	}
}

// IsConnected reports whether the user has at least one healthy connection.
func (r *Registry) IsConnected(userID uuid.UUID) bool {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, conn := range r.byUser[userID] {
		if conn.Healthy(now, r.heartbeatTimeout) {
			return true
		}
	}
	return false
}

// ConnectionIDs returns the healthy connection IDs for a user.
func (r *Registry) ConnectionIDs(userID uuid.UUID) []string {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byUser[userID]))
	for id, conn := range r.byUser[userID] {
		if conn.Healthy(now, r.heartbeatTimeout) {
			ids = append(ids, id)
		}
	}
	return ids
}

// ConnectedAmong filters the given users down to those currently connected.
func (r *Registry) ConnectedAmong(userIDs []uuid.UUID) []uuid.UUID {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	var online []uuid.UUID
	for _, userID := range userIDs {
		for _, conn := range r.byUser[userID] {
			if conn.Healthy(now, r.heartbeatTimeout) {
				online = append(online, userID)
				break
			}
		}
	}
	return online
}

// RecordDelivery bumps the delivered counter for a connection.
func (r *Registry) RecordDelivery(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[connectionID]; ok {
		conn.MessagesDelivered++
	}
}

// Sweep evicts connections whose heartbeat exceeded the timeout and returns
// how many were removed.
func (r *Registry) Sweep() int {
	now := r.clock()
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []string
	for id, conn := range r.conns {
		if !conn.Healthy(now, r.heartbeatTimeout) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		r.remove(id)
	}
	return len(stale)
}

// Run sweeps on an interval until the context is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Snapshot is a point-in-time view of the registry for telemetry. An empty
// registry (cold start) yields a zero snapshot, never an error.
type Snapshot struct {
	TotalConnections int            `json:"total_connections"`
	UserCount        int            `json:"user_count"`
	PerUser          map[string]int `json:"per_user"`
	AvgAgeSeconds    float64        `json:"avg_age_seconds"`
	HealthRatio      float64        `json:"health_ratio"`
}

func (r *Registry) Snapshot() Snapshot {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		TotalConnections: len(r.conns),
		UserCount:        len(r.byUser),
		PerUser:          make(map[string]int, len(r.byUser)),
	}
	if len(r.conns) == 0 {
		return snap
	}

	var ageSum float64
	healthy := 0
	for _, conn := range r.conns {
		ageSum += now.Sub(conn.ConnectedAt).Seconds()
		if conn.Healthy(now, r.heartbeatTimeout) {
			healthy++
		}
	}
	for userID, conns := range r.byUser {
		snap.PerUser[userID.String()] = len(conns)
	}
	snap.AvgAgeSeconds = ageSum / float64(len(r.conns))
	snap.HealthRatio = float64(healthy) / float64(len(r.conns))
	return snap
}
