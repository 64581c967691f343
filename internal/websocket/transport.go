package websocket

import (
	"context"

	"carelink/internal/registry"

	"github.com/google/uuid"
)

// HubTransport adapts the hub to the dispatcher's push contract and keeps
// the registry's delivered counters in step.
type HubTransport struct {
	hub      *Hub
	registry *registry.Registry
}

func NewHubTransport(hub *Hub, reg *registry.Registry) *HubTransport {
	return &HubTransport{hub: hub, registry: reg}
}

func (t *HubTransport) Push(ctx context.Context, userID uuid.UUID, payload []byte) (string, error) {
	connectionID, err := t.hub.DeliverToUser(ctx, userID.String(), payload)
	if err != nil {
		return "", err
	}
	t.registry.RecordDelivery(connectionID)
	return connectionID, nil
}
