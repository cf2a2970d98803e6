package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID           uuid.UUID `json:"id"`
	ActorAddress string    `json:"actor_address"`
	ActorType    string    `json:"actor_type"` // user/router/owner/system
	Action       string    `json:"action"`     // marketplace op name
	EntityType   string    `json:"entity_type"`
	EntityID     *int64    `json:"entity_id,omitempty"`
	Meta         any       `json:"meta,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
