package entities

import "time"

type ActionLog struct {
	ID         uint64                 `json:"id" db:"id"`
	ActorID    *uint64                `json:"actor_id" db:"actor_id"`
	Action     string                 `json:"action" db:"action"`
	EntityType string                 `json:"entity_type" db:"entity_type"`
	EntityID   *uint64                `json:"entity_id" db:"entity_id"`
	Details    map[string]interface{} `json:"details" db:"details"`
	IPAddress  *string                `json:"ip_address" db:"ip_address"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}
