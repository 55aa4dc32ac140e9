package model

import "time"

// AuditEvent is the append-only ledger entry written alongside sensitive
// mutations, in the same transaction. Rows are write-once: no UpdatedAt,
// no soft delete.
type AuditEvent struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	EventID     string    `json:"event_id" gorm:"type:varchar(36);not null;uniqueIndex"`
	Action      string    `json:"action" gorm:"type:varchar(64);not null;index"`
	EntityType  string    `json:"entity_type" gorm:"type:varchar(50);not null;index"`
	EntityID    uint      `json:"entity_id" gorm:"index;not null"`
	ActorUserID uint      `json:"actor_user_id" gorm:"index;not null"`
	Metadata    []byte    `json:"metadata" gorm:"type:jsonb"`
	OccurredAt  time.Time `json:"occurred_at" gorm:"not null;index"`
}
