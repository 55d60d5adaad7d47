package domain

import "time"

// IdempotencyScopePaymentOrder scopes keys sent to the order-creation route.
const IdempotencyScopePaymentOrder = "payment_order"

// Idempotency records the result of a previously processed request, keyed by
// (user_id, scope, key). A retry with the same key replays ResourceID instead
// of repeating the side effect.
type Idempotency struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	UserID     uint      `gorm:"not null;uniqueIndex:ux_user_scope_key,priority:1"`
	Scope      string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_user_scope_key,priority:2"`
	Key        string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_user_scope_key,priority:3"`
	ResourceID string    `gorm:"type:varchar(64);not null"`
	Status     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
