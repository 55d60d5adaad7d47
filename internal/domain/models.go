// Package domain defines the persistence models for users, generation
// records, contact messages, subscriptions and payment orders. These types
// are mapped with GORM and form the core data layer of the service.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Capability tags a generation record with the vendor capability that
// produced it.
type Capability string

const (
	CapabilityCode         Capability = "code"
	CapabilityConversation Capability = "conversation"
	CapabilityImage        Capability = "image"
	CapabilityVideo        Capability = "video"
)

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityCode, CapabilityConversation, CapabilityImage, CapabilityVideo:
		return true
	}
	return false
}

// SubscriptionStatus is the lifecycle state of a Subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// OrderStatus is the local view of a payment-provider order.
type OrderStatus string

const (
	OrderCreated   OrderStatus = "created"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
)

// User maps an identity-provider subject to an internal numeric id. Rows
// are created lazily on the first authenticated request of a subject and
// are never deleted by the service.
//
// Fields:
//   - ID: internal surrogate key.
//   - SubjectID: opaque identity-provider subject; unique.
//   - Email: optional contact address copied from the session, if known.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	SubjectID string    `json:"subject_id" gorm:"type:varchar(191);not null;uniqueIndex:ux_users_subject"`
	Email     string    `json:"email"      gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Generation is one successful external-capability invocation. It is
// written once and never updated; the retention job deletes it after a
// fixed age.
//
// Input holds the request payload (messages or prompt options), Output the
// produced payload (text or image list) and Metadata free-form details such
// as the model name or the echoed history.
type Generation struct {
	ID         string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID     uint           `json:"user_id"    gorm:"not null;index:idx_gen_user_cap,priority:1"`
	Capability Capability     `json:"capability" gorm:"type:varchar(16);not null;index:idx_gen_user_cap,priority:2"`
	Prompt     string         `json:"prompt"     gorm:"type:text"`
	Input      datatypes.JSON `json:"input,omitempty"`
	Output     datatypes.JSON `json:"output,omitempty"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at" gorm:"index:idx_gen_user_cap,priority:3"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Generation.
func (Generation) TableName() string { return "generations" }

// ContactMessage is a submitted contact form. UserID is set only when the
// sender had a session.
type ContactMessage struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    *uint     `json:"user_id,omitempty" gorm:"index"`
	FirstName string    `json:"first_name" gorm:"type:varchar(100);not null"`
	LastName  string    `json:"last_name"  gorm:"type:varchar(100);not null"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null"`
	Phone     string    `json:"phone"      gorm:"type:varchar(50)"`
	Message   string    `json:"message"    gorm:"type:text;not null"`
	Delivered bool      `json:"delivered"  gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for ContactMessage.
func (ContactMessage) TableName() string { return "contact_messages" }

// Subscription is a user's plan. The only transition implemented is
// active -> cancelled, which also stamps EndedAt.
type Subscription struct {
	ID             string             `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID         uint               `json:"user_id"    gorm:"not null;index:idx_sub_user_created,priority:1"`
	PlanID         string             `json:"plan_id"    gorm:"type:varchar(64);not null"`
	Status         SubscriptionStatus `json:"status"     gorm:"type:varchar(16);not null;check:status IN ('active','cancelled','expired')"`
	PaymentOrderID string             `json:"payment_order_id,omitempty" gorm:"type:varchar(64)"`
	StartedAt      time.Time          `json:"started_at"`
	EndedAt        *time.Time         `json:"ended_at"`
	CreatedAt      time.Time          `json:"created_at" gorm:"index:idx_sub_user_created,priority:2"`
	UpdatedAt      time.Time          `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// PaymentOrder records an order created at the payment provider so that a
// later capture can be matched to the user and plan that started it.
type PaymentOrder struct {
	ID              string      `json:"id"                gorm:"type:char(36);primaryKey"`
	UserID          uint        `json:"user_id"           gorm:"not null;index"`
	PlanID          string      `json:"plan_id"           gorm:"type:varchar(64);not null"`
	ProviderOrderID string      `json:"provider_order_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_payment_provider_order"`
	Amount          string      `json:"amount"            gorm:"type:varchar(32);not null"`
	Currency        string      `json:"currency"          gorm:"type:char(3);not null"`
	Status          OrderStatus `json:"status"            gorm:"type:varchar(16);not null"`
	ApprovalURL     string      `json:"approval_url"      gorm:"type:text"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PaymentOrder.
func (PaymentOrder) TableName() string { return "payment_orders" }
