package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationKind is the outcome a notification reports
type NotificationKind string

const (
	NotificationKindAccepted NotificationKind = "invitation_accepted"
	NotificationKindDeclined NotificationKind = "invitation_declined"
	NotificationKindReceived NotificationKind = "invitation_received"
)

// IsValid checks if the kind is valid
func (k NotificationKind) IsValid() bool {
	switch k {
	case NotificationKindAccepted, NotificationKindDeclined, NotificationKindReceived:
		return true
	}
	return false
}

// Notification is a durable advisory record so the other party learns an
// outcome even if it reconnects later
type Notification struct {
	ID           uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Kind         NotificationKind `gorm:"type:varchar(40);not null;index" json:"kind"`
	TargetID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"target_id"`
	CallerID     uuid.UUID        `gorm:"type:uuid" json:"caller_id"`
	ReunionID    uuid.UUID        `gorm:"type:uuid" json:"reunion_id"`
	InvitationID uuid.UUID        `gorm:"type:uuid;index" json:"invitation_id"`
	Payload      datatypes.JSON   `gorm:"type:jsonb;default:'{}'" json:"payload,omitempty"`
	Read         bool             `gorm:"default:false" json:"read"`
	CreatedAt    time.Time        `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

// NotificationPayload is the advisory body attached to a notification
type NotificationPayload struct {
	CallerID     uuid.UUID `json:"caller_id"`
	ReunionID    uuid.UUID `json:"reunion_id"`
	InvitationID uuid.UUID `json:"invitation_id"`
	UserName     string    `json:"user_name,omitempty"`
	CalleeID     uuid.UUID `json:"callee_id,omitempty"`
}
