package entities

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ReunionType represents the visibility of a meeting
type ReunionType string

const (
	ReunionTypePublic  ReunionType = "public"
	ReunionTypePrivate ReunionType = "private"
)

// ReunionStatus represents the current status of a meeting
type ReunionStatus string

const (
	ReunionStatusScheduled ReunionStatus = "scheduled"
	ReunionStatusActive    ReunionStatus = "active"
	ReunionStatusEnded     ReunionStatus = "ended"
	ReunionStatusCancelled ReunionStatus = "cancelled"
)

// Reunion is the meeting an invitation grants access to
type Reunion struct {
	ID          uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Title       string        `gorm:"type:varchar(255);not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	CreatorID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"creator_id"`
	Type        ReunionType   `gorm:"type:varchar(20);not null;default:'private'" json:"type"`
	Status      ReunionStatus `gorm:"type:varchar(20);not null;default:'scheduled';index" json:"status"`
	RoomID      string        `gorm:"type:varchar(255)" json:"room_id"`
	RoomURL     string        `gorm:"type:text" json:"room_url"`
	Begin       *time.Time    `json:"begin,omitempty"`
	CreatedAt   time.Time     `gorm:"default:now()" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for Reunion
func (Reunion) TableName() string {
	return "reunions"
}

// IsCancelled checks if the meeting was cancelled
func (r *Reunion) IsCancelled() bool {
	return r.Status == ReunionStatusCancelled
}

// NewRoom derives a fresh transport room for a meeting owned by creatorID.
// The room id embeds the creation instant so reprogrammed meetings never reuse a room.
func NewRoom(baseURL string, creatorID uuid.UUID, now time.Time) (roomID, roomURL string) {
	roomID = fmt.Sprintf("room_%d_%s", now.UnixMilli(), creatorID)
	roomURL = fmt.Sprintf("%s/meeting/%s", baseURL, url.PathEscape(roomID))
	return roomID, roomURL
}
