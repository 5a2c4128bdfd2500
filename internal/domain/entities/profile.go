package entities

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the public identity card of a user
type Profile struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	DisplayName string    `gorm:"type:varchar(255)" json:"display_name"`
	Name        string    `gorm:"type:varchar(255)" json:"name"`
	Email       string    `gorm:"type:varchar(255);index" json:"email"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

// DisplayInfo is what the UI shows for the other party of a call
type DisplayInfo struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
	Email string    `json:"email,omitempty"`
}

// DisplayInfo returns the best available label for the profile
func (p *Profile) DisplayInfo() DisplayInfo {
	label := p.DisplayName
	if label == "" {
		label = p.Name
	}
	if label == "" {
		label = p.ID.String()
	}
	return DisplayInfo{ID: p.ID, Label: label, Email: p.Email}
}

// FallbackDisplayInfo is used when no profile could be loaded
func FallbackDisplayInfo(id uuid.UUID) DisplayInfo {
	return DisplayInfo{ID: id, Label: id.String()}
}
