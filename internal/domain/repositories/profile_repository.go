package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
)

// ProfileRepository defines the interface for profile data access
type ProfileRepository interface {
	// FindByID retrieves a profile by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Profile, error)

	// Upsert creates or updates a profile
	Upsert(ctx context.Context, profile *entities.Profile) error
}

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	// Create persists a notification
	Create(ctx context.Context, notification *entities.Notification) error

	// ListByTarget retrieves the latest notifications of a user
	ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]entities.Notification, error)
}
