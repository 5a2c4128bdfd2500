package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
)

// ReunionRepository defines the interface for meeting data access
type ReunionRepository interface {
	// Create creates a new meeting
	Create(ctx context.Context, reunion *entities.Reunion) error

	// FindByID retrieves a meeting by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Reunion, error)

	// UpdateStatus updates the meeting status
	UpdateStatus(ctx context.Context, id uuid.UUID, status entities.ReunionStatus) error

	// Reschedule assigns a fresh room and puts the meeting back to scheduled
	Reschedule(ctx context.Context, id uuid.UUID, roomID, roomURL string) error
}
