package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
)

// reunionRepository implements the ReunionRepository interface
type reunionRepository struct {
	db *gorm.DB
}

// NewReunionRepository creates a new meeting repository
func NewReunionRepository(db *gorm.DB) repositories.ReunionRepository {
	return &reunionRepository{db: db}
}

// Create creates a new meeting
func (r *reunionRepository) Create(ctx context.Context, reunion *entities.Reunion) error {
	return r.db.WithContext(ctx).Create(reunion).Error
}

// FindByID retrieves a meeting by its ID
func (r *reunionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Reunion, error) {
	var reunion entities.Reunion
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&reunion).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrReunionNotFound
		}
		return nil, err
	}
	return &reunion, nil
}

// UpdateStatus updates the meeting status
func (r *reunionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.ReunionStatus) error {
	return r.db.WithContext(ctx).
		Model(&entities.Reunion{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

// Reschedule assigns a fresh room and puts the meeting back to scheduled
func (r *reunionRepository) Reschedule(ctx context.Context, id uuid.UUID, roomID, roomURL string) error {
	res := r.db.WithContext(ctx).
		Model(&entities.Reunion{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   entities.ReunionStatusScheduled,
			"room_id":  roomID,
			"room_url": roomURL,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reschedule reunion: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return entities.ErrReunionNotFound
	}
	return nil
}
