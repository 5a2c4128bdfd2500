package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
)

// invitationRepository implements the InvitationRepository interface
type invitationRepository struct {
	db *gorm.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *gorm.DB) repositories.InvitationRepository {
	return &invitationRepository{db: db}
}

// Find returns every invitation matching the filter, newest first
func (r *invitationRepository) Find(ctx context.Context, filter repositories.Filter) ([]entities.Invitation, error) {
	query := r.db.WithContext(ctx).Model(&entities.Invitation{})

	if filter.CallerID != nil {
		query = query.Where("caller_id = ?", *filter.CallerID)
	}
	if filter.ContactID != nil {
		query = query.Where("contact_id = ?", *filter.ContactID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var invitations []entities.Invitation
	if err := query.Order("created_at DESC").Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("failed to find invitations: %w", err)
	}
	return invitations, nil
}

// GetByID retrieves an invitation by its ID
func (r *invitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Invitation, error) {
	var invitation entities.Invitation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}
	return &invitation, nil
}

// UpdateStatus performs the conditional transition out of pending
func (r *invitationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.InvitationStatus, extra repositories.Extra) (repositories.UpdateResult, error) {
	if !entities.InvitationStatusPending.CanTransitionTo(status) {
		return repositories.UpdateStale, fmt.Errorf("%w: pending -> %s", entities.ErrInvalidTransition, status)
	}

	updates := map[string]interface{}{"status": status}
	if extra.Debut != nil {
		updates["debut"] = *extra.Debut
	}
	if extra.Viewed != nil {
		updates["viewed"] = *extra.Viewed
	}

	res := r.db.WithContext(ctx).
		Model(&entities.Invitation{}).
		Where("id = ? AND status = ?", id, entities.InvitationStatusPending).
		Updates(updates)
	if res.Error != nil {
		return repositories.UpdateStale, fmt.Errorf("failed to update invitation status: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return repositories.UpdateApplied, nil
	}

	// Nothing matched: either someone resolved it first or the row is gone.
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Invitation{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return repositories.UpdateStale, fmt.Errorf("failed to check invitation: %w", err)
	}
	if count == 0 {
		return repositories.UpdateNotFound, nil
	}
	return repositories.UpdateStale, nil
}

// Create inserts a new invitation
func (r *invitationRepository) Create(ctx context.Context, invitation *entities.Invitation) error {
	if err := r.db.WithContext(ctx).Create(invitation).Error; err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// ListByReunion retrieves every invitation of a meeting
func (r *invitationRepository) ListByReunion(ctx context.Context, reunionID uuid.UUID) ([]entities.Invitation, error) {
	var invitations []entities.Invitation
	err := r.db.WithContext(ctx).
		Where("reunion_id = ?", reunionID).
		Order("created_at ASC").
		Find(&invitations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// CountActiveByReunion counts pending or accepted invitations, ignoring the given contact
func (r *invitationRepository) CountActiveByReunion(ctx context.Context, reunionID, excludeContactID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.Invitation{}).
		Where("reunion_id = ? AND contact_id <> ?", reunionID, excludeContactID).
		Where("status IN ?", []entities.InvitationStatus{entities.InvitationStatusPending, entities.InvitationStatusAccepted}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count invitations: %w", err)
	}
	return count, nil
}

// ResetForReunion puts every invitation of a meeting back to pending with a new room
func (r *invitationRepository) ResetForReunion(ctx context.Context, reunionID uuid.UUID, roomID, url string) error {
	return r.db.WithContext(ctx).
		Model(&entities.Invitation{}).
		Where("reunion_id = ?", reunionID).
		Updates(map[string]interface{}{
			"status":   entities.InvitationStatusPending,
			"viewed":   false,
			"debut":    nil,
			"date_fin": nil,
			"room_id":  roomID,
			"url":      url,
		}).
		Error
}

// MarkEnded records when the callee left the call
func (r *invitationRepository) MarkEnded(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&entities.Invitation{}).
		Where("id = ?", id).
		Update("date_fin", at)
	if res.Error != nil {
		return fmt.Errorf("failed to mark invitation ended: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return entities.ErrInvitationNotFound
	}
	return nil
}
