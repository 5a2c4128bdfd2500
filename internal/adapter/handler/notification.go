package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/adapter/dto/call"
	"github.com/johnquangdev/meeting-calls/internal/adapter/dto/common"
	"github.com/johnquangdev/meeting-calls/internal/adapter/presenter"
	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
)

const defaultNotificationLimit = 20

// NotificationLister reads a user's durable notifications
type NotificationLister interface {
	List(ctx context.Context, targetID uuid.UUID, limit int) ([]entities.Notification, error)
}

// Notifications serves the notifications the fan-out stored
type Notifications struct {
	lister NotificationLister
	logger *zap.Logger
}

// NewNotificationsHandler creates a new notifications handler
func NewNotificationsHandler(lister NotificationLister, logger *zap.Logger) *Notifications {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifications{lister: lister, logger: logger.Named("notifications.http")}
}

// List handles GET /notifications
// @Summary      List notifications
// @Description  Newest first. Covers answers to your calls and invitations you received.
// @Tags         Notifications
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Max items (1-100)"
// @Success      200    {object}  common.ListResponse
// @Router       /notifications [get]
func (h *Notifications) List(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req call.NotificationListRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}
	if req.Limit == 0 {
		req.Limit = defaultNotificationLimit
	}

	items, err := h.lister.List(c.Request().Context(), userID, req.Limit)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	out := make([]*call.NotificationResponse, len(items))
	for i := range items {
		out[i] = presenter.ToNotificationResponse(&items[i])
	}
	return HandleSuccess(h.logger, c, &common.ListResponse{Data: out, Count: len(out)})
}
