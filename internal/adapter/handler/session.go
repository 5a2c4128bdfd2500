package handler

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/adapter/presenter"
	usecaseErrors "github.com/johnquangdev/meeting-calls/internal/usecase/errors"
)

// Sessions starts and stops observing invitations for the signed-in user
type Sessions struct {
	sessions SessionProvider
	logger   *zap.Logger
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(sessions SessionProvider, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{sessions: sessions, logger: logger.Named("sessions.http")}
}

// Open handles POST /sessions
// @Summary      Start a call session
// @Description  Starts ringing incoming invitations and tracking outgoing ones. Opening twice returns the live session.
// @Tags         Sessions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  call.SessionResponse
// @Router       /sessions [post]
func (h *Sessions) Open(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	sess, err := h.sessions.Open(c.Request().Context(), userID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToSessionResponse(sess))
}

// Close handles DELETE /sessions
// @Summary      Stop the call session
// @Description  Stops every ring timer and subscription of the signed-in user. Closing twice is not an error.
// @Tags         Sessions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /sessions [delete]
func (h *Sessions) Close(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	if err := h.sessions.Close(userID); err != nil && !errors.Is(err, usecaseErrors.ErrSessionNotFound) {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, map[string]interface{}{"status": "closed"})
}
