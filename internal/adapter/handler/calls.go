package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/adapter/presenter"
	"github.com/johnquangdev/meeting-calls/internal/usecase/calls"
)

// SessionProvider opens and looks up the call sessions of signed-in identities
type SessionProvider interface {
	Open(ctx context.Context, identity uuid.UUID) (*calls.Session, error)
	Session(identity uuid.UUID) (*calls.Session, error)
	Close(identity uuid.UUID) error
}

// Calls handles the incoming and outgoing call endpoints
type Calls struct {
	sessions SessionProvider
	logger   *zap.Logger
}

// NewCallsHandler creates a new calls handler
func NewCallsHandler(sessions SessionProvider, logger *zap.Logger) *Calls {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calls{sessions: sessions, logger: logger.Named("calls.http")}
}

func (h *Calls) session(c echo.Context) (*calls.Session, error) {
	userID, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	return h.sessions.Session(userID)
}

// Incoming handles GET /calls/incoming
// @Summary      Current incoming call
// @Description  Returns the ringing invitation, its caller, how many more are waiting and the call state
// @Tags         Calls
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  call.IncomingResponse
// @Failure      409  {object}  map[string]interface{}  "No call session"
// @Router       /calls/incoming [get]
func (h *Calls) Incoming(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToIncomingResponse(sess.Incoming.View()))
}

// Accept handles POST /calls/incoming/:id/accept
// @Summary      Accept an invitation
// @Description  Accepts the invitation and joins its room. A stale outcome means it was already resolved.
// @Tags         Calls
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invitation ID (UUID)"
// @Success      200  {object}  call.ActionResponse
// @Failure      503  {object}  map[string]interface{}  "Store unavailable, retry"
// @Router       /calls/incoming/{id}/accept [post]
func (h *Calls) Accept(c echo.Context) error {
	return h.answer(c, true)
}

// Decline handles POST /calls/incoming/:id/decline
// @Summary      Decline an invitation
// @Tags         Calls
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invitation ID (UUID)"
// @Success      200  {object}  call.ActionResponse
// @Failure      503  {object}  map[string]interface{}  "Store unavailable, retry"
// @Router       /calls/incoming/{id}/decline [post]
func (h *Calls) Decline(c echo.Context) error {
	return h.answer(c, false)
}

func (h *Calls) answer(c echo.Context, accept bool) error {
	sess, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	ctx := c.Request().Context()
	var outcome calls.Outcome
	if accept {
		outcome, err = sess.Incoming.Accept(ctx, id)
	} else {
		outcome, err = sess.Incoming.Decline(ctx, id)
	}
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	view := sess.Incoming.View()
	return HandleSuccess(h.logger, c, presenter.ToActionResponse(outcome, id, &view))
}

// AcceptCurrent handles POST /calls/incoming/accept
// @Summary      Accept whatever is ringing
// @Tags         Calls
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  call.ActionResponse
// @Failure      409  {object}  map[string]interface{}  "Nothing is ringing"
// @Router       /calls/incoming/accept [post]
func (h *Calls) AcceptCurrent(c echo.Context) error {
	return h.answerCurrent(c, true)
}

// DeclineCurrent handles POST /calls/incoming/decline
// @Summary      Decline whatever is ringing
// @Tags         Calls
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  call.ActionResponse
// @Failure      409  {object}  map[string]interface{}  "Nothing is ringing"
// @Router       /calls/incoming/decline [post]
func (h *Calls) DeclineCurrent(c echo.Context) error {
	return h.answerCurrent(c, false)
}

func (h *Calls) answerCurrent(c echo.Context, accept bool) error {
	sess, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	id := uuid.Nil
	if inv := sess.Incoming.CurrentInvitation(); inv != nil {
		id = inv.ID
	}

	ctx := c.Request().Context()
	var outcome calls.Outcome
	if accept {
		outcome, err = sess.Incoming.AcceptCurrent(ctx)
	} else {
		outcome, err = sess.Incoming.DeclineCurrent(ctx)
	}
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	view := sess.Incoming.View()
	return HandleSuccess(h.logger, c, presenter.ToActionResponse(outcome, id, &view))
}

// Leave handles POST /calls/leave
// @Summary      Leave the current call
// @Tags         Calls
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  call.IncomingResponse
// @Failure      409  {object}  map[string]interface{}  "Not in a call"
// @Router       /calls/leave [post]
func (h *Calls) Leave(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if err := sess.Incoming.Leave(c.Request().Context()); err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToIncomingResponse(sess.Incoming.View()))
}

// Outgoing handles GET /calls/outgoing
// @Summary      Calls you are making
// @Description  Lists the invitations you sent that are still being tracked, newest first
// @Tags         Calls
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  call.OutgoingResponse
// @Router       /calls/outgoing [get]
func (h *Calls) Outgoing(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToOutgoingResponse(sess.Outgoing.ActiveOutgoingCalls()))
}

// Cancel handles POST /calls/outgoing/:id/cancel
// @Summary      Cancel an invitation you sent
// @Tags         Calls
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invitation ID (UUID)"
// @Success      200  {object}  call.ActionResponse
// @Failure      404  {object}  map[string]interface{}  "Not one of your outgoing calls"
// @Failure      503  {object}  map[string]interface{}  "Store unavailable, retry"
// @Router       /calls/outgoing/{id}/cancel [post]
func (h *Calls) Cancel(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	outcome, err := sess.Outgoing.Cancel(c.Request().Context(), id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToActionResponse(outcome, id, nil))
}
