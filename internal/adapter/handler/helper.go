package handler

import (
	stdErrors "errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/errors"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/http/middleware"
	usecaseErrors "github.com/johnquangdev/meeting-calls/internal/usecase/errors"
	"github.com/johnquangdev/meeting-calls/internal/usecase/notification"
)

// Response shapes
type success struct {
	Code    interface{} `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type errs struct {
	Code      interface{}       `json:"code,omitempty"`
	Message   string            `json:"message,omitempty"`
	Info      string            `json:"info,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

// getRequestID tries to read X-Request-ID from the request
func getRequestID(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	if id := c.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// HandleSuccess writes a standardized success response using provided logger
func HandleSuccess(logger *zap.Logger, c echo.Context, data interface{}) error {
	return handleSuccessStatus(logger, c, http.StatusOK, data)
}

// HandleCreated writes a standardized 201 response
func HandleCreated(logger *zap.Logger, c echo.Context, data interface{}) error {
	return handleSuccessStatus(logger, c, http.StatusCreated, data)
}

func handleSuccessStatus(logger *zap.Logger, c echo.Context, status int, data interface{}) error {
	resp := success{
		Code:    int(errors.ErrorCode_HTTP_OK),
		Message: "success",
		Data:    data,
	}

	if logger != nil {
		logger.Info("http.response.success",
			zap.String("request_id", getRequestID(c)),
			zap.String("path", c.Path()),
		)
	}

	return c.JSON(status, resp)
}

// HandleError centralizes error handling and logging using provided logger
func HandleError(logger *zap.Logger, c echo.Context, err error) error {
	reqID := getRequestID(c)
	appErr := toAppError(err)

	if logger != nil {
		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("path", c.Path()),
			zap.Any("app_code", appErr.Code),
			zap.Error(err),
		}
		if appErr.HTTPCode >= http.StatusInternalServerError {
			logger.Error("http.response.error", fields...)
		} else {
			logger.Warn("http.response.error", fields...)
		}
	}

	info := ""
	if appErr.Raw != nil {
		info = appErr.Raw.Error()
	}

	body := errs{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Info:      info,
		Details:   appErr.Details,
		Retryable: appErr.Retryable,
	}

	return c.JSON(appErr.HTTPCode, body)
}

// toAppError maps usecase errors onto the HTTP-facing error catalogue
func toAppError(err error) errors.AppError {
	var appErr errors.AppError
	if stdErrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stdErrors.Is(err, usecaseErrors.ErrStoreUnavailable):
		return errors.ErrCallStoreUnavailable(err)
	case stdErrors.Is(err, usecaseErrors.ErrSessionNotFound):
		return errors.ErrCallSessionNotFound()
	case stdErrors.Is(err, usecaseErrors.ErrSessionClosed):
		return errors.ErrCallSessionClosed()
	case stdErrors.Is(err, usecaseErrors.ErrInvitationNotTracked):
		return errors.ErrCallNotTracked()
	case stdErrors.Is(err, usecaseErrors.ErrNoCurrentInvitation):
		return errors.ErrNothingRinging()
	case stdErrors.Is(err, usecaseErrors.ErrNotInCall):
		return errors.ErrNotInCall()
	case stdErrors.Is(err, usecaseErrors.ErrReunionNotFound):
		return errors.ErrMeetingNotFound()
	case stdErrors.Is(err, usecaseErrors.ErrNotHost):
		return errors.ErrNotOrganizer()
	case stdErrors.Is(err, usecaseErrors.ErrNoMembers):
		return errors.ErrNoMembers()
	case stdErrors.Is(err, usecaseErrors.ErrInvalidInput):
		return errors.ErrInvalidArgument(err.Error())
	case stdErrors.Is(err, notification.ErrDeliveryUnavailable):
		return errors.ErrNotificationUnavailable(err)
	}
	return errors.ErrInternal(err)
}

// currentUser returns the identity the auth middleware verified
func currentUser(c echo.Context) (uuid.UUID, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return uuid.Nil, errors.ErrUnauthenticated()
	}
	return id, nil
}

// parseIDParam reads a uuid path parameter
func parseIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, errors.ErrInvalidArgument(name + " must be a valid UUID")
	}
	return id, nil
}

// bindAndValidate binds the request into req and runs the echo validator
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.ErrInvalidPayload()
	}
	if err := c.Validate(req); err != nil {
		return errors.ErrInvalidArgument(err.Error())
	}
	return nil
}
