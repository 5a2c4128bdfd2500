package handler

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/adapter/presenter"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 512
)

// Frame types written on the signal stream
const (
	FrameSnapshot = "calls.snapshot"
	FrameSignal   = "calls.signal"
)

// streamFrame is one message on the signal stream
type streamFrame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Stream pushes coordinator signals to the browser over a websocket
type Stream struct {
	sessions SessionProvider
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewStreamHandler creates a new signal stream handler. An empty
// allowedOrigins list accepts any origin.
func NewStreamHandler(sessions SessionProvider, allowedOrigins []string, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Stream{sessions: sessions, logger: logger.Named("stream")}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	hosts := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts[u.Host] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(hosts) == 0 {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return hosts[u.Host] || u.Host == r.Host
	}
}

// Serve handles GET /calls/stream
// @Summary      Call signal stream
// @Description  Websocket. Sends a calls.snapshot frame, then one calls.signal frame per coordinator signal.
// @Tags         Calls
// @Security     BearerAuth
// @Param        access_token  query  string  false  "Access token for clients that cannot set headers"
// @Success      101
// @Failure      409  {object}  map[string]interface{}  "No call session"
// @Router       /calls/stream [get]
func (h *Stream) Serve(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	sess, err := h.sessions.Session(userID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the failure response
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	signals, release := sess.Signals.Subscribe()
	defer release()

	logger := h.logger.With(zap.String("identity", userID.String()))
	logger.Info("signal stream opened")
	defer logger.Info("signal stream closed")

	if err := h.write(conn, streamFrame{Type: FrameSnapshot, Payload: presenter.ToSessionResponse(sess)}); err != nil {
		return nil
	}

	gone := make(chan struct{})
	go h.readPump(conn, gone)

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case sig, ok := <-signals:
			if !ok {
				// session closed
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(streamWriteWait))
				return nil
			}
			if err := h.write(conn, streamFrame{Type: FrameSignal, Payload: sig}); err != nil {
				logger.Debug("failed to write signal", zap.Error(err))
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return nil
			}
		case <-gone:
			return nil
		}
	}
}

func (h *Stream) write(conn *websocket.Conn, frame streamFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(frame)
}

// readPump discards client messages and notices when the peer goes away
func (h *Stream) readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("signal stream read failed", zap.Error(err))
			}
			return
		}
	}
}
