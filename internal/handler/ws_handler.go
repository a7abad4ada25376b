package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/gate"
	"github.com/stemsi/exstem-portal/internal/identity"
	"github.com/stemsi/exstem-portal/internal/metrics"
	"github.com/stemsi/exstem-portal/internal/middleware"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/service"
	ws "github.com/stemsi/exstem-portal/internal/websocket"
)

// outboundBuffer is how many replies may queue behind the writer.
const outboundBuffer = 16

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams exam session events to the page and accepts the same
// actions as the REST endpoints.
type WSHandler struct {
	sessionService *service.ExamSessionService
	identity       *identity.Context
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, idc *identity.Context, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		identity:       idc,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// outbound is one queued write. Only the writer goroutine touches the
// connection's write side.
type outbound func(conn *websocket.Conn) error

// SessionStream godoc
// WS /ws/session
// Pushes every session event and the refreshed view; reads answer, mark,
// navigate, submit, view and ping actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
	id := middleware.GetIdentity(c)

	sess, err := h.sessionService.Get(id.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.StreamConnections.Inc()
	defer metrics.StreamConnections.Dec()

	wsLog := h.log.With().Str("student_id", id.UserID).Logger()
	wsLog.Info().Msg("Student connected")

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	out := make(chan outbound, outboundBuffer)
	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, sess, events, out, stop, wsLog)
	}()
	defer func() {
		close(stop)
		<-writerDone
	}()

	out <- viewMessage(sess)

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		reply := h.handleAction(c, sess, &msg, wsLog)
		select {
		case out <- reply:
		case <-writerDone:
			return
		}
	}
}

// writeLoop serializes every write: session events first-come, replies to
// actions in order. It returns when the session closes, a write fails or
// the reader stops.
func (h *WSHandler) writeLoop(
	conn *websocket.Conn,
	sess *service.ExamSession,
	events <-chan service.Event,
	out <-chan outbound,
	stop <-chan struct{},
	wsLog zerolog.Logger,
) {
	for {
		select {
		case <-stop:
			return
		case e, ok := <-events:
			if !ok {
				h.writeClosed(conn, wsLog)
				return
			}
			if err := ws.WriteJSON(conn, ws.EventSession, e); err != nil {
				wsLog.Debug().Err(err).Msg("Event write failed")
				return
			}
			if changesView(e.Type) {
				if err := viewMessage(sess)(conn); err != nil {
					return
				}
			}
		case fn := <-out:
			if err := fn(conn); err != nil {
				wsLog.Debug().Err(err).Msg("Reply write failed")
				return
			}
		}
	}
}

// writeClosed tells the page why its stream ended. A closed session with
// no identity left means the backend rejected the token.
func (h *WSHandler) writeClosed(conn *websocket.Conn, wsLog zerolog.Logger) {
	var err error
	if id, idErr := h.identity.Current(context.Background()); idErr == nil && !id.Present {
		err = ws.WriteJSON(conn, ws.EventExpired, map[string]string{"redirect": gate.LoginPath})
	} else {
		err = ws.WriteJSON(conn, ws.EventSession, map[string]string{"status": "closed"})
	}
	if err == nil {
		err = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	if err != nil {
		// The page may already be gone; the stream ends either way.
		wsLog.Debug().Err(err).Msg("Closing notice not delivered")
	}
	wsLog.Info().Msg("Session closed, stream ended")
}

func (h *WSHandler) handleAction(c *gin.Context, sess *service.ExamSession, msg *ws.RequestPayload, wsLog zerolog.Logger) outbound {
	var err error
	switch msg.Action {
	case ws.ActionPing:
		return func(conn *websocket.Conn) error {
			return ws.WriteJSON(conn, ws.EventPong, nil)
		}
	case ws.ActionView:
		return viewMessage(sess)
	case ws.ActionAnswer:
		err = sess.SelectOption(msg.Question, msg.Option)
	case ws.ActionMark:
		_, err = sess.ToggleMark(msg.Question)
	case ws.ActionNavigate:
		err = navigate(sess, msg.Direction, msg.Question)
	case ws.ActionSubmit:
		_, err = sess.Submit(c.Request.Context(), model.TriggerManual)
	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		return errorMessage("INVALID_PAYLOAD", "unknown action: "+string(msg.Action))
	}

	if err != nil {
		_, code, _ := service.Describe(err)
		return errorMessage(string(code), service.UserMessage(err))
	}
	return viewMessage(sess)
}

// changesView reports whether an event can arrive without a page action,
// so the page needs a fresh view alongside it.
func changesView(t service.EventType) bool {
	switch t {
	case service.EventSubmitted, service.EventSubmitFailed, service.EventLoaded, service.EventLoadFailed:
		return true
	}
	return false
}

func viewMessage(sess *service.ExamSession) outbound {
	v := sess.View()
	return func(conn *websocket.Conn) error {
		return ws.WriteJSON(conn, ws.EventView, v)
	}
}

func errorMessage(code, msg string) outbound {
	return func(conn *websocket.Conn) error {
		return ws.WriteError(conn, code, msg)
	}
}
