package relay

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nvbf/scoreboard-sync/pkg/wire"
)

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {

	// The relay we provide the websocket transport for.
	Relay *Relay

	// The router instance to configure the HTTP routes.
	Router Router

	Logger zerolog.Logger
}

const (
	writeTimeout   = 10 * time.Second
	readTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 256 * 1024
)

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	r := opts.Router
	h := &httpHandler{
		HTTPOptions: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin policy is enforced by the CORS layer in front.
				return true
			},
		},
	}
	r.GET("/ws", h.wsHandler)
}

type httpHandler struct {
	HTTPOptions
	upgrader websocket.Upgrader
}

func (h *httpHandler) wsHandler(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	clientID := uuid.New().String()
	outbox := make(chan wire.Frame, 64)

	h.Relay.Send(Join{ClientID: clientID, Outbox: outbox})

	go h.writePump(conn, outbox, clientID)
	h.readLoop(conn, clientID)
}

// writePump drains the client's outbox onto the socket. It exits when the
// relay closes the outbox (Leave, slow-client drop or shutdown) and owns
// closing the connection.
func (h *httpHandler) writePump(conn *websocket.Conn, outbox <-chan wire.Frame, clientID string) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-outbox:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(frame)
			if err != nil {
				h.Logger.Error().Err(err).Str("client_id", clientID).Msg("failed to marshal frame")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *httpHandler) readLoop(conn *websocket.Conn, clientID string) {
	defer func() {
		h.Relay.Send(Leave{ClientID: clientID})
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.Logger.Warn().Err(err).Str("client_id", clientID).Msg("websocket closed unexpectedly")
			}
			return
		}

		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			// Malformed frames are logged and ignored, the connection stays open.
			h.Logger.Warn().Err(err).Str("client_id", clientID).Msg("ignoring malformed frame")
			continue
		}

		switch frame.Type {
		case wire.TypeUpdate:
			if frame.Path == "" {
				h.Logger.Warn().Str("client_id", clientID).Msg("ignoring update without path")
				continue
			}
			h.Relay.Send(Update{From: clientID, Path: frame.Path, Data: frame.Data})

		case wire.TypeSyncRequest:
			h.Relay.Send(SyncRequest{ClientID: clientID})

		default:
			h.Logger.Warn().Str("client_id", clientID).Str("type", frame.Type).Msg("ignoring unknown frame type")
		}
	}
}
