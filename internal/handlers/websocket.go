package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/common"
	"github.com/ternarybob/pagerender/internal/services/bridge"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Host applications connect from local origins
	},
}

// ChannelRequest is one call sent over the socket
type ChannelRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// ChannelResponse answers the request with the same ID
type ChannelResponse struct {
	ID     string        `json:"id"`
	Result interface{}   `json:"result"`
	Error  *bridge.Error `json:"error,omitempty"`
}

// WebSocketHandler serves channel calls over a websocket. Calls on one
// connection run concurrently; responses are matched by ID.
type WebSocketHandler struct {
	channel Channel
	logger  arbor.ILogger
	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
}

func NewWebSocketHandler(channel Channel, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		channel: channel,
		logger:  logger,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// HandleWebSocket handles GET /ws/channel
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	writeMu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = writeMu
	clientCount := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug().Int("clients", clientCount).Msg("Channel client connected")

	ctx, cancel := context.WithCancel(context.Background())
	var calls sync.WaitGroup

	defer func() {
		cancel()
		calls.Wait()

		h.mu.Lock()
		delete(h.clients, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Int("clients", remaining).Msg("Channel client disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}

		var req ChannelRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Method == "" {
			h.send(conn, writeMu, ChannelResponse{
				ID:    req.ID,
				Error: &bridge.Error{Code: bridge.CodeInvalidArgs, Message: "expected {\"id\",\"method\",\"args\"}"},
			})
			continue
		}

		calls.Add(1)
		common.SafeGo(h.logger, "channel-call-"+req.Method, func() {
			defer calls.Done()
			h.send(conn, writeMu, h.dispatch(ctx, req))
		})
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, req ChannelRequest) ChannelResponse {
	result, err := h.channel.Call(ctx, req.Method, req.Args)
	if err == nil {
		return ChannelResponse{ID: req.ID, Result: result}
	}

	var callErr *bridge.Error
	if !errors.As(err, &callErr) {
		callErr = &bridge.Error{Code: bridge.CodeInternal, Message: err.Error()}
	}
	return ChannelResponse{ID: req.ID, Error: callErr}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, writeMu *sync.Mutex, resp ChannelResponse) {
	writeMu.Lock()
	defer writeMu.Unlock()

	if err := conn.WriteJSON(resp); err != nil {
		h.logger.Warn().Err(err).Str("id", resp.ID).Msg("Failed to send channel response")
	}
}

// ClientCount returns the number of connected channel clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
