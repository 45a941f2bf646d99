package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/models"
)

const maxArgsBytes = 1 << 20

// Channel is the method dispatcher behind the channel endpoints
type Channel interface {
	Call(ctx context.Context, method string, args []byte) (interface{}, error)
	RenderDetailed(ctx context.Context, args []byte) (*models.RenderResult, error)
}

// ChannelHandler exposes channel methods over plain HTTP
type ChannelHandler struct {
	channel Channel
	logger  arbor.ILogger
}

// NewChannelHandler creates the HTTP channel endpoints
func NewChannelHandler(channel Channel, logger arbor.ILogger) *ChannelHandler {
	return &ChannelHandler{
		channel: channel,
		logger:  logger,
	}
}

// CallHandler handles POST /api/channel/{method}; the body holds the JSON arguments
func (h *ChannelHandler) CallHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	method := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/channel/"), "/")
	if method == "" {
		WriteError(w, http.StatusBadRequest, "method name required")
		return
	}

	args, err := readArgs(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	result, err := h.channel.Call(r.Context(), method, args)
	if err != nil {
		h.logger.Debug().Str("method", method).Err(err).Msg("Channel call failed")
		WriteCallError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}

// RenderHandler handles POST /api/render and returns the full render result
func (h *ChannelHandler) RenderHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	args, err := readArgs(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	result, err := h.channel.RenderDetailed(r.Context(), args)
	if err != nil {
		WriteCallError(w, err)
		return
	}
	if result == nil {
		WriteError(w, http.StatusBadRequest, "url missing or invalid render request")
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

func readArgs(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxArgsBytes))
}
