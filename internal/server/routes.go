package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Channel methods (getCookies, setCookie, renderPage, ...)
	mux.HandleFunc("/api/channel/", s.app.ChannelHandler.CallHandler) // POST /api/channel/{method}
	mux.HandleFunc("/ws/channel", s.app.WSHandler.HandleWebSocket)

	// Detailed render result
	mux.HandleFunc("/api/render", s.app.ChannelHandler.RenderHandler)

	// System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
