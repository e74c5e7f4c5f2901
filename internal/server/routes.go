package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Clone job API
	mux.HandleFunc("/api/clone", s.handleCloneRoute)   // POST (create), GET (list)
	mux.HandleFunc("/api/clone/", s.handleCloneRoutes) // GET /{id} and subpaths

	// Service endpoints
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// Fallback for unknown API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleCloneRoute routes /api/clone requests (create and list)
func (s *Server) handleCloneRoute(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodPost: s.app.CloneHandler.CreateHandler,
		http.MethodGet:  s.app.CloneHandler.ListHandler,
	})
}

// handleCloneRoutes routes /api/clone/{id} requests and subpaths
func (s *Server) handleCloneRoutes(w http.ResponseWriter, r *http.Request) {
	matched := RouteByPathSuffix(w, r, "/api/clone/", []PathSuffixRouter{
		{Suffix: "/logs", Handler: s.app.LogsHandler.StreamHandler},
		{Suffix: "/ws", Handler: s.app.WSHandler.StreamHandler},
		{Suffix: "/download", Handler: s.app.CloneHandler.DownloadHandler},
	})
	if matched {
		return
	}

	// GET /api/clone/{id}
	s.app.CloneHandler.GetHandler(w, r)
}
