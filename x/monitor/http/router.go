package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterMux binds gorilla/mux routes.
func (h *Handler) RegisterMux(r *mux.Router) {
	r.HandleFunc(routeManagers, h.handleList).Methods(http.MethodGet).Name(routeNameManagers)
	r.HandleFunc(routeManagerByID, h.handleGet).Methods(http.MethodGet).Name(routeNameManagerByID)
	r.HandleFunc(routeStopManager, h.handleStop).Methods(http.MethodPost).Name(routeNameStopManager)
}
