package http

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	apicommon "github.com/compose-network/streams/server/api"
	"github.com/compose-network/streams/x/monitor"
)

type Handler struct {
	tracker *monitor.Tracker
	log     zerolog.Logger
}

func NewHandler(tracker *monitor.Tracker, log zerolog.Logger) *Handler {
	return &Handler{
		tracker: tracker,
		log:     log.With().Str("component", "monitor-http").Logger(),
	}
}

type listResponse struct {
	Summary  monitor.Summary  `json:"summary"`
	Managers []monitor.Status `json:"managers"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	managers := h.tracker.Snapshot()

	if state := r.URL.Query().Get("state"); state != "" {
		filtered := managers[:0]
		for _, m := range managers {
			if m.State == state {
				filtered = append(filtered, m)
			}
		}
		managers = filtered
	}

	apicommon.WriteJSON(w, http.StatusOK, listResponse{
		Summary:  h.tracker.Summary(),
		Managers: managers,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	st, ok := h.tracker.Get(id)
	if !ok {
		apicommon.WriteError(w, r, http.StatusNotFound, "not_found", "manager not found", map[string]string{"id": id})
		return
	}
	apicommon.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.tracker.Stop(id); err != nil {
		if errors.Is(err, monitor.ErrNotFound) {
			apicommon.WriteError(w, r, http.StatusNotFound, "not_found", "manager not found", map[string]string{"id": id})
			return
		}
		h.log.Error().Err(err).Str("manager_id", id).Msg("Failed to stop manager")
		apicommon.WriteError(w, r, http.StatusInternalServerError, "stop_failed", err.Error(), nil)
		return
	}

	apicommon.WriteJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "stopping"})
}
