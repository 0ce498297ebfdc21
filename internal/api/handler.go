package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"outlet-sync/internal/apperrors"
	"outlet-sync/internal/engine"
	"outlet-sync/internal/outlet"
)

// Syncs is the run control the handlers drive.
type Syncs interface {
	Start(trigger engine.Trigger) error
	Last() (engine.Report, bool)
}

type Campaigns interface {
	GetCampaigns() []outlet.Campaign
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type SyncHandler struct {
	Syncs     Syncs
	Campaigns Campaigns
	DB        Pinger
}

func NewSyncHandler(s Syncs, c Campaigns, db Pinger) *SyncHandler {
	return &SyncHandler{Syncs: s, Campaigns: c, DB: db}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// StartSync kicks off a background run.
func (h *SyncHandler) StartSync(w http.ResponseWriter, _ *http.Request) {
	err := h.Syncs.Start(engine.TriggerAPI)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	case errors.Is(err, apperrors.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		log.Error().Err(err).Msg("start sync")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "could not start sync"})
	}
}

func (h *SyncHandler) LastSync(w http.ResponseWriter, _ *http.Request) {
	rep, ok := h.Syncs.Last()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *SyncHandler) ListCampaigns(w http.ResponseWriter, _ *http.Request) {
	cs := h.Campaigns.GetCampaigns()
	if cs == nil {
		cs = []outlet.Campaign{}
	}
	writeJSON(w, http.StatusOK, cs)
}

// Ready reports 503 while the database is unreachable.
func (h *SyncHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "database unavailable"})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
