package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outlet-sync/internal/apperrors"
	"outlet-sync/internal/engine"
	"outlet-sync/internal/outlet"
)

type stubSyncs struct {
	startErr error
	started  []engine.Trigger
	last     *engine.Report
}

func (s *stubSyncs) Start(t engine.Trigger) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = append(s.started, t)
	return nil
}

func (s *stubSyncs) Last() (engine.Report, bool) {
	if s.last == nil {
		return engine.Report{}, false
	}
	return *s.last, true
}

type stubCampaigns []outlet.Campaign

func (s stubCampaigns) GetCampaigns() []outlet.Campaign { return s }

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func serve(h *SyncHandler, method, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	Router(h).ServeHTTP(w, httptest.NewRequest(method, url, nil))
	return w
}

func TestStartSync(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"started", nil, http.StatusAccepted},
		{"already running", apperrors.ErrAlreadyRunning, http.StatusConflict},
		{"lock backend down", errors.New("redis: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSyncs{startErr: tt.err}
			w := serve(NewSyncHandler(s, stubCampaigns(nil), nil), http.MethodPost, "/v1/sync")
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.err == nil {
				assert.Equal(t, []engine.Trigger{engine.TriggerAPI}, s.started)
			}
		})
	}
}

func TestStartSync_GetNotAllowed(t *testing.T) {
	w := serve(NewSyncHandler(&stubSyncs{}, stubCampaigns(nil), nil), http.MethodGet, "/v1/sync")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestLastSync(t *testing.T) {
	s := &stubSyncs{}
	h := NewSyncHandler(s, stubCampaigns(nil), nil)

	w := serve(h, http.MethodGet, "/v1/sync/last")
	assert.Equal(t, http.StatusNoContent, w.Code)

	s.last = &engine.Report{
		RunID:   "run-1",
		Trigger: engine.TriggerSchedule,
		Campaigns: []engine.CampaignReport{
			{CampaignID: 7, Domain: "shop", Result: engine.Result{Created: 2, Orphans: []string{"old"}}},
		},
	}
	w = serve(h, http.MethodGet, "/v1/sync/last")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got engine.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Campaigns, 1)
	assert.Equal(t, 2, got.Campaigns[0].Created)
	assert.Equal(t, []string{"old"}, got.Campaigns[0].Orphans)
}

func TestListCampaigns(t *testing.T) {
	w := serve(NewSyncHandler(&stubSyncs{}, stubCampaigns(nil), nil), http.MethodGet, "/v1/campaigns")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	cs := stubCampaigns{{CampaignID: 21, Domain: "shop", SpaceID: "msk"}}
	w = serve(NewSyncHandler(&stubSyncs{}, cs, nil), http.MethodGet, "/v1/campaigns")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"campaignId":21,"domain":"shop","spaceId":"msk"}]`, w.Body.String())
}

func TestHealthAndReady(t *testing.T) {
	h := NewSyncHandler(&stubSyncs{}, stubCampaigns(nil), stubPinger{})
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/readyz").Code)

	h.DB = stubPinger{err: errors.New("down")}
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodGet, "/readyz").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewSyncHandler(&stubSyncs{}, stubCampaigns(nil), nil)
	_ = serve(h, http.MethodGet, "/healthz")
	w := serve(h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "outletsync_http_requests_total")
}
