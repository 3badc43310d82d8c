package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"deal-hand/config"
	"deal-hand/models"
	"deal-hand/services"
	"deal-hand/storage"
)

type fakeReader struct {
	deals   []models.Deal
	filter  storage.DealFilter
	logs    []models.SyncLog
	limit   int
	listErr error
}

func (f *fakeReader) ListDeals(_ context.Context, filter storage.DealFilter) ([]models.Deal, int64, error) {
	f.filter = filter
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	return f.deals, int64(len(f.deals)), nil
}

func (f *fakeReader) FindDealBySlug(_ context.Context, slug string) (*models.Deal, error) {
	for i := range f.deals {
		if f.deals[i].Slug == slug {
			return &f.deals[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReader) StatusHistory(_ context.Context, dealID uint) ([]models.DealStatusHistory, error) {
	return []models.DealStatusHistory{{DealID: dealID, OldStatus: models.StatusAnnounced, NewStatus: models.StatusCompleted}}, nil
}

func (f *fakeReader) ListSyncLogs(_ context.Context, limit int) ([]models.SyncLog, error) {
	f.limit = limit
	return f.logs, nil
}

type fakeSyncService struct {
	opts    services.SyncOptions
	summary services.SyncSummary
	err     error
	calls   int
}

func (f *fakeSyncService) RunSync(_ context.Context, opts services.SyncOptions) (services.SyncSummary, error) {
	f.calls++
	f.opts = opts
	return f.summary, f.err
}

func newTestRouter(t *testing.T, cfg *config.Config, reader *fakeReader, svc *fakeSyncService) (*gin.Engine, *syncRunner) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	runner := &syncRunner{service: svc, cfg: cfg, logger: zap.NewNop()}
	return setupRouter(cfg, reader, runner, zap.NewNop()), runner
}

func testConfig() *config.Config {
	return &config.Config{
		MaterialityThresholdUSD: 500_000_000,
		ExternalCallBudget:      5,
		DaysBack:                90,
		VerifierBackend:         config.VerifierNone,
	}
}

func perform(router http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListDealsRoute(t *testing.T) {
	reader := &fakeReader{deals: []models.Deal{{ID: 1, Slug: "broadcom-vmware-202205", Title: "Broadcom to Acquire VMware"}}}
	router, _ := newTestRouter(t, testConfig(), reader, &fakeSyncService{})

	w := perform(router, http.MethodGet, "/deals?sector=Technology&min_value=1000&sort_by=value_usd&order=asc&limit=10", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Deals []models.Deal `json:"deals"`
		Total int64         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Total)
	require.Len(t, body.Deals, 1)
	assert.Equal(t, "broadcom-vmware-202205", body.Deals[0].Slug)

	assert.Equal(t, "Technology", reader.filter.Sector)
	require.NotNil(t, reader.filter.MinValue)
	assert.Equal(t, int64(1000), *reader.filter.MinValue)
	assert.Equal(t, "value_usd", reader.filter.SortBy)
	assert.Equal(t, "asc", reader.filter.Order)
	assert.Equal(t, 10, reader.filter.Limit)
}

func TestListDealsRouteRejectsBadQuery(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), &fakeReader{}, &fakeSyncService{})

	assert.Equal(t, http.StatusBadRequest, perform(router, http.MethodGet, "/deals?order=sideways", nil).Code)
	assert.Equal(t, http.StatusBadRequest, perform(router, http.MethodGet, "/deals?limit=abc", nil).Code)
}

func TestListDealsRouteDatabaseError(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), &fakeReader{listErr: errors.New("db down")}, &fakeSyncService{})

	assert.Equal(t, http.StatusInternalServerError, perform(router, http.MethodGet, "/deals", nil).Code)
}

func TestGetDealRoute(t *testing.T) {
	reader := &fakeReader{deals: []models.Deal{{ID: 7, Slug: "broadcom-vmware-202205"}}}
	router, _ := newTestRouter(t, testConfig(), reader, &fakeSyncService{})

	w := perform(router, http.MethodGet, "/deals/broadcom-vmware-202205", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Deal          models.Deal                `json:"deal"`
		StatusHistory []models.DealStatusHistory `json:"status_history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, uint(7), body.Deal.ID)
	require.Len(t, body.StatusHistory, 1)
	assert.Equal(t, models.StatusCompleted, body.StatusHistory[0].NewStatus)

	assert.Equal(t, http.StatusNotFound, perform(router, http.MethodGet, "/deals/unknown", nil).Code)
}

func TestSyncRoute(t *testing.T) {
	svc := &fakeSyncService{summary: services.SyncSummary{RunID: "run-1", DealsAdded: 2}}
	router, _ := newTestRouter(t, testConfig(), &fakeReader{}, svc)

	w := perform(router, http.MethodPost, "/sync", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool                 `json:"success"`
		Summary services.SyncSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "run-1", body.Summary.RunID)
	assert.Equal(t, 2, body.Summary.DealsAdded)

	assert.Equal(t, models.SyncTypeManual, svc.opts.SyncType)
	assert.Equal(t, int64(500_000_000), svc.opts.MaterialityThresholdUSD)
	assert.Equal(t, 5, svc.opts.ExternalCallBudget)
	assert.Equal(t, 90, svc.opts.DaysBack)
	assert.True(t, svc.opts.DisableExternalChecks)
}

func TestSyncRouteFailure(t *testing.T) {
	svc := &fakeSyncService{summary: services.SyncSummary{RunID: "run-2"}, err: errors.New("sync aborted")}
	router, _ := newTestRouter(t, testConfig(), &fakeReader{}, svc)

	w := perform(router, http.MethodPost, "/sync", nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]interface{}{"error": "sync aborted"}, body)
}

func TestSyncRouteConflict(t *testing.T) {
	svc := &fakeSyncService{}
	router, runner := newTestRouter(t, testConfig(), &fakeReader{}, svc)
	runner.running.Store(true)

	w := perform(router, http.MethodPost, "/sync", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, svc.calls)
}

func TestSyncRunnerReleasesGuard(t *testing.T) {
	svc := &fakeSyncService{}
	runner := &syncRunner{service: svc, cfg: testConfig(), logger: zap.NewNop()}

	_, err := runner.Run(context.Background(), models.SyncTypeScheduled)
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), models.SyncTypeScheduled)
	require.NoError(t, err)

	assert.Equal(t, 2, svc.calls)
	assert.Equal(t, models.SyncTypeScheduled, svc.opts.SyncType)
	assert.False(t, runner.running.Load())
}

func TestSyncLogsRoute(t *testing.T) {
	reader := &fakeReader{logs: []models.SyncLog{{ID: 3, Status: models.SyncCompleted, Errors: `["boom"]`}}}
	router, _ := newTestRouter(t, testConfig(), reader, &fakeSyncService{})

	w := perform(router, http.MethodGet, "/sync-logs", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, reader.limit)
	assert.Contains(t, w.Body.String(), `"errors":["boom"]`)

	perform(router, http.MethodGet, "/sync-logs?limit=5", nil)
	assert.Equal(t, 5, reader.limit)
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := testConfig()
	cfg.APISecretKey = "s3cret"
	router, _ := newTestRouter(t, cfg, &fakeReader{}, &fakeSyncService{})

	assert.Equal(t, http.StatusUnauthorized, perform(router, http.MethodGet, "/deals", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(router, http.MethodGet, "/deals", map[string]string{"X-API-KEY": "wrong"}).Code)
	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/deals", map[string]string{"X-API-KEY": "s3cret"}).Code)
	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/metrics", nil).Code)
}

func TestBuildSources(t *testing.T) {
	cfg := testConfig()
	cfg.EnabledSources = "sec_edgar,unknown,perplexity"
	cfg.DiscoveryRegions = "Europe"

	sources := buildSources(cfg, zap.NewNop())

	require.Len(t, sources, 2)
	assert.Equal(t, "sec_edgar", sources[0].Name())
	assert.Equal(t, "perplexity", sources[1].Name())
}

func TestBuildVerifierBackend(t *testing.T) {
	cfg := testConfig()
	assert.Nil(t, buildVerifierBackend(cfg, zap.NewNop()))

	cfg.VerifierBackend = config.VerifierPerplexity
	assert.Equal(t, "perplexity", buildVerifierBackend(cfg, zap.NewNop()).Name())

	cfg.VerifierBackend = config.VerifierAnthropic
	cfg.AnthropicAPIKey = "key"
	assert.Equal(t, "anthropic", buildVerifierBackend(cfg, zap.NewNop()).Name())
}
