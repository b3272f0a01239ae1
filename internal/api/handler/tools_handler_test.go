package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fredserve/internal/api"
	"fredserve/internal/app/service"
	"fredserve/internal/app/worker"
	"fredserve/internal/common"
	"fredserve/internal/domain/repository"
	"fredserve/internal/fred"
	"fredserve/internal/output"
	"fredserve/internal/platform/config"
)

func newToolsServer(t *testing.T, upstream http.Handler) *httptest.Server {
	t.Helper()
	upstreamServer := httptest.NewServer(upstream)
	t.Cleanup(upstreamServer.Close)

	cfg := &config.Config{
		DefaultProject:     "default",
		OutputMode:         service.OutputModeAuto,
		OutputFormat:       service.FormatCSV,
		ScreenRowThreshold: 1000,
		JobRowThreshold:    10000,
		FileChunkSize:      1000,
		SafeTokenLimit:     50000,
		AssumeContextUsed:  0.75,
		StorageDir:         t.TempDir(),
	}
	client := fred.NewClient(fred.ClientConfig{
		APIKey:               "test-key",
		BaseURL:              upstreamServer.URL,
		Timeout:              2 * time.Second,
		MaxRequestsPerMinute: 6000,
		BaseDelay:            time.Millisecond,
	})
	jobs := service.NewJobManager(repository.NewInMemoryJobRepository(), time.Hour)
	router := service.NewOutputRouter(
		cfg,
		output.NewTokenEstimator(cfg.AssumeContextUsed, cfg.SafeTokenLimit),
		output.NewFlattener(),
		output.NewPathResolver(cfg.StorageDir),
		output.NewFileWriter(),
		jobs,
	)
	series := fred.NewSeriesAPI(client)
	w := worker.NewBackgroundWorker(jobs, 3, time.Millisecond, 2.0)
	t.Cleanup(w.Stop)

	registry := api.NewRegistry(api.ToolDeps{
		Categories: fred.NewCategoryAPI(client),
		Series:     series,
		Releases:   fred.NewReleaseAPI(client),
		Sources:    fred.NewSourceAPI(client),
		Tags:       fred.NewTagAPI(client),
		Maps:       fred.NewMapsAPI(client),
		Router:     router,
		Data:       service.NewDataService(cfg, series, jobs, w, router),
	})

	r := chi.NewRouter()
	r.Route("/api/v1/tools", NewToolsHandler(registry).RegisterRoutes)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func TestToolsListEndpoint(t *testing.T) {
	server := newToolsServer(t, http.NotFoundHandler())

	resp, err := http.Get(server.URL + "/api/v1/tools")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	tools := body["tools"].([]any)
	require.NotEmpty(t, tools)

	names := map[string]bool{}
	for _, raw := range tools {
		tool := raw.(map[string]any)
		names[tool["name"].(string)] = true
		assert.NotEmpty(t, tool["summary"])
		assert.NotEmpty(t, tool["domain"])
	}
	assert.True(t, names["series_observations"])
	assert.True(t, names["category_get"])
}

func TestInvokeUnknownTool(t *testing.T) {
	server := newToolsServer(t, http.NotFoundHandler())

	resp, err := http.Post(server.URL+"/api/v1/tools/series_teleport", "application/json",
		strings.NewReader(`{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, common.CodeUnknownOperation, errObj["code"])
}

func TestInvokeToolEndToEnd(t *testing.T) {
	server := newToolsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fred/series", r.URL.Path)
		assert.Equal(t, "GNPCA", r.URL.Query().Get("series_id"))
		w.Write([]byte(`{"seriess": [{"id": "GNPCA", "title": "Real Gross National Product"}]}`))
	}))

	resp, err := http.Post(server.URL+"/api/v1/tools/series_get", "application/json",
		strings.NewReader(`{"series_id": "GNPCA"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, service.OutputModeScreen, body["output_mode"])
	data := body["data"].(map[string]any)
	seriess := data["seriess"].([]any)
	assert.Len(t, seriess, 1)
}

func TestInvokeToolUpstreamNotFound(t *testing.T) {
	server := newToolsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"seriess": []}`))
	}))

	resp, err := http.Post(server.URL+"/api/v1/tools/series_get", "application/json",
		strings.NewReader(`{"series_id": "NOSUCH"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, common.CodeNotFound, errObj["code"])
}

func TestInvokeToolEmptyBody(t *testing.T) {
	server := newToolsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tags": []}`))
	}))

	// Operations with no required arguments accept an empty body.
	resp, err := http.Post(server.URL+"/api/v1/tools/tag_list", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestInvokeToolMalformedBody(t *testing.T) {
	server := newToolsServer(t, http.NotFoundHandler())

	resp, err := http.Post(server.URL+"/api/v1/tools/tag_list", "application/json",
		strings.NewReader(`{not json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, common.CodeInvalidParameter, errObj["code"])
}
