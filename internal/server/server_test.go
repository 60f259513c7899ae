package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	v1 "github.com/emrgen/revision/apis/v1"
	"github.com/emrgen/revision/internal/config"
	"github.com/emrgen/revision/internal/store"
	"github.com/emrgen/revision/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Compression:      "brotli",
		StatsCacheTTL:    time.Minute,
		AppendMaxRetries: 3,
		RequestTimeout:   5 * time.Second,
		AuditSchedule:    "@every 1h",
		StatsWarmSched:   "@every 1m",
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	app, err := NewApp(testConfig(), store.NewGormStore(tester.TestDB(t)))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Handler)
	t.Cleanup(ts.Close)

	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userIDHeader, "u-7")
	req.Header.Set(userNameHeader, "Katherine")

	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}

	return res.StatusCode
}

func seedProposal(t *testing.T, ts *httptest.Server, id string, forms ...string) {
	t.Helper()

	code := do(t, ts, http.MethodPost, "/api/proposals", &v1.CreateProposalRequest{ID: id, Title: "Proposal " + id}, nil)
	require.Equal(t, http.StatusCreated, code)

	for _, form := range forms {
		code := do(t, ts, http.MethodPost, "/api/proposals/"+id+"/forms", &v1.CreateFormRequest{ID: form, Name: form}, nil)
		require.Equal(t, http.StatusCreated, code)
	}
}

func saveContent(t *testing.T, ts *httptest.Server, path, content string) *v1.VersionRecord {
	t.Helper()

	var res v1.SaveVersionResponse
	code := do(t, ts, http.MethodPost, path, &v1.SaveVersionRequest{Content: json.RawMessage(content)}, &res)
	require.Equal(t, http.StatusCreated, code)

	return res.Version
}

func TestHandler_FormHistoryAndRollback(t *testing.T) {
	ts := newTestServer(t)
	seedProposal(t, ts, "p-1", "budget")

	base := "/api/proposals/p-1/forms/budget"
	saveContent(t, ts, base+"/versions", `{"total":"ten"}`)
	saveContent(t, ts, base+"/versions", `{"total":"ten twenty"}`)
	saved := saveContent(t, ts, base+"/versions", `{"total":"ten twenty thirty"}`)
	assert.Equal(t, int64(3), saved.VersionNumber)
	assert.Equal(t, "Katherine", saved.CreatedBy.Name)
	assert.Equal(t, "u-7", saved.CreatedBy.ID)

	var list v1.ListVersionsResponse
	code := do(t, ts, http.MethodGet, base+"/versions?limit=2", nil, &list)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list.Versions, 2)
	assert.Equal(t, int64(3), list.Versions[0].VersionNumber)
	assert.Equal(t, int64(2), list.Versions[1].VersionNumber)
	assert.Equal(t, "FORM", list.Versions[0].ScopeType)
	assert.Empty(t, list.Versions[0].Content)

	var rollback v1.RollbackResponse
	code = do(t, ts, http.MethodPost, base+"/versions/1/rollback", nil, &rollback)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(4), rollback.NewVersion)

	var got v1.GetVersionResponse
	code = do(t, ts, http.MethodGet, base+"/versions/4", nil, &got)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"total":"ten"}`, string(got.Version.Content))
	assert.Equal(t, "rollback", got.Version.ChangeType)
	assert.Equal(t, "Rolled back to version 1", got.Version.Comment)

	var current v1.CurrentContentResponse
	code = do(t, ts, http.MethodGet, base+"/content", nil, &current)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(4), current.VersionNumber)
	assert.JSONEq(t, `{"total":"ten"}`, string(current.Content))

	var stats v1.VersionStatsResponse
	code = do(t, ts, http.MethodGet, "/api/proposals/p-1/version-stats", nil, &stats)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(4), stats.Stats.TotalVersions)
}

func TestHandler_ProposalScope(t *testing.T) {
	ts := newTestServer(t)
	seedProposal(t, ts, "p-2", "budget")

	var current v1.CurrentContentResponse
	code := do(t, ts, http.MethodGet, "/api/proposals/p-2/content", nil, &current)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(0), current.VersionNumber)

	saveContent(t, ts, "/api/proposals/p-2/versions", `{"title":"draft"}`)
	saveContent(t, ts, "/api/proposals/p-2/versions", `{"title":"final draft"}`)

	var rollback v1.RollbackResponse
	code = do(t, ts, http.MethodPost, "/api/proposals/p-2/versions/1/rollback", nil, &rollback)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(3), rollback.NewVersion)

	var list v1.ListVersionsResponse
	code = do(t, ts, http.MethodGet, "/api/proposals/p-2/versions", nil, &list)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list.Versions, 3)
	assert.Equal(t, "PROPOSAL", list.Versions[0].ScopeType)
	assert.Empty(t, list.Versions[0].FormID)

	var forms v1.ListFormsResponse
	code = do(t, ts, http.MethodGet, "/api/proposals/p-2/forms", nil, &forms)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, forms.Forms, 1)
	assert.Equal(t, "budget", forms.Forms[0].ID)
}

func TestHandler_Errors(t *testing.T) {
	ts := newTestServer(t)
	seedProposal(t, ts, "p-3", "budget")
	saveContent(t, ts, "/api/proposals/p-3/forms/budget/versions", `{"total":"one"}`)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		code    int
		message string
	}{
		{"unknown proposal", http.MethodGet, "/api/proposals/missing/versions", nil, http.StatusNotFound, "proposal not found"},
		{"unknown form", http.MethodGet, "/api/proposals/p-3/forms/missing/versions", nil, http.StatusNotFound, "form not found"},
		{"unknown version", http.MethodPost, "/api/proposals/p-3/forms/budget/versions/9/rollback", nil, http.StatusNotFound, "version 9 not found"},
		{"bad version number", http.MethodGet, "/api/proposals/p-3/forms/budget/versions/abc", nil, http.StatusBadRequest, "invalid version number"},
		{"zero version number", http.MethodPost, "/api/proposals/p-3/forms/budget/versions/0/rollback", nil, http.StatusBadRequest, "invalid version number"},
		{"bad limit", http.MethodGet, "/api/proposals/p-3/forms/budget/versions?limit=ten", nil, http.StatusBadRequest, "invalid limit"},
		{"zero limit", http.MethodGet, "/api/proposals/p-3/forms/budget/versions?limit=0", nil, http.StatusBadRequest, "limit"},
		{"invalid content", http.MethodPost, "/api/proposals/p-3/forms/budget/versions", map[string]any{"versionType": "FULL", "content": map[string]any{}}, http.StatusBadRequest, "versionType"},
		{"duplicate proposal", http.MethodPost, "/api/proposals", &v1.CreateProposalRequest{ID: "p-3", Title: "again"}, http.StatusConflict, "already exists"},
		{"unknown route", http.MethodGet, "/api/nothing", nil, http.StatusNotFound, "route not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res v1.ErrorResponse
			code := do(t, ts, tt.method, tt.path, tt.body, &res)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, res.Message, tt.message)
		})
	}

	var current v1.CurrentContentResponse
	code := do(t, ts, http.MethodGet, "/api/proposals/p-3/forms/budget/content", nil, &current)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), current.VersionNumber)
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]string
	code := do(t, ts, http.MethodGet, "/healthz", nil, &health)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", health["status"])

	res, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, strings.Contains(string(body), "revision_http_requests_total"))
}

func TestUserFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "system", userFromRequest(r).ID)

	r.Header.Set(userIDHeader, "u-1")
	user := userFromRequest(r)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "u-1", user.Name)

	r.Header.Set(userNameHeader, "Ada")
	assert.Equal(t, "Ada", userFromRequest(r).Name)
}
