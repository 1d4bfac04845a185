package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"godex/domain/core"
	"godex/internal/config"
	"godex/internal/errors"
	"godex/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(config.Default(), nil, WithFitter(testkit.NewLinearFitter()))
	require.NoError(t, err)
	return s
}

func requestBody(t *testing.T, cfg testkit.CountsConfig, mutate func(*TestRequest)) *bytes.Reader {
	t.Helper()
	c := testkit.GenerateCounts(cfg)
	n, g := c.X.Dims()
	req := TestRequest{Genes: c.Genes, Grouping: c.Grouping, Test: "t-test"}
	for i := 0; i < n; i++ {
		row := make([]float64, g)
		for j := range row {
			row[j] = c.X.At(i, j)
		}
		req.X = append(req.X, row)
	}
	if mutate != nil {
		mutate(&req)
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return bytes.NewReader(body)
}

type summaryResponse struct {
	RunID string           `json:"run_id"`
	Rows  []map[string]any `json:"rows"`
}

func post(t *testing.T, s *Server, path string, body *bytes.Reader) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, body))
	return rec
}

func TestTwoSampleEndpoint(t *testing.T) {
	s := newTestServer(t)
	cfg := testkit.DefaultCountsConfig()
	cfg.Effects[0] = []float64{1, 4}
	rec := post(t, s, "/v1/two-sample", requestBody(t, cfg, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, resp.RunID, rec.Header().Get("X-Run-ID"))
	require.Len(t, resp.Rows, 5)
	assert.Equal(t, "gene0", resp.Rows[0]["gene"])
	assert.Less(t, resp.Rows[0]["pval"].(float64), 0.001)
}

func TestTwoSampleThresholdAndFormat(t *testing.T) {
	s := newTestServer(t)
	cfg := testkit.DefaultCountsConfig()
	cfg.Effects[0] = []float64{1, 4}
	q := 0.01
	rec := post(t, s, "/v1/two-sample?format=csv", requestBody(t, cfg, func(r *TestRequest) {
		r.Threshold.QvalMax = &q
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, "gene,pval,qval,log2fc,mean,zero_mean,zero_variance", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "gene0,"))
}

func TestPairwiseEndpoint(t *testing.T) {
	s := newTestServer(t)
	cfg := testkit.DefaultCountsConfig()
	cfg.Groups = []string{"a", "b", "c"}
	cfg.Effects[1] = []float64{1, 1, 5}

	rec := post(t, s, "/v1/pairwise", requestBody(t, cfg, func(r *TestRequest) { r.Test, r.NoiseModel = "z-test", "nb" }))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = post(t, s, "/v1/pairwise", requestBody(t, cfg, func(r *TestRequest) {
		r.Test, r.NoiseModel, r.Lazy, r.Group0, r.Group1 = "z-test", "nb", true, "a", "c"
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Greater(t, resp.Rows[1]["log2fc"].(float64), 1.0)

	rec = post(t, s, "/v1/pairwise", requestBody(t, cfg, func(r *TestRequest) { r.Test, r.NoiseModel, r.Lazy = "z-test", "nb", true }))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = post(t, s, "/v1/pairwise", requestBody(t, cfg, func(r *TestRequest) { r.Group0, r.Group1 = "a", "zzz" }))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVersusRestEndpoint(t *testing.T) {
	s := newTestServer(t)
	cfg := testkit.DefaultCountsConfig()
	cfg.Groups = []string{"a", "b", "c"}
	rec := post(t, s, "/v1/versus-rest?format=markdown", requestBody(t, cfg, func(r *TestRequest) { r.Group = "b" }))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "| gene | pval |")
}

func TestErrorResponses(t *testing.T) {
	s := newTestServer(t)
	cfg := testkit.DefaultCountsConfig()

	rec := post(t, s, "/v1/two-sample", bytes.NewReader([]byte("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeInvalidInput, body["code"])

	rec = post(t, s, "/v1/two-sample", requestBody(t, cfg, func(r *TestRequest) { r.Test = "anova" }))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, s, "/v1/two-sample", requestBody(t, cfg, func(r *TestRequest) { r.X[1] = r.X[1][:2] }))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, s, "/v1/two-sample?format=pdf", requestBody(t, cfg, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	post(t, s, "/v1/two-sample", requestBody(t, testkit.DefaultCountsConfig(), nil))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `godex_tests_total{endpoint="two-sample",status="ok",test="t-test"} 1`)
}

func TestClientRunID(t *testing.T) {
	s := newTestServer(t)
	id := core.NewRunID().String()

	req := httptest.NewRequest(http.MethodPost, "/v1/two-sample", requestBody(t, testkit.DefaultCountsConfig(), nil))
	req.Header.Set("X-Run-ID", id)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, rec.Header().Get("X-Run-ID"))

	req = httptest.NewRequest(http.MethodPost, "/v1/two-sample", requestBody(t, testkit.DefaultCountsConfig(), nil))
	req.Header.Set("X-Run-ID", "not-a-uuid")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
