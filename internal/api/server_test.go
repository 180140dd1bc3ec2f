package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/model"
	"github.com/t77yq/comment-evaluator/internal/storage"
	"github.com/t77yq/comment-evaluator/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Evaluation
	err    error
}

func (p *recordingPublisher) EvaluationCreated(_ context.Context, e model.Evaluation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type countingFetcher struct {
	calls int
	files []string
	err   error
}

func (f *countingFetcher) FetchDatasets(context.Context) error {
	f.calls++
	return f.err
}

func (f *countingFetcher) FetchDataset(_ context.Context, name string) error {
	f.files = append(f.files, name)
	return f.err
}

type testEnv struct {
	router    *gin.Engine
	store     *storage.SQLStore
	publisher *recordingPublisher
	fetcher   *countingFetcher
	dataDir   string
}

func newTestEnv(t *testing.T, withData bool) *testEnv {
	t.Helper()

	dataDir := t.TempDir()
	if withData {
		testutil.WriteSampleData(t, dataDir)
	}

	store, err := storage.NewSQLiteStore(zap.NewNop(), filepath.Join(t.TempDir(), "eval.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Init(context.Background()))

	env := &testEnv{
		store:     store,
		publisher: &recordingPublisher{},
		fetcher:   &countingFetcher{},
		dataDir:   dataDir,
	}
	srv := NewServer(zap.NewNop(), dataset.NewCache(dataDir, zap.NewNop()), store,
		WithPublisher(env.publisher),
		WithFetcher(env.fetcher))
	env.router = srv.Router()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestAlertCatalogRoutes(t *testing.T) {
	env := newTestEnv(t, true)

	cases := []struct {
		path string
		want []string
	}{
		{"/alerts", []string{"A1", "A2", "A3"}},
		{"/alerts?component=Engine", []string{"A1", "A3"}},
		{"/alerts?component=All&label=oil_only", []string{"A2"}},
		{"/alerts?unit=U9", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tc.path, nil)
			require.Equal(t, http.StatusOK, w.Code)
			body := decode[struct {
				Alerts []string `json:"alerts"`
			}](t, w)
			assert.Equal(t, tc.want, body.Alerts)
		})
	}

	w := env.do(t, http.MethodGet, "/alerts/filters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"components":["All","Engine","Transmission"]`)

	w = env.do(t, http.MethodGet, "/alerts/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_alerts":4,"alerts_with_comments":3,"alerts_without_comments":1}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/alerts/A3/next", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"alert_id":"A1"}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/alerts/A4/next", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAlertContextRoutes(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodGet, "/alerts/A1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	alert := decode[model.Alert](t, w)
	assert.Equal(t, "U1", alert.UnitID)
	require.NotNil(t, alert.OilMeter)
	assert.Equal(t, "M-100", *alert.OilMeter)

	w = env.do(t, http.MethodGet, "/alerts/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	errBody := decode[ErrorEnvelope](t, w)
	assert.Equal(t, codeNotFound, errBody.Error.Code)

	w = env.do(t, http.MethodGet, "/alerts/A1/oil/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snapshot := decode[struct {
		Snapshot []struct {
			ElementName string  `json:"element_name"`
			Value       float64 `json:"value"`
			BreachLevel string  `json:"breach_level"`
		} `json:"snapshot"`
	}](t, w)
	require.Len(t, snapshot.Snapshot, 4)
	assert.Equal(t, "Iron", snapshot.Snapshot[0].ElementName)
	assert.Equal(t, 50.0, snapshot.Snapshot[0].Value)
	assert.Equal(t, "critical", snapshot.Snapshot[0].BreachLevel)

	w = env.do(t, http.MethodGet, "/alerts/A1/oil", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]json.RawMessage](t, w)["measurements"], 5)

	w = env.do(t, http.MethodGet, "/alerts/A1/telemetry", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]json.RawMessage](t, w)["measurements"], 6)

	w = env.do(t, http.MethodGet, "/alerts/A1/telemetry/breaches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	breaches := decode[map[string][]struct {
		VariableName string `json:"variable_name"`
	}](t, w)["breaches"]
	require.Len(t, breaches, 3)
	assert.Equal(t, "OilPressure", breaches[0].VariableName)

	w = env.do(t, http.MethodGet, "/alerts/A1/telemetry/trend/OilPressure", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"variable_name":"OilPressure"`)

	w = env.do(t, http.MethodGet, "/alerts/A2/telemetry", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"measurements":[]}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/alerts/A1/comments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]model.AIComment](t, w)["comments"], 2)
}

func TestCreateEvaluation(t *testing.T) {
	env := newTestEnv(t, true)

	t.Run("invalid grade", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/evaluations", map[string]any{"ai_comment_id": "C1", "alert_id": "A1", "grade": 9})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, codeValidation, decode[ErrorEnvelope](t, w).Error.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/evaluations", `{"grade":`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, codeBadRequest, decode[ErrorEnvelope](t, w).Error.Code)
	})

	count, err := env.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	t.Run("created", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/evaluations", map[string]any{
			"ai_comment_id": "C1",
			"alert_id":      "A1",
			"grade":         7,
			"user_id":       "alice",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		created := decode[model.Evaluation](t, w)
		assert.NotZero(t, created.EvaluationID)
		assert.Equal(t, 7, created.Grade)

		require.Len(t, env.publisher.events, 1)
		assert.Equal(t, created.EvaluationID, env.publisher.events[0].EvaluationID)
	})

	t.Run("publish failure keeps the evaluation", func(t *testing.T) {
		env.publisher.err = errors.New("nats down")
		defer func() { env.publisher.err = nil }()

		w := env.do(t, http.MethodPost, "/evaluations", map[string]any{"ai_comment_id": "C2", "alert_id": "A1", "grade": 4})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	w := env.do(t, http.MethodGet, "/comments/C1/evaluated", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ai_comment_id":"C1","evaluated":true}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/comments/C1/evaluated?user_id=bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ai_comment_id":"C1","evaluated":false}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/alerts/A1/evaluations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]model.Evaluation](t, w)["evaluations"], 2)

	w = env.do(t, http.MethodGet, "/comments/C3/evaluations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"evaluations":[]}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/evaluations/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[storage.Stats](t, w)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.UniqueComments)
	assert.Equal(t, 1, stats.UniqueEvaluators)
	assert.True(t, stats.Exists)
}

func TestStorageFailures(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.store.Close())

	w := env.do(t, http.MethodPost, "/evaluations", map[string]any{"ai_comment_id": "C1", "alert_id": "A1", "grade": 5})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, codeStorage, decode[ErrorEnvelope](t, w).Error.Code)
	assert.Empty(t, env.publisher.events)

	w = env.do(t, http.MethodGet, "/evaluations/stats", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database_path")

	w = env.do(t, http.MethodGet, "/analytics/summary", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMissingDataset(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/alerts", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, codeDataUnavailable, decode[ErrorEnvelope](t, w).Error.Code)

	w = env.do(t, http.MethodGet, "/files", nil)
	require.Equal(t, http.StatusOK, w.Code)
	files := decode[struct {
		Files map[string]bool `json:"files"`
	}](t, w).Files
	assert.Len(t, files, len(dataset.Files))
	for _, ok := range files {
		assert.False(t, ok)
	}

	w = env.do(t, http.MethodPost, "/admin/reload", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 1, env.fetcher.calls)

	testutil.WriteSampleData(t, env.dataDir)
	w = env.do(t, http.MethodPost, "/admin/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alerts_count":3`)

	w = env.do(t, http.MethodGet, "/data/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"comment_types":["baseline","rule_based","prompt_v2"]`)
}

func TestReloadSingleFile(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodPost, "/admin/reload?file="+dataset.OilFile, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{dataset.OilFile}, env.fetcher.files)
	assert.Zero(t, env.fetcher.calls)

	w = env.do(t, http.MethodPost, "/admin/reload?file=passwords.parquet", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, codeBadRequest, decode[ErrorEnvelope](t, w).Error.Code)
	assert.Contains(t, w.Body.String(), "unknown dataset")
	assert.Len(t, env.fetcher.files, 1)
}

func TestAnalyticsRoutes(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	notes := "too vague"
	for _, in := range []model.EvaluationCreate{
		{AICommentID: "C1", AlertID: "A1", Grade: 7},
		{AICommentID: "C2", AlertID: "A1", Grade: 3, Notes: &notes},
		{AICommentID: "C4", AlertID: "A3", Grade: 5},
		{AICommentID: "C9", AlertID: "A99", Grade: 1},
	} {
		_, err := env.store.Create(ctx, in)
		require.NoError(t, err)
	}

	w := env.do(t, http.MethodGet, "/analytics/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_evaluations":4,"unique_comments":4,"unique_alerts":3,"average_grade":4}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/analytics/grades", nil)
	require.Equal(t, http.StatusOK, w.Code)
	grades := decode[map[string][]struct {
		CommentType string `json:"comment_type"`
		Count       int    `json:"count"`
	}](t, w)["grades"]
	require.Len(t, grades, 3)
	assert.Equal(t, "Unknown", grades[0].CommentType)
	assert.Equal(t, "baseline", grades[1].CommentType)
	assert.Equal(t, 2, grades[1].Count)

	w = env.do(t, http.MethodGet, "/analytics/distribution", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"distribution":[{"grade":1,"count":1},{"grade":3,"count":1},{"grade":5,"count":1},{"grade":7,"count":1}]}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/analytics/notes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_with_notes":1`)

	w = env.do(t, http.MethodGet, "/analytics/evaluations?comment_type=baseline&notes=without", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string]json.RawMessage](t, w), 2)
	rows := decode[struct {
		Evaluations []struct {
			AICommentID string `json:"ai_comment_id"`
			CommentType string `json:"comment_type"`
		} `json:"evaluations"`
	}](t, w).Evaluations
	require.Len(t, rows, 2)
	assert.Equal(t, "C4", rows[0].AICommentID, "newest first")

	w = env.do(t, http.MethodGet, "/analytics/evaluations?grade=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
