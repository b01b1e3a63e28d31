package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"fame/internal/app"
	"fame/internal/config"
	"fame/internal/database"
	"fame/internal/diet"
	"fame/internal/llm"
	"fame/internal/metrics"
	"fame/internal/notify"
	"fame/internal/planner"
	"fame/internal/profile"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *TokenIssuer) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.NewDB(filepath.Join(dir, "fame.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	plans := planner.NewPlanRepository(db.SQL)
	a := app.NewApp(app.Dependencies{
		Profiles:  profile.NewRepository(db.SQL),
		Plans:     plans,
		Planner:   planner.NewPlanner(planner.NewPromptComposer(""), llm.NewClient(nil, time.Second, logger), plans, logger),
		Importer:  diet.NewImporter(nil),
		Metrics:   metrics.NewStore(db.SQL),
		Collector: metrics.NewProviderCollector(prometheus.NewRegistry()),
		Mailer:    notify.NewLogSender(logger),
		Config:    &config.Config{},
		Logger:    logger,
	})

	tokens := NewTokenIssuer(testSecret, time.Hour)
	r := NewRouter(RouterConfig{
		Handler:        NewHandler(a, logger),
		Tokens:         tokens,
		AllowedOrigins: []string{"http://localhost:8081"},
		Logger:         logger,
	})
	return r, tokens
}

func doRequest(t *testing.T, r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodePlan(t *testing.T, w *httptest.ResponseRecorder) planResponse {
	t.Helper()
	var resp planResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)

	token, err := issuer.Issue("42")
	require.NoError(t, err)

	sub, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "42", sub)

	_, err = NewTokenIssuer("other-secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	later := NewTokenIssuer(testSecret, time.Hour)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Issue("")
	assert.Error(t, err)
}

func TestHealthAndRequestID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/plans", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:8081", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPIRequiresToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet, "/api/v1/plans", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/plans", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlanEndpoints(t *testing.T) {
	r, tokens := newTestRouter(t)
	token, err := tokens.Issue("7")
	require.NoError(t, err)

	w := doRequest(t, r, http.MethodPut, "/api/v1/profile", token, map[string]interface{}{
		"region":       "Toscana",
		"disliked":     "funghi, , olive",
		"api_provider": "Mistral",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodPost, "/api/v1/plans", token, map[string]string{"week": "2024-01-15"})
	assert.Equal(t, http.StatusNotFound, w.Code, "unknown user")

	w = doRequest(t, r, http.MethodPut, "/api/v1/profile", token, map[string]interface{}{
		"region":   "Toscana",
		"disliked": "funghi, , olive",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(t, r, http.MethodPost, "/api/v1/plans", token, map[string]string{"week": "2024-01-15"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "no diet yet")

	w = doRequest(t, r, http.MethodPut, "/api/v1/profile", token, map[string]interface{}{
		"diet":         "Pranzo: 80g pasta\nCena: 150g pesce",
		"api_provider": "Claude",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var prof map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prof))
	assert.Equal(t, "Toscana", prof["region"])
	assert.Equal(t, "funghi, olive", prof["disliked"])
	assert.Equal(t, "claude", prof["api_provider"])
	assert.Equal(t, "text", prof["diet_source"])
	assert.NotContains(t, prof, "api_key")

	w = doRequest(t, r, http.MethodPost, "/api/v1/plans", token, map[string]string{"week": "2024-01-16"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodPost, "/api/v1/plans", token, map[string]string{"week": "2024-01-15"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodePlan(t, w)
	assert.Equal(t, "2024-01-15", created.WeekStart)
	assert.True(t, created.Demo)
	assert.True(t, created.Structured)
	assert.NotEmpty(t, created.Document)
	assert.Contains(t, created.ShoppingListHTML, `class="shopping-category`)
	assert.Contains(t, created.Plan, "LUNEDÌ")

	w = doRequest(t, r, http.MethodGet, "/api/v1/plans", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.Plan, decodePlan(t, w).Plan)

	w = doRequest(t, r, http.MethodGet, "/api/v1/plans/2024-01-15", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/plans/2024-01-22", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, r, http.MethodDelete, "/api/v1/plans/2024-01-15/meals/Monday/lunch", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edited := decodePlan(t, w)
	assert.Contains(t, edited.ShoppingList, planner.StaleShoppingListNote)
	assert.NotEqual(t, created.Plan, edited.Plan)

	w = doRequest(t, r, http.MethodDelete, "/api/v1/plans/2024-01-15/meals/monday/lunch", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, r, http.MethodDelete, "/api/v1/plans/2024-01-15/meals/someday/lunch", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodDelete, "/api/v1/plans/2024-01-15/meals/monday/brunch", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodDelete, "/api/v1/plans/2024-01-22/meals/monday/dinner", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProfileFailedDietKeepsProfile(t *testing.T) {
	r, tokens := newTestRouter(t)
	token, err := tokens.Issue("7")
	require.NoError(t, err)

	w := doRequest(t, r, http.MethodPut, "/api/v1/profile", token, map[string]interface{}{"region": "Toscana"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(t, r, http.MethodPut, "/api/v1/profile", token, map[string]interface{}{
		"region": "Sicilia",
		"diet":   "<html><body><script>track()</script></body></html>",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = doRequest(t, r, http.MethodPut, "/api/v1/profile", token, map[string]interface{}{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var prof map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prof))
	assert.Equal(t, "Toscana", prof["region"])
	assert.NotContains(t, prof, "diet_source")

	w = doRequest(t, r, http.MethodPost, "/api/v1/plans", token, map[string]string{"week": "2024-01-15"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "the rejected diet was not stored")
}
