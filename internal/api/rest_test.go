package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/waschgehtab/washd/internal/notify"
	"github.com/waschgehtab/washd/internal/server"
	"github.com/waschgehtab/washd/internal/storage"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store, err := storage.NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	srv := server.New(store, &notify.Capture{}, zap.NewNop())
	return NewHTTPHandler(srv, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, uid string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if uid != "" {
		req.Header.Set("X-User-Id", uid)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return rec, out
}

func register(t *testing.T, h http.Handler, uid, name string) {
	t.Helper()
	rec, _ := do(t, h, http.MethodPost, "/register", uid, map[string]string{"name": name})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingUserHeader(t *testing.T) {
	h := newTestHandler(t)
	rec, out := do(t, h, http.MethodPost, "/start", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, out["error"], "X-User-Id")
}

func TestUnregisteredUserForbidden(t *testing.T) {
	h := newTestHandler(t)
	rec, _ := do(t, h, http.MethodPost, "/start", "u-ghost", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStatusOfFreshMachine(t *testing.T) {
	h := newTestHandler(t)
	rec, out := do(t, h, http.MethodGet, "/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := out["status"].(map[string]interface{})
	require.Equal(t, "free", status["phase"])
}

func TestStartConflictCarriesSnapshot(t *testing.T) {
	h := newTestHandler(t)
	register(t, h, "u-anna", "Anna")
	register(t, h, "u-ben", "Ben")

	rec, out := do(t, h, http.MethodPost, "/start", "u-anna", map[string]int64{"duration_ms": 60000})
	require.Equal(t, http.StatusOK, rec.Code)
	status := out["status"].(map[string]interface{})
	require.Equal(t, "busy", status["phase"])
	require.NotNil(t, status["timer"])

	rec, out = do(t, h, http.MethodPost, "/start", "u-ben", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "not_free", out["error"])
	snap := out["snapshot"].(map[string]interface{})
	holder := snap["status"].(map[string]interface{})["holder"].(map[string]interface{})
	require.Equal(t, "u-anna", holder["uid"])
}

func TestHandoffOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	register(t, h, "u-anna", "Anna")
	register(t, h, "u-ben", "Ben")

	rec, _ := do(t, h, http.MethodPost, "/start", "u-anna", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := do(t, h, http.MethodPost, "/queue/join", "u-ben", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entryID := out["entry_id"].(string)
	require.NotEmpty(t, entryID)

	rec, out = do(t, h, http.MethodPost, "/finish", "u-anna", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := out["status"].(map[string]interface{})
	require.Equal(t, "paused", status["phase"])

	// The bystander cannot accept.
	rec, out = do(t, h, http.MethodPost, "/accept", "u-anna", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "not_eligible", out["error"])

	rec, out = do(t, h, http.MethodPost, "/accept", "u-ben", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status = out["status"].(map[string]interface{})
	require.Equal(t, "busy", status["phase"])
	require.Empty(t, out["queue"])
}

func TestLeaveAbsentEntrySucceeds(t *testing.T) {
	h := newTestHandler(t)
	register(t, h, "u-anna", "Anna")

	rec, _ := do(t, h, http.MethodPost, "/queue/leave", "u-anna", map[string]string{"entry_id": "long-gone"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLeaveRequiresEntryID(t *testing.T) {
	h := newTestHandler(t)
	register(t, h, "u-anna", "Anna")

	rec, _ := do(t, h, http.MethodPost, "/queue/leave", "u-anna", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcceptInWrongPhase(t *testing.T) {
	h := newTestHandler(t)
	register(t, h, "u-anna", "Anna")

	rec, out := do(t, h, http.MethodPost, "/accept", "u-anna", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "wrong_phase", out["error"])
}

func TestRegisterValidation(t *testing.T) {
	h := newTestHandler(t)
	rec, _ := do(t, h, http.MethodPost, "/register", "u-anna", map[string]string{"name": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
