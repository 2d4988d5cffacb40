package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkit/cloudkit/pkg/errors"
)

func serve(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var body map[string]any
	if rec.Code != http.StatusMethodNotAllowed {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHandler_Health(t *testing.T) {
	tr := newTracker()
	tr.Register("analytics")
	tr.Register("storage")
	h := tr.Handler()

	rec, body := serve(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 2, body["categories"])

	failure := errors.Storage(errors.ErrCodeAccessDenied, "denied", "check credentials")
	for i := 0; i < 4; i++ {
		tr.RecordCheck("storage", failure)
	}

	rec, body = serve(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", body["status"])

	rec, body = serve(t, h, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["ready"])

	rec, body = serve(t, h, http.MethodGet, "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["alive"])
}

func TestHandler_Categories(t *testing.T) {
	tr := newTracker()
	tr.Register("storage")
	tr.RecordCheck("storage", errors.Storage(errors.ErrCodeTransferFailed, "timeout", "retry"))

	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/categories", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []categoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "storage", got[0].Category)
	assert.Equal(t, "healthy", got[0].State)
	assert.Equal(t, 1, got[0].ConsecutiveErrors)
	assert.NotEmpty(t, got[0].LastError)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	rec, _ := serve(t, newTracker().Handler(), http.MethodPost, "/health")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}
