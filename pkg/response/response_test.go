package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/middleware/requestid"
)

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", h)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestJSONCarriesRequestID(t *testing.T) {
	w, env := serve(t, func(c *gin.Context) {
		JSON(c, http.StatusOK, gin.H{"ok": true}, nil, map[string]interface{}{"cache_hit": false})
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "req-42", env.Meta["request_id"])
	assert.Equal(t, false, env.Meta["cache_hit"])
}

func TestErrorMapsAppErrors(t *testing.T) {
	w, env := serve(t, func(c *gin.Context) {
		Error(c, appErrors.Clone(appErrors.ErrInvalidDate, "invalid date \"2025-02-30\""))
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_DATE", env.Error.Code)
	assert.Equal(t, "req-42", env.Meta["request_id"])
}

func TestErrorHidesUnexpectedCauses(t *testing.T) {
	var recorded int
	w, env := serve(t, func(c *gin.Context) {
		Error(c, errors.New("pq: connection reset"))
		recorded = len(c.Errors)
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
	assert.Equal(t, 1, recorded)
}
