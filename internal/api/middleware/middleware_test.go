package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw)
	router.POST("/probe", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	router := newRouter(RequestID())

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/probe", nil)
	router.ServeHTTP(recorder, req)

	assert.NotEmpty(t, recorder.Header().Get("X-Request-ID"))
}

func TestRequestIDPreservesIncoming(t *testing.T) {
	router := newRouter(RequestID())

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/probe", nil)
	req.Header.Set("X-Request-ID", "req-123")
	router.ServeHTTP(recorder, req)

	assert.Equal(t, "req-123", recorder.Header().Get("X-Request-ID"))
}

func TestAPIKeyDisabledWhenEmpty(t *testing.T) {
	router := newRouter(APIKey(""))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/probe", nil)
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestAPIKeyRejectsMissingOrWrongKey(t *testing.T) {
	router := newRouter(APIKey("secret-key"))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/probe", nil)
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/probe", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/probe", nil)
	req.Header.Set("Authorization", "secret-key") // missing Bearer prefix
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAPIKeyAcceptsCorrectKey(t *testing.T) {
	router := newRouter(APIKey("secret-key"))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/probe", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestRateLimitBlocksAfterBurst(t *testing.T) {
	router := newRouter(RateLimit(2))

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/probe", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(recorder, req)
		statuses = append(statuses, recorder.Code)
	}

	assert.Equal(t, http.StatusOK, statuses[0])
	assert.Equal(t, http.StatusOK, statuses[1])
	assert.Equal(t, http.StatusTooManyRequests, statuses[2])
}
