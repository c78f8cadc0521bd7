package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/timmy/sitequeue/internal/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(LoggerMiddleware(logger.New(&logger.Config{Level: "error", Output: io.Discard})))
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"admin_id":   AdminID(c),
			"request_id": logger.GetRequestID(c.Request.Context()),
			"log_admin":  GetLogger(c).Data[logger.FieldAdminID],
		})
	})
	return r
}

func serve(r http.Handler, method string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/ping", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoggerMiddleware_RequestID(t *testing.T) {
	r := newEngine()

	w := serve(r, http.MethodGet, map[string]string{HeaderRequestID: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
	assert.Contains(t, w.Body.String(), `"request_id":"abc-123"`)

	w = serve(r, http.MethodGet, nil)
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

func TestAdminIdentity(t *testing.T) {
	r := newEngine(AdminIdentity())

	w := serve(r, http.MethodGet, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, map[string]string{HeaderAdminID: "  "})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, map[string]string{HeaderAdminID: "system"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, http.MethodGet, map[string]string{HeaderAdminID: " alice "})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"admin_id":"alice"`)
	assert.Contains(t, w.Body.String(), `"log_admin":"alice"`)
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS(CORSConfig{AllowedOrigins: []string{"https://wizard.example.com/"}}))

	w := serve(r, http.MethodGet, map[string]string{"Origin": "https://wizard.example.com"})
	assert.Equal(t, "https://wizard.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = serve(r, http.MethodGet, map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodOptions, map[string]string{"Origin": "https://wizard.example.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderAdminID)
}

func TestCORS_AllowAll(t *testing.T) {
	r := newEngine(CORS(CORSConfig{AllowAllOrigins: true}))
	w := serve(r, http.MethodGet, map[string]string{"Origin": "https://any.example.com"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}
