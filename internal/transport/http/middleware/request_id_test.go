package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.NewNop()))
	r.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})
	return r
}

func TestRequestIDGenerated(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))

	id := w.Header().Get(HeaderRequestID)
	if len(id) != 36 {
		t.Fatalf("expected uuid request id, got %q", id)
	}
	if w.Body.String() != id {
		t.Fatalf("context id %q differs from header %q", w.Body.String(), id)
	}
}

func TestRequestIDReusesInbound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(HeaderRequestID, "trace-123")
	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, req)

	if got := w.Header().Get(HeaderRequestID); got != "trace-123" {
		t.Fatalf("expected inbound id, got %q", got)
	}
}

func TestRequestIDReplacesOversizedInbound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLen+1))
	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, req)

	if got := w.Header().Get(HeaderRequestID); len(got) != 36 {
		t.Fatalf("expected replacement uuid, got %q", got)
	}
}
