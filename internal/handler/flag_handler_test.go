package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stmtrules/internal/featureflag"
	"stmtrules/internal/handler"
	"stmtrules/internal/service"
)

func flagRouter(t *testing.T) *gin.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := featureflag.New(featureflag.WithLogger(logger))
	require.NoError(t, err)
	flags := service.NewFlagService(engine, nil, logger)

	r := gin.New()
	fh := handler.NewFlagHandler(flags)
	r.POST("/flags/:name/evaluate", fh.Evaluate)
	r.POST("/flags/evaluate", fh.Enabled)
	r.POST("/fallback/select", handler.NewFallbackHandler(flags).Select)
	return r
}

// chunkedEmpty builds a request whose body is empty but whose length is
// unknown, as sent with Transfer-Encoding: chunked.
func chunkedEmpty(t *testing.T, path string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, path, nil)
	require.NoError(t, err)
	req.Body = io.NopCloser(strings.NewReader(""))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestFlagHandler_EmptyChunkedBodyMeansNoContext(t *testing.T) {
	r := flagRouter(t)

	for _, path := range []string{"/flags/quality-monitoring/evaluate", "/flags/evaluate", "/fallback/select"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, chunkedEmpty(t, path))

		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "success", decode(t, w).Status, path)
	}
}

func TestFlagHandler_Evaluate_WithContext(t *testing.T) {
	r := flagRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/flags/quality-monitoring/evaluate", map[string]string{"userId": "u1"}))

	require.Equal(t, http.StatusOK, w.Code)
	data, ok := decode(t, w).Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["enabled"])
}

func TestFlagHandler_Evaluate_MalformedBody(t *testing.T) {
	r := flagRouter(t)

	req, err := http.NewRequest(http.MethodPost, "/flags/quality-monitoring/evaluate", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Code)
}
