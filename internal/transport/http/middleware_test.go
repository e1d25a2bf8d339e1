package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"DoeInteligente/internal/model"
)

// TestLoggingMiddleware_Success проверяет, что middleware логирует метод, путь и статус
func TestLoggingMiddleware_Success(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	// Простая цель-обработчик, возвращает 201 и тело
	handler := LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPut, "/test-path?x=1", nil)
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)

	require.Equal(t, http.StatusCreated, rw.Code)
	require.Equal(t, "ok", rw.Body.String())

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "PUT", fields["method"])
	require.Equal(t, "/test-path", fields["path"])
	require.EqualValues(t, http.StatusCreated, fields["status"])
}

// TestRecoveryMiddleware_Panic проверяет ответ 500 с общим сообщением и запись паники в лог
func TestRecoveryMiddleware_Panic(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	h := LoggingMiddleware(log)(RecoveryMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom error")
	})))

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rw := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(rw, req) })

	require.Equal(t, http.StatusInternalServerError, rw.Code)
	var resp model.APIResponse
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &resp))
	require.False(t, resp.OK)
	require.Equal(t, "Erro interno do servidor", resp.Error)

	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	access := logs.FilterMessage("http request").All()
	require.Len(t, access, 1)
	require.EqualValues(t, http.StatusInternalServerError, access[0].ContextMap()["status"])
}

// TestRecoveryMiddleware_HeadersAlreadySent проверяет, что ответ не переписывается после начала записи
func TestRecoveryMiddleware_HeadersAlreadySent(t *testing.T) {
	h := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusAccepted, rw.Code)
	require.Empty(t, rw.Body.String())
}

// TestCacheControlMiddleware проверяет заголовки для ассетов и страниц
func TestCacheControlMiddleware(t *testing.T) {
	h := CacheControlMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	cases := map[string]string{
		"/assets/index-abc.js": "public, max-age=31536000",
		"/favicon.ico":         "public, max-age=31536000",
		"/solicitacoes":        "no-cache, no-store, must-revalidate",
		"/api/ongs":            "no-cache, no-store, must-revalidate",
	}
	for path, want := range cases {
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, want, rw.Header().Get("Cache-Control"), path)
	}

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "no-cache", rw.Header().Get("Pragma"))
	require.Equal(t, "0", rw.Header().Get("Expires"))
}
