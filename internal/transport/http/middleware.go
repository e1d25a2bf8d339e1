package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// statusResponseWriter обёртка для http.ResponseWriter, чтобы захватывать статус-код
// и передавать его дальше
type statusResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

// WriteHeader сохраняет статус и вызывает оригинальный WriteHeader
func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// LoggingMiddleware пишет в zap метод, путь, статус и длительность каждого HTTP-запроса
func LoggingMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			srw := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(srw, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", srw.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// RecoveryMiddleware перехватывает панику обработчика и отвечает 500 с общим сообщением
func RecoveryMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			srw := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic recovered",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.Stack("stack"))
				// заголовки уже ушли клиенту, дописать ответ нельзя
				if srw.wroteHeader {
					return
				}
				writeError(srw, http.StatusInternalServerError, MsgInternalError)
			}()
			next.ServeHTTP(srw, r)
		})
	}
}

// CacheControlMiddleware выставляет заголовки кэширования:
// ассеты (/assets и пути с расширением) кэшируются на год, остальное не кэшируется
func CacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/assets") || strings.Contains(r.URL.Path, ".") {
			w.Header().Set("Cache-Control", "public, max-age=31536000")
		} else {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}
		next.ServeHTTP(w, r)
	})
}
