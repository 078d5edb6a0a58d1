package fileserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/samber/lo"
)

var allowedMethods = []string{http.MethodGet, http.MethodHead}

// Options configures a Handler
type Options struct {
	// Workers は同時に処理するリクエスト数
	Workers int
	// MIME は拡張子ごとの Content-Type の上書き
	MIME map[string]string
}

// DefaultOptions returns options that handle one request at a time with no MIME overrides
func DefaultOptions() Options {
	return Options{
		Workers: 1,
	}
}

// Handler は root 以下のファイルを配信する http.Handler
type Handler struct {
	files http.Handler
	mime  map[string]string
	pool  *workerpool.WorkerPool

	mu     sync.RWMutex
	closed bool
}

var _ http.Handler = (*Handler)(nil)

func New(root string, options Options) *Handler {
	workers := options.Workers
	if workers < 1 {
		workers = 1
	}

	return &Handler{
		files: http.FileServer(http.Dir(root)),
		mime:  options.MIME,
		pool:  workerpool.New(workers),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	defer func() {
		slog.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.statusCode),
			slog.Int64("bytes", rw.written),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("duration", time.Since(start)),
		)
	}()

	if !lo.Contains(allowedMethods, r.Method) {
		rw.Header().Set("Allow", strings.Join(allowedMethods, ", "))
		http.Error(rw, fmt.Sprintf("Unsupported method ('%s')", r.Method), http.StatusNotImplemented)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		http.Error(rw, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	h.pool.SubmitWait(func() {
		h.serve(rw, r)
	})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	if ctype, ok := h.contentType(r.URL.Path); ok {
		w.Header().Set("Content-Type", ctype)
	}

	h.files.ServeHTTP(w, r)
}

// contentType は拡張子の完全一致、次に小文字化した拡張子で上書きを探す
func (h *Handler) contentType(p string) (string, bool) {
	ext := path.Ext(p)
	if ext == "" {
		return "", false
	}

	if ctype, ok := h.mime[ext]; ok {
		return ctype, true
	}

	ctype, ok := h.mime[strings.ToLower(ext)]
	return ctype, ok
}

// Close は処理中のリクエストを待ってからワーカーを停止する。以降のリクエストは 503 になる。
func (h *Handler) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.pool.StopWait()
}

// responseWriter wraps http.ResponseWriter to capture status code and body size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
