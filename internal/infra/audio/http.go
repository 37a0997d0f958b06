package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"buddy/internal/application"
)

const maxClipBytes = 10 << 20

// HTTPSource accepts audio clips over HTTP and replays them as frames. It
// stands in for a microphone on headless hosts and in end-to-end tests.
type HTTPSource struct {
	addr      string
	authToken string
	feeder    *clipFeeder
	limiter   *RateLimiter
	mux       *http.ServeMux
	logger    *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewHTTPSource(addr, authToken string, format application.AudioFormat, logger *slog.Logger) *HTTPSource {
	h := &HTTPSource{
		addr:      addr,
		authToken: authToken,
		feeder:    newClipFeeder(format, 10),
		limiter:   NewRateLimiter(30, time.Minute),
		mux:       http.NewServeMux(),
		logger:    logger.With("component", "audio.http"),
	}
	h.mux.HandleFunc("POST /audio", h.limiter.Middleware(h.requireToken(h.handleAudio)))
	h.mux.HandleFunc("GET /health", h.handleHealth)
	return h
}

func (h *HTTPSource) Name() string {
	return "http"
}

// Start binds the listener before returning so address errors surface here.
func (h *HTTPSource) Start(ctx context.Context, sink application.FrameSink) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.listener = ln
	h.server = &http.Server{
		Handler:      h.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		h.feeder.run(ctx, sink)
	}()
	go func(srv *http.Server) {
		defer h.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("serving audio ingest", "error", err)
		}
	}(h.server)

	h.logger.Info("accepting audio over HTTP", "addr", ln.Addr().String())
	return nil
}

func (h *HTTPSource) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if serr := h.server.Shutdown(ctx); serr != nil {
		h.logger.Warn("graceful shutdown failed, forcing close", "error", serr)
		if cerr := h.server.Close(); cerr != nil {
			err = fmt.Errorf("closing server: %w", cerr)
		}
	}

	h.cancel()
	h.wg.Wait()
	h.server = nil
	h.listener = nil
	return err
}

// Addr is the bound listen address, or "" before Start.
func (h *HTTPSource) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

func (h *HTTPSource) Handler() http.Handler {
	return h.mux
}

// InjectAudio queues samples as if they had been posted.
func (h *HTTPSource) InjectAudio(samples []int16) bool {
	return h.feeder.enqueue(samples)
}

// requireToken accepts the token from the X-Auth-Token header or the token
// query parameter. An empty configured token disables the check.
func (h *HTTPSource) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.authToken == "" {
			next(w, r)
			return
		}
		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != h.authToken {
			h.logger.Warn("rejected unauthenticated clip", "remote_addr", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (h *HTTPSource) handleAudio(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, maxClipBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "empty audio", http.StatusBadRequest)
		return
	}

	samples, err := decodeClip(data, h.feeder.format.SampleRate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.feeder.enqueue(samples) {
		http.Error(w, "queue full, try again", http.StatusServiceUnavailable)
		return
	}

	h.logger.Info("clip queued", "samples", len(samples), "pending", h.feeder.pending())
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "samples": len(samples)})
}

func (h *HTTPSource) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	running := h.server != nil
	h.mu.Unlock()

	status, code := "ok", http.StatusOK
	if !running {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":        status,
		"running":       running,
		"pending_clips": h.feeder.pending(),
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
