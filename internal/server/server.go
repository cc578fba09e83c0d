package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/forceviz/forceviz/internal/config"
	"github.com/forceviz/forceviz/internal/core/observability/log"
	"github.com/forceviz/forceviz/internal/engine"
	"github.com/forceviz/forceviz/internal/render"
	"github.com/google/uuid"
)

// Server exposes the engine loop over HTTP and streams frames over websockets.
type Server struct {
	config config.ServerConfig
	loop   *engine.Loop
	hub    *Hub
	logger log.Log

	httpServer *http.Server
	listener   net.Listener

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool
}

// NewServer creates a server for loop. hub must be the one registered with
// the loop's OnFrame.
func NewServer(cfg config.ServerConfig, loop *engine.Loop, hub *Hub, logger log.Log) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Server{
		config: cfg,
		loop:   loop,
		hub:    hub,
		logger: logger.With(log.String("component", "server")),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Server created", log.String("listen_addr", cfg.ListenAddr))
	return s
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return err
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Stop disconnects websocket clients and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")
	s.hub.Close()
	err := s.httpServer.Shutdown(ctx)
	atomic.StoreInt32(&s.closed, 1)
	s.logger.Info("Server stopped")
	return err
}

// Run starts the server and stops it when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Addr returns the bound address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/frame", s.handleGetFrame)
	mux.HandleFunc("GET /api/sensors/listing", s.handleListing)
	mux.HandleFunc("POST /api/sensors", s.handleAddSensor)
	mux.HandleFunc("PUT /api/sensors/{index}", s.handleEditSensor)
	mux.HandleFunc("DELETE /api/sensors/{index}", s.handleRemoveSensor)
	mux.HandleFunc("PUT /api/selection", s.handleSelect)
	mux.HandleFunc("POST /api/forces", s.handleSetForces)
	mux.HandleFunc("PUT /api/ramp/threshold", s.handleThreshold)
	mux.HandleFunc("PUT /api/ramp/alpha", s.handleAlpha)

	mux.HandleFunc("GET /api/picker", s.handleGetPicker)
	mux.HandleFunc("PUT /api/picker/hue", s.handlePickerHue)
	mux.HandleFunc("PUT /api/picker/sv", s.handlePickerSV)
	mux.HandleFunc("PUT /api/picker/pointer", s.handlePickerPointer)
	mux.HandleFunc("PUT /api/picker/hex", s.handlePickerHex)
	mux.HandleFunc("POST /api/picker/apply/{target}", s.handlePickerApply)
	mux.HandleFunc("POST /api/picker/open/{target}", s.handlePickerOpen)
	mux.HandleFunc("POST /api/picker/confirm", s.handlePickerConfirm)
	mux.HandleFunc("POST /api/picker/cancel", s.handlePickerCancel)

	return s.logRequests(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.Clients(),
		"ticks":   s.loop.Ticks(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	frame, err := s.frame(r.Context())
	if err != nil {
		s.loopUnavailable(w, err)
		return
	}
	initial, err := json.Marshal(frame)
	if err != nil {
		http.Error(w, "encode frame", http.StatusInternalServerError)
		return
	}
	s.hub.Serve(w, r, initial)
}

func (s *Server) frame(ctx context.Context) (render.FrameJSON, error) {
	var frame render.FrameJSON
	err := s.loop.Do(ctx, func(st *engine.State) {
		frame = render.NewFrame(st.Field.Snapshot())
	})
	return frame, err
}

// mutate applies fn on the loop, ticks, and answers with the resulting frame.
// fn may return a message for a change the core rejected.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*engine.State) StateResponse) {
	var resp StateResponse
	err := s.loop.Apply(r.Context(), func(st *engine.State) {
		resp = fn(st)
		resp.Frame = render.NewFrame(st.Field.Snapshot())
	})
	if err != nil {
		s.loopUnavailable(w, err)
		return
	}
	if resp.Error != "" {
		s.logger.WithContext(r.Context()).Debug("Change rejected",
			log.String("path", r.URL.Path),
			log.String("reason", resp.Error))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) loopUnavailable(w http.ResponseWriter, err error) {
	s.logger.Warn("Engine loop unavailable", log.Error(err))
	http.Error(w, "engine unavailable", http.StatusServiceUnavailable)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RequestIDHeader carries the id logged with every API request. A client
// supplied value is kept.
const RequestIDHeader = "X-Request-ID"

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		r = r.WithContext(log.ContextWithFields(r.Context(), log.String("request_id", requestID)))

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.WithContext(r.Context()).Debug("Request handled",
			log.String("method", r.Method),
			log.String("path", r.URL.Path),
			log.Int("status", rec.status),
			log.Duration("duration", time.Since(start)))
	})
}
