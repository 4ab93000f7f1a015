package localnet

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Server exposes a Validator over HTTP. JSON-RPC is served on POST / and
// signature subscriptions on a websocket upgrade of GET /.
type Server struct {
	v        *Validator
	log      logrus.FieldLogger
	handlers map[string]methodFunc
	started  time.Time
	http     *http.Server
}

// NewServer creates a server for v.
func NewServer(v *Validator, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		v:       v,
		log:     log.WithField("component", "rpc"),
		started: time.Now(),
	}
	s.handlers = s.methods()
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Post("/", s.handleRPC)
	r.Get("/", s.handleWS)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.v.metrics.Handler())
	return r
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.WithField("addr", addr).Info("starting JSON-RPC server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// healthResponse is the JSON response for /healthz.
type healthResponse struct {
	Status string `json:"status"`
	Slot   uint64 `json:"slot"`
	Uptime string `json:"uptime"`
	Faucet string `json:"faucet"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{
		Status: "ok",
		Slot:   s.v.rt.Slot(),
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Faucet: s.v.Faucet().String(),
	})
}

// requestLogger logs each request with its request id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
		}).Debug("http request")
	})
}
