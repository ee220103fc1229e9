// Package ingest exposes the webhook intake HTTP surface: one endpoint per
// declared source plus auto-detection, a parser listing, and the per-user
// settings API.
package ingest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Zentik-notifier/backend-sub001/internal/eventbus"
	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
	"github.com/Zentik-notifier/backend-sub001/internal/settings"
	logx "github.com/Zentik-notifier/backend-sub001/pkg/logx"
)

const defaultMaxBodyBytes = 1 << 20 // 1 MiB

// Dispatch receives every accepted canonical message for delivery.
type Dispatch func(ctx context.Context, id string, m notification.Message)

type Config struct {
	Addr         string
	MaxBodyBytes int64
}

type Server struct {
	cfg      Config
	log      logx.Logger
	reg      *parser.Registry
	store    settings.Store
	dispatch Dispatch
	bus      eventbus.Bus

	srv *http.Server
}

func NewServer(cfg Config, log logx.Logger, reg *parser.Registry, store settings.Store, dispatch Dispatch, bus eventbus.Bus) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Server{
		cfg:      cfg,
		log:      log.With(logx.String("component", "ingest")),
		reg:      reg,
		store:    store,
		dispatch: dispatch,
		bus:      bus,
	}
}

// Handler builds the router. Split out from Start so tests can drive it with
// httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/parsers", s.handleListParsers)
		r.Post("/messages/{source}", s.handleMessage)
		r.Put("/users/{userID}/settings/{name}", s.handlePutSetting)
		r.Delete("/users/{userID}/settings/{name}", s.handleDeleteSetting)
	})
	return r
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.log.Info("listening", logx.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", logx.Err(err))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	if s.srv == nil {
		return
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		_ = s.srv.Close()
	}
}
