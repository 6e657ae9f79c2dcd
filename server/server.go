package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kbukum/voicememo/component"
	apperrors "github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/server/middleware"
)

// stopGrace caps how long Stop waits for in-flight requests. Event streams
// stay open until it runs out.
const stopGrace = 5 * time.Second

var (
	_ component.Component   = (*Server)(nil)
	_ component.Describable = (*Server)(nil)
)

// Server serves the task API on Gin. It is registered with the component
// registry directly. Middleware wraps the engine at the net/http level so
// it also sees requests Gin does not route.
type Server struct {
	cfg    Config
	log    *logger.Logger
	engine *gin.Engine
	http   *http.Server

	mu       sync.Mutex
	listener net.Addr
}

func New(cfg Config, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("server")

	mode := gin.ReleaseMode
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		mode = gin.DebugMode
	}
	gin.SetMode(mode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	stack := middleware.Chain(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.CORS(&cfg.CORS),
		middleware.BodySizeLimit(cfg.MaxBodySize),
		middleware.RequestLogger(log),
	)
	return &Server{
		cfg:    cfg,
		log:    log,
		engine: engine,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			Handler:           stack(engine),
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
}

// Handler is the engine wrapped in the middleware stack.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Mount registers the task API under /api and the health endpoint at
// /healthz. mw runs on the /api group only.
func (s *Server) Mount(api *TaskAPI, health gin.HandlerFunc, mw ...gin.HandlerFunc) {
	s.engine.GET("/healthz", health)
	api.Register(s.engine.Group("/api", mw...))
	s.engine.NoRoute(func(c *gin.Context) {
		respondError(c, apperrors.NotFound("route", c.Request.URL.Path))
	})
}

func (s *Server) Name() string { return "http-server" }

// Start returns once the port is bound. Serving continues in the
// background until Stop.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.http.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", logger.Fields(logger.FieldError, err.Error()))
		}
	}()
	s.log.Info("http server listening", logger.Fields("addr", ln.Addr().String()))
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, stopGrace)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		_ = s.http.Close()
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Addr is the bound address after Start, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.http.Addr
	}
	return s.listener.String()
}

func (s *Server) bound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

func (s *Server) Health(context.Context) component.Health {
	h := component.Health{Name: s.Name(), Status: component.StatusHealthy, Message: s.Addr()}
	if !s.bound() {
		h.Status, h.Message = component.StatusUnhealthy, "not listening"
	}
	return h
}

func (s *Server) Describe() component.Description {
	return component.Description{
		Name:    "HTTP Server",
		Type:    "server",
		Details: fmt.Sprintf("%s routes=%d", s.http.Addr, len(s.engine.Routes())),
		Port:    s.cfg.Port,
	}
}
