package server

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vitormoschetta/chatrelay/internal/chatclient"
	"github.com/vitormoschetta/chatrelay/internal/config"
	"github.com/vitormoschetta/chatrelay/internal/logging"
)

// State é o estado do processo, percorrido uma única vez no startup
type State int32

const (
	StateUninitialized State = iota
	StateSessionInitialized
	StateServing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSessionInitialized:
		return "session-initialized"
	case StateServing:
		return "serving"
	default:
		return "unknown"
	}
}

const shutdownTimeout = 5 * time.Second

// Server representa o servidor HTTP com todas as dependências
type Server struct {
	Client   chatclient.Client
	Hostname string
	Addr     string
	Router   chi.Router

	state atomic.Int32
}

// NewServer cria uma nova instância do servidor com o cliente já construído
func NewServer(cfg *config.Config, client chatclient.Client) *Server {
	return &Server{
		Client:   client,
		Hostname: cfg.Hostname,
		Addr:     cfg.Addr(),
	}
}

// State retorna o estado atual
func (s *Server) State() State {
	return State(s.state.Load())
}

// Init chama InitSession no cliente. Só pode ser chamado uma vez.
func (s *Server) Init(ctx context.Context) error {
	if s.State() != StateUninitialized {
		return errors.Errorf("server already %s", s.State())
	}
	start := time.Now()
	if err := s.Client.InitSession(ctx); err != nil {
		return errors.Wrap(err, "init session failed")
	}
	s.state.Store(int32(StateSessionInitialized))
	log.Info().Dur("elapsed", time.Since(start)).Msg("chat session initialized")
	return nil
}

// SetupRouter configura as rotas e middlewares do Chi
func (s *Server) SetupRouter(
	handleReady func(http.ResponseWriter, *http.Request),
	handleChat func(http.ResponseWriter, *http.Request),
) {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(middleware.Recoverer)

	// Rotas
	r.Get("/ready", handleReady)
	r.Get("/", handleChat)

	s.Router = r
}

// Start escuta em s.Addr e serve até o contexto ser cancelado
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve atende no listener com graceful shutdown
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.State() != StateSessionInitialized {
		_ = ln.Close()
		return errors.Errorf("cannot serve from state %s", s.State())
	}
	if s.Router == nil {
		_ = ln.Close()
		return errors.New("router not configured")
	}

	// Sem WriteTimeout: a chamada ao cliente pode demorar o quanto precisar
	httpServer := &http.Server{
		Handler:     s.Router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.state.Store(int32(StateServing))
		log.Info().
			Str("addr", ln.Addr().String()).
			Str("instance", s.Hostname).
			Msg("chat relay listening")
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server failed")
		}
		return nil
	})
	g.Go(func() error {
		// Aguardar sinal de interrupção
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "server shutdown error")
		}
		log.Info().Msg("server stopped gracefully")
		return nil
	})
	return g.Wait()
}
