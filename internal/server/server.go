// package server contains middleware & handlers for the audio conversion service
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytaudio/internal/blobstore"
	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/desertthunder/ytaudio/internal/shared"
	"github.com/desertthunder/ytaudio/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, panic recovery, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own their routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// JobStore is the job ledger as seen by the HTTP layer.
type JobStore interface {
	Create(job *models.Job) error
	Get(filename string) (*models.Job, error)
	Transition(filename string, from, to models.Phase, reason string) error
}

// LibraryReader is the read side of the library index.
type LibraryReader interface {
	Get(filename string) (*models.LibraryEntry, error)
	List(criteria map[string]any) ([]*models.LibraryEntry, error)
}

// Dispatcher hands jobs to background workers.
type Dispatcher interface {
	Submit(req tasks.Request) error
	Stats() tasks.Stats
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Jobs        JobStore
	Library     LibraryReader
	Store       blobstore.Store
	Dispatcher  Dispatcher
	TempDir     string
	AudioFormat string
	Logger      *log.Logger
}

// Server is the HTTP front end of the conversion service.
type Server struct {
	config   shared.ServerConfig
	router   *BasicRouter
	api      *API
	http     *http.Server
	logger   *log.Logger
	listener net.Listener
}

// New builds a Server with every route registered.
func New(cfg shared.ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(nil)
	}
	logger := shared.WithLogger(deps.Logger, "component", "http")

	router := NewBasicRouter()
	router.Use(RequestLogger(logger), Recoverer(logger))

	api := NewAPI(deps)
	api.Register(router)
	router.Handler(NewHealthHandler(deps.Dispatcher))

	return &Server{
		config: cfg,
		router: router,
		api:    api,
		logger: logger,
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen binds the configured address. Separate from [Server.Serve] so callers can report bind errors
// before detaching.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	s.listener = l
	return nil
}

// Addr returns the bound address, or the configured one before [Server.Listen].
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.http.Addr
}

// Serve accepts connections until [Server.Shutdown]. It returns nil after a clean shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.logger.Info("listening", "addr", s.Addr())
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
