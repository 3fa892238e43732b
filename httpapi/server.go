// Package httpapi exposes student.Service over HTTP with JSON bodies.
//
// Routes:
//
//	GET    /                 liveness message
//	GET    /students         list, filtered by ?country= and ?age=
//	POST   /students         create
//	GET    /students/:id     fetch one
//	PATCH  /students/:id     partial update
//	DELETE /students/:id     delete, returning the removed record
//
// Errors are returned as {"detail": "<message>"}.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/jacentio/roster/student"
)

// DefaultMaxBodyBytes bounds request bodies when Config.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

// Config holds configuration for New.
type Config struct {
	// Logger receives access and error logs. Nil uses slog.Default().
	Logger *slog.Logger

	// RateLimit is the sustained request rate across all clients, in
	// requests per second. Zero disables limiting.
	RateLimit float64

	// Burst is the limiter bucket size.
	// Default: 1 when RateLimit is set
	Burst int

	// MaxBodyBytes bounds the size of request bodies.
	// Default: 1 MiB
	MaxBodyBytes int64
}

// Server routes HTTP requests to a student.Service.
type Server struct {
	service *student.Service
	logger  *slog.Logger
	maxBody int64
	handler http.Handler
}

// New creates a Server and wires its middleware chain.
func New(service *student.Service, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		service: service,
		logger:  cfg.Logger,
		maxBody: cfg.MaxBodyBytes,
	}

	router := httprouter.New()
	router.GET("/", s.root)
	router.GET("/students", s.list)
	router.POST("/students", s.create)
	router.GET("/students/:id", s.get)
	router.PATCH("/students/:id", s.update)
	router.DELETE("/students/:id", s.delete)
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		sendNotFound(w)
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		sendMethodNotAllowed(w)
	})
	router.PanicHandler = s.panicked

	var h http.Handler = router
	if cfg.RateLimit > 0 {
		if cfg.Burst <= 0 {
			cfg.Burst = 1
		}
		h = limit(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst), h)
	}
	h = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(h)
	s.handler = accessLog(s.logger, h)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) panicked(w http.ResponseWriter, r *http.Request, v interface{}) {
	s.logger.Error("handler panic",
		"method", r.Method,
		"path", r.URL.Path,
		"panic", v,
	)
	sendInternalServerError(w)
}
