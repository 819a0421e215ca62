// Package rest provides the HTTP status API of the coordinator.
package rest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"yqhp/matmul-engine/internal/cluster"
	"yqhp/matmul-engine/internal/distributed"
)

// Config holds the configuration for the REST API server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080").
	Address string `yaml:"address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// AccessLog enables the request log middleware.
	AccessLog bool `yaml:"access_log"`
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		AccessLog:    false,
	}
}

// StatsProvider exposes executor metrics. It is optional.
type StatsProvider interface {
	LatencyStats() distributed.LatencySnapshot
	Running() int
}

// Server represents the REST API server.
type Server struct {
	app        *fiber.App
	membership cluster.Membership
	stats      StatsProvider
	config     *Config
	started    time.Time
}

// NewServer creates a new REST API server. stats may be nil.
func NewServer(membership cluster.Membership, stats StatsProvider, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		ErrorHandler:          customErrorHandler,
		AppName:               "Matmul Coordinator API",
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
	})

	server := &Server{
		app:        app,
		membership: membership,
		stats:      stats,
		config:     config,
		started:    time.Now(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.app.Use(fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
	}))

	if s.config.AccessLog {
		s.app.Use(fiberlogger.New(fiberlogger.Config{
			Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.app.Get("/health", s.healthCheck)

	api := s.app.Group("/api/v1")
	api.Get("/health", s.healthCheck)

	api.Get("/cluster/members", s.listMembers)
	api.Get("/cluster/members/:id", s.getMember)
	api.Get("/cluster/size", s.clusterSize)

	api.Get("/executor/stats", s.executorStats)
}

// App returns the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the REST API server and blocks.
func (s *Server) Start() error {
	return s.app.Listen(s.config.Address)
}

// StartWithContext starts the server and shuts it down when ctx is done.
func (s *Server) StartWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.config.Address)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   fmt.Sprintf("error_%d", code),
		Message: message,
	})
}
