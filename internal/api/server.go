// Package api serves the catalog over HTTP: health, the database installer,
// migration status, products and bulk operations.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/catalogdb/internal/bulk"
	"github.com/loykin/catalogdb/internal/catalog"
	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/constants"
	"github.com/loykin/catalogdb/internal/database"
)

type Server struct {
	db       *database.Service
	products *catalog.MemoryRepository
	bulk     *bulk.Engine
	jwt      *VerifyConfig
	cwd      string
	logger   *common.Logger
}

type Option func(*Server)

// WithInstallerAuth protects the installer endpoint with bearer tokens.
func WithInstallerAuth(cfg VerifyConfig) Option {
	return func(s *Server) {
		if len(cfg.Secret) > 0 {
			s.jwt = &cfg
		}
	}
}

// WithBulkWorkers sets the worker count of each bulk operation.
func WithBulkWorkers(n int) Option {
	return func(s *Server) {
		s.bulk = bulk.NewEngine(bulk.NewSwitchRepository(s.db, bulk.NewMemoryRepository()), bulk.WithWorkers(n), bulk.WithLogger(s.logger))
	}
}

// WithWorkingDir anchors relative sqlite paths posted to the installer.
func WithWorkingDir(dir string) Option {
	return func(s *Server) { s.cwd = dir }
}

func New(db *database.Service, opts ...Option) *Server {
	cwd, _ := os.Getwd()
	s := &Server{
		db:       db,
		products: catalog.NewMemoryRepository(),
		cwd:      cwd,
		logger:   common.GetLogger().WithComponent("api"),
	}
	s.bulk = bulk.NewEngine(bulk.NewSwitchRepository(db, bulk.NewMemoryRepository()), bulk.WithLogger(s.logger))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bulk returns the engine running bulk operations.
func (s *Server) Bulk() *bulk.Engine { return s.bulk }

func (s *Server) productRepo() catalog.Repository {
	return catalog.Select(s.db, s.products)
}

// Handler builds the gin engine with every route mounted.
func (s *Server) Handler() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET(constants.DefaultHealthPath, s.health)

	apiGroup := engine.Group("/api")
	install := apiGroup.Group("/install")
	if s.jwt != nil {
		install.Use(RequireJWT(*s.jwt))
	}
	install.POST("/database", s.installDatabase)

	apiGroup.GET("/migrations", s.migrations)

	apiGroup.GET("/products", s.listProducts)
	apiGroup.POST("/products", s.createProduct)
	apiGroup.GET("/products/:id", s.getProduct)
	apiGroup.PUT("/products/:id", s.updateProduct)
	apiGroup.DELETE("/products/:id", s.deleteProduct)

	apiGroup.GET("/bulk", s.listBulk)
	apiGroup.POST("/bulk", s.submitBulk)
	apiGroup.GET("/bulk/:id", s.getBulk)
	apiGroup.POST("/bulk/:id/cancel", s.cancelBulk)
	apiGroup.GET("/bulk/:id/stream", s.streamBulk)
	return engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.WithRequest(c.Request.Method, c.Request.URL.Path).Debug("request served",
			"status", c.Writer.Status(),
			"duration", time.Since(started))
	}
}

// Run serves on addr until ctx is done, then shuts down gracefully and
// cancels running bulk operations.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down http server")
	if err := s.bulk.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("bulk operations did not stop in time", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
