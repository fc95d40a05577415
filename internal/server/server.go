package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sheetcalc/internal/calc"
	"sheetcalc/internal/storage"
)

// shutdownTimeout bounds how long in-flight requests may finish after the
// run context is cancelled.
const shutdownTimeout = 5 * time.Second

type Config struct {
	Addr         string
	MaxBodyBytes int64
	Version      string
}

// Server exposes the engine and the workbook store over HTTP.
type Server struct {
	cfg    Config
	engine *calc.Engine
	store  storage.WorkbookStore
	log    zerolog.Logger
	router *gin.Engine
}

// New wires the routes. store may be nil, in which case the workbook
// routes answer 503.
func New(cfg Config, engine *calc.Engine, store storage.WorkbookStore, log zerolog.Logger) *Server {
	if engine == nil {
		engine = calc.New()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:    cfg,
		engine: engine,
		store:  store,
		log:    log,
		router: gin.New(),
	}
	s.router.Use(s.recovery(), s.requestLog(), s.limitBody())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	sheet := api.Group("/spreadsheet")
	sheet.POST("/formula/evaluate", s.handleEvaluate)
	sheet.POST("/formula/dependencies", s.handleDependencies)
	sheet.POST("/excel/import", s.handleImport)
	sheet.POST("/excel/export", s.handleExport)

	wb := api.Group("/workbooks")
	wb.Use(s.requireStore())
	wb.GET("", s.handleListWorkbooks)
	wb.PUT("/:name/cells", s.handlePutCells)
	wb.GET("/:name/cells", s.handleGetCells)
	wb.GET("/:name/cells/:ref", s.handleGetCell)
	wb.DELETE("/:name/cells/:ref", s.handleDeleteCell)
	wb.PUT("/:name/import", s.handleImportWorkbook)
	wb.GET("/:name/export", s.handleExportWorkbook)
	wb.POST("/:name/evaluate", s.handleEvaluateWorkbook)
	wb.DELETE("/:name", s.handleDeleteWorkbook)
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully. It returns ctx.Err() after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("server listening")

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info().Msg("server stopped")
	return ctx.Err()
}
