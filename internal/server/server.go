package server

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
	"pdf-rag/internal/rag"
)

const shutdownTimeout = 5 * time.Second

//go:embed web/index.html
var indexHTML []byte

// Service is the session the HTTP shell drives.
type Service interface {
	Upload(ctx context.Context, filename string, data []byte) (*rag.BuildSummary, error)
	Ask(ctx context.Context, question string) (*models.PromptResponse, error)
	Reset()
	Summary() *rag.BuildSummary
}

func NewRouter(cfg *config.Config, session Service) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())
	router.MaxMultipartMemory = int64(cfg.Server.MaxUploadMB) << 20

	h := NewHandler(session, cfg.Server.MaxUploadMB)
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})
	router.GET("/healthz", h.Health)

	api := router.Group("/api")
	api.GET("/document", h.Document)
	api.POST("/document", h.UploadDocument)
	api.DELETE("/document", h.DeleteDocument)
	api.POST("/question", h.Ask)

	return router
}

// Run serves the HTTP shell on addr until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, session Service, addr string) error {
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(cfg, session),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

var _ Service = (*rag.Session)(nil)
