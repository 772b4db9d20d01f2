// Package server exposes the knowledge graph's search facade over HTTP,
// grounded on cmd/gliner2-api/main.go's gin-based router setup and
// graceful-shutdown pattern.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/clipgraph/pkg/embedder"
	"github.com/soundprediction/clipgraph/pkg/graph"
	"github.com/soundprediction/clipgraph/pkg/search"
	"github.com/soundprediction/clipgraph/pkg/server/handlers"
)

// New builds the gin.Engine exposing GET /health and POST /v1/search.
func New(g *graph.Graph, searcher *search.Searcher, embed embedder.Client, mode string) *gin.Engine {
	gin.SetMode(mode)
	router := gin.Default()

	router.GET("/health", handlers.Health(g, embed))
	router.POST("/v1/search", handlers.Search(searcher))

	return router
}

// Run starts an http.Server serving router on addr and blocks until ctx is
// canceled, then shuts the server down gracefully within 10 seconds.
func Run(ctx context.Context, addr string, router http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
