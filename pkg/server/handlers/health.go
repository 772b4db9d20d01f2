package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/clipgraph/pkg/embedder"
	"github.com/soundprediction/clipgraph/pkg/graph"
)

// Health returns the handler for GET /health: a lightweight liveness check
// reporting graph size and the configured embedding dimensionality,
// without making a network call on every probe the way a provider-backed
// check would.
func Health(g *graph.Graph, embed embedder.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":      "healthy",
			"characters":  len(g.Characters()),
			"edges":       len(g.Edges()),
			"conversations": len(g.Conversations()),
		}
		if embed != nil {
			body["embedding_dimensions"] = embed.Dimensions()
		}
		c.JSON(http.StatusOK, body)
	}
}
