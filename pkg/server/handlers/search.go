// Package handlers implements the gin.HandlerFunc closures pkg/server
// wires onto routes, grounded on cmd/gliner2-api/main.go's
// closure-returning handler pattern.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/clipgraph/pkg/search"
	"github.com/soundprediction/clipgraph/pkg/server/dto"
)

// Search returns the handler for POST /v1/search: decode the §6 structured
// query, clamp its allocation to search.MaxAllocation, run it through
// searcher, and return the fused result text.
func Search(searcher *search.Searcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body: " + err.Error()})
			return
		}

		triples := make([]search.QueryTriple, 0, len(req.QueryTriples))
		for _, t := range req.QueryTriples {
			triples = append(triples, search.QueryTriple{
				Source:        t.Source,
				Content:       t.Content,
				Target:        t.Target,
				WeightSource:  t.WeightSource,
				WeightContent: t.WeightContent,
				WeightTarget:  t.WeightTarget,
			})
		}

		alloc := defaultAllocation()
		if req.Allocation != nil {
			alloc = search.Allocation{
				HighLevel:     req.Allocation.HighLevel,
				LowLevel:      req.Allocation.LowLevel,
				Conversations: req.Allocation.Conversations,
			}
		}
		clampAllocation(&alloc)

		result, err := searcher.Search(c.Request.Context(), req.QueryText, triples, alloc, req.SpatialConstraint, req.SpeakerStrict)
		if err != nil {
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
			return
		}

		c.JSON(http.StatusOK, dto.SearchResponse{Result: result})
	}
}

func defaultAllocation() search.Allocation {
	third := search.MaxAllocation / 3
	return search.Allocation{HighLevel: third, LowLevel: third, Conversations: search.MaxAllocation - 2*third}
}

// clampAllocation scales alloc down proportionally if its total exceeds
// search.MaxAllocation, per §6's fixed result budget.
func clampAllocation(alloc *search.Allocation) {
	total := alloc.HighLevel + alloc.LowLevel + alloc.Conversations
	if total <= search.MaxAllocation || total == 0 {
		return
	}
	scale := float64(search.MaxAllocation) / float64(total)
	alloc.HighLevel = int(float64(alloc.HighLevel) * scale)
	alloc.LowLevel = int(float64(alloc.LowLevel) * scale)
	alloc.Conversations = int(float64(alloc.Conversations) * scale)
}
