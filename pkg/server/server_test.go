package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/clipgraph/pkg/graph"
	"github.com/soundprediction/clipgraph/pkg/search"
	"github.com/soundprediction/clipgraph/pkg/server/dto"
)

func TestHealth_ReportsGraphSize(t *testing.T) {
	g := graph.New(graph.NewContext())
	g.AddCharacter("Alice")
	searcher := search.NewSearcher(g, nil)

	router := New(g, searcher, nil, "test")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 2, body["characters"]) // <robot> + Alice
}

func TestSearch_ReturnsFusedResult(t *testing.T) {
	g := graph.New(graph.NewContext())
	alice := g.AddCharacter("Alice")
	_, _, err := g.AddHighLevelEdge(&graph.Edge{Source: alice, Content: "kind", HasConfidence: true, Confidence: 90})
	require.NoError(t, err)

	searcher := search.NewSearcher(g, nil)
	router := New(g, searcher, nil, "test")

	reqBody := dto.SearchRequest{
		QueryText:    "kind",
		QueryTriples: []dto.QueryTriple{{Content: "kind", WeightContent: 1}},
	}
	payload, err := json.Marshal(reqBody)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Result, "kind")
}

func TestSearch_RejectsMalformedBody(t *testing.T) {
	g := graph.New(graph.NewContext())
	searcher := search.NewSearcher(g, nil)
	router := New(g, searcher, nil, "test")

	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRun_ShutsDownOnContextCancel(t *testing.T) {
	g := graph.New(graph.NewContext())
	searcher := search.NewSearcher(g, nil)
	router := New(g, searcher, nil, "test")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, "127.0.0.1:0", router) }()

	cancel()
	require.NoError(t, <-done)
}
