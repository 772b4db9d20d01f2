// Package dto holds the HTTP request/response shapes for pkg/server,
// decoupled from the search package's internal types so the wire format
// can evolve independently of the query engine.
package dto

// QueryTriple is one weighted (source, content, target) element of a
// search request, mirroring search.QueryTriple's JSON shape.
type QueryTriple struct {
	Source  string `json:"source"`
	Content string `json:"content"`
	Target  string `json:"target"`

	WeightSource  float64 `json:"weight_source"`
	WeightContent float64 `json:"weight_content"`
	WeightTarget  float64 `json:"weight_target"`
}

// Allocation splits the requested result budget across the three
// sub-searchers, mirroring search.Allocation's JSON shape.
type Allocation struct {
	HighLevel     int `json:"high_level"`
	LowLevel      int `json:"low_level"`
	Conversations int `json:"conversations"`
}

// SearchRequest is the body of POST /v1/search, the §6 structured-query
// contract.
type SearchRequest struct {
	QueryText         string        `json:"query_text"`
	QueryTriples      []QueryTriple `json:"query_triples"`
	SpatialConstraint string        `json:"spatial_constraint"`
	SpeakerStrict     []string      `json:"speaker_strict"`
	Allocation        *Allocation   `json:"allocation"`
}

// SearchResponse is the body of a successful POST /v1/search response.
type SearchResponse struct {
	Result string `json:"result"`
}

// ErrorResponse is the body of any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
