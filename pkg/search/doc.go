// Package search implements the embedding-ranked query engine over a
// *graph.Graph: weighted-triple scoring shared by the high-level and
// low-level searchers, bidirectional endpoint matching, scene-modulated
// low-level ranking, conversation search with context-window merging, and
// the natural-language result fusion that the (out-of-scope)
// reasoning/answering driver consumes.
//
// Searcher never mutates the graph it searches; multiple Searchers (or
// concurrent calls to the same one) may run over the same *graph.Graph
// once construction has finished, per the concurrency model in §5 of the
// design.
package search
