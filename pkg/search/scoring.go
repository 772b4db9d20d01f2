package search

import (
	"context"

	"github.com/soundprediction/clipgraph/pkg/embedder"
	"github.com/soundprediction/clipgraph/pkg/graph"
	"github.com/soundprediction/clipgraph/pkg/vecmath"
)

// resolvedTriple is a QueryTriple with its token embeddings computed once,
// up front, so scoring every candidate edge against it is pure arithmetic.
type resolvedTriple struct {
	QueryTriple
	sourceEmb  []float32
	contentEmb []float32
	targetEmb  []float32
}

// resolveTriples embeds the non-wildcard tokens of every triple exactly
// once. Characters embed stripped of brackets, per the embedding contract
// in §4.3; content always embeds as written.
func resolveTriples(ctx context.Context, embed embedder.Client, triples []QueryTriple) []resolvedTriple {
	out := make([]resolvedTriple, len(triples))
	for i, t := range triples {
		out[i] = resolvedTriple{QueryTriple: t}
		if embed == nil {
			continue
		}
		if !isWildcard(t.Source) {
			out[i].sourceEmb = embedToken(ctx, embed, t.Source)
		}
		if !isWildcard(t.Content) {
			if e, err := embed.Embed(ctx, t.Content); err == nil {
				out[i].contentEmb = e
			}
		}
		if !isWildcard(t.Target) {
			out[i].targetEmb = embedToken(ctx, embed, t.Target)
		}
	}
	return out
}

func embedToken(ctx context.Context, embed embedder.Client, token string) []float32 {
	e, err := embed.Embed(ctx, unbracketToken(token))
	if err != nil {
		return nil
	}
	return e
}

// nodeSimilarity implements §4.7's node-similarity rule between a query
// token (with its precomputed embedding, possibly nil) and an edge
// endpoint's name and embedding.
func nodeSimilarity(qToken string, qEmb []float32, nodeToken string, nodeEmb []float32) float64 {
	if isWildcard(qToken) || nodeToken == "" {
		return 0
	}
	qIsChar := isCharacterToken(qToken)
	nIsChar := isCharacterToken(nodeToken)
	if qIsChar && nIsChar {
		if qToken == nodeToken {
			return 1.0
		}
		return 0
	}
	if len(qEmb) == 0 || len(nodeEmb) == 0 {
		return 0
	}
	return vecmath.CosineSimilarity(qEmb, nodeEmb)
}

// contentSimilarity scores a query's content token against an edge's
// content: cosine similarity when both embeddings are present, an
// exact-match fallback of w otherwise (0 if the strings differ), weighted
// by w. A wildcard content token never contributes.
func contentSimilarity(qContent string, qEmb []float32, eContent string, eEmb []float32, w float64) float64 {
	if isWildcard(qContent) {
		return 0
	}
	if len(qEmb) > 0 && len(eEmb) > 0 {
		return vecmath.CosineSimilarity(qEmb, eEmb) * w
	}
	if qContent == eContent {
		return w
	}
	return 0
}

// endpointEmbedding returns the stored embedding for a graph endpoint name,
// whether character or object, or nil if the node is unknown or has no
// embedding (e.g. the null-target sentinel).
func endpointEmbedding(g *graph.Graph, name string) []float32 {
	if name == "" {
		return nil
	}
	if isCharacterToken(name) {
		if c := g.GetCharacter(name); c != nil {
			return c.Embedding
		}
		return nil
	}
	if o := g.GetObject(name); o != nil {
		return o.Embedding
	}
	return nil
}

// tripleScore implements the bidirectional weighted edge-vs-triple scoring
// rule of §4.7: content similarity plus the better of the direct or
// reversed endpoint orientation.
func tripleScore(g *graph.Graph, t resolvedTriple, e *graph.Edge) float64 {
	contentSim := contentSimilarity(t.Content, t.contentEmb, e.Content, e.Embedding, t.WeightContent)

	srcEmb := endpointEmbedding(g, e.Source)
	var tgtEmb []float32
	target := ""
	if e.HasTarget {
		target = e.Target
		tgtEmb = endpointEmbedding(g, e.Target)
	}

	nSrc := nodeSimilarity(t.Source, t.sourceEmb, e.Source, srcEmb) * t.WeightSource
	nTgt := nodeSimilarity(t.Target, t.targetEmb, target, tgtEmb) * t.WeightTarget
	rSrc := nodeSimilarity(t.Source, t.sourceEmb, target, tgtEmb) * t.WeightSource
	rTgt := nodeSimilarity(t.Target, t.targetEmb, e.Source, srcEmb) * t.WeightTarget

	direct := nSrc + nTgt
	reversed := rSrc + rTgt
	endpointScore := direct
	if reversed > endpointScore {
		endpointScore = reversed
	}

	return contentSim + endpointScore
}

// queryScore is the max, not the sum, over all resolved triples: multiple
// triples express disjunctive phrasings of the same intent.
func queryScore(g *graph.Graph, triples []resolvedTriple, e *graph.Edge) float64 {
	best := 0.0
	for i, t := range triples {
		s := tripleScore(g, t, e)
		if i == 0 || s > best {
			best = s
		}
	}
	return best
}
