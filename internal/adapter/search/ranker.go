package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"itemsearch/internal/adapter/analyzer"
	"itemsearch/internal/domain"
	"itemsearch/internal/port"
	"itemsearch/internal/vector"
)

// Policy holds the ranking constants. The defaults match observed
// production behavior and are tunable through config, not re-derived.
type Policy struct {
	Oversample     int     // vector-path candidate multiplier
	LexicalLimit   int     // cap on lexical candidates
	SemanticWeight float64 // weight of cosine similarity
	KeywordWeight  float64 // weight of lexical presence
	PhraseBoost    float64 // name contains the full query verbatim
	TokenBoost     float64 // name contains every token, non-contiguously
}

// DefaultPolicy returns the production ranking constants.
func DefaultPolicy() Policy {
	return Policy{
		Oversample:     3,
		LexicalLimit:   50,
		SemanticWeight: 0.7,
		KeywordWeight:  0.3,
		PhraseBoost:    0.15,
		TokenBoost:     0.10,
	}
}

// Ranker combines vector similarity search with lexical matching into one
// ranked result list.
type Ranker struct {
	embedder port.Embedder
	store    port.ItemStore
	policy   Policy
}

// NewRanker creates a hybrid ranker.
func NewRanker(embedder port.Embedder, store port.ItemStore, policy Policy) *Ranker {
	if policy.Oversample <= 0 {
		policy.Oversample = 3
	}
	if policy.LexicalLimit <= 0 {
		policy.LexicalLimit = 50
	}
	return &Ranker{
		embedder: embedder,
		store:    store,
		policy:   policy,
	}
}

type candidate struct {
	item     domain.Item
	semantic float64
}

// Search returns at most k results sorted by descending score, ties broken
// by ascending item id. Embedding failures propagate: a broken model must
// be distinguishable from "no matches".
func (r *Ranker) Search(ctx context.Context, query string, k int, filters domain.SearchFilters) ([]domain.ScoredItem, error) {
	if k <= 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.EmbedOne(ctx, FormatQuery(query))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Oversample the vector path: lexical re-ranking reshuffles the order,
	// so the top k of the final score may sit below rank k by distance.
	nearest, err := r.store.Nearest(queryVec, k*r.policy.Oversample, filters)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	tokens := analyzer.Tokenize(query)

	var lexical []domain.Item
	if len(tokens) > 0 {
		lexical, err = r.store.LexicalMatch(tokens, r.policy.LexicalLimit, filters)
		if err != nil {
			return nil, fmt.Errorf("lexical search failed: %w", err)
		}
	}

	// Union both candidate sets by item id. Vector-path similarity wins
	// for items present in both; lexical-only items get their similarity
	// computed from the stored vector.
	merged := make(map[int64]candidate, len(nearest)+len(lexical))
	for _, n := range nearest {
		merged[n.Item.ItemID] = candidate{item: n.Item, semantic: 1 - n.Distance}
	}
	for _, item := range lexical {
		if _, ok := merged[item.ItemID]; ok {
			continue
		}
		sem := 0.0
		if len(item.Embedding) == len(queryVec) {
			sem = vector.CosineSimilarity(queryVec, item.Embedding)
		}
		merged[item.ItemID] = candidate{item: item, semantic: sem}
	}

	queryLower := strings.ToLower(strings.TrimSpace(query))

	results := make([]domain.ScoredItem, 0, len(merged))
	for _, c := range merged {
		results = append(results, domain.ScoredItem{
			Item:  c.item,
			Score: r.score(c, queryLower, tokens),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Item.ItemID < results[j].Item.ItemID
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (r *Ranker) score(c candidate, queryLower string, tokens []string) float64 {
	name := strings.ToLower(c.item.Name)

	score := r.policy.SemanticWeight*clamp01(c.semantic) +
		r.policy.KeywordWeight*keywordScore(name, tokens)

	// Boosts are mutually exclusive: only the higher-priority match applies.
	if queryLower != "" && strings.Contains(name, queryLower) {
		score += r.policy.PhraseBoost
	} else if len(tokens) > 0 && containsAll(name, tokens) {
		score += r.policy.TokenBoost
	}

	return clamp01(score)
}

// keywordScore grades lexical presence: 1.0 when the name contains every
// query token, the matched fraction otherwise, 0 with no textual overlap.
func keywordScore(name string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(name, tok) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

func containsAll(name string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(name, tok) {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
