package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"itemsearch/internal/adapter/embedding"
	"itemsearch/internal/adapter/store"
	"itemsearch/internal/domain"
)

const testDim = 64

func boolPtr(b bool) *bool { return &b }

// seedCatalog indexes a small catalog through the same normalizer and mock
// embedder the ranker uses.
func seedCatalog(t *testing.T, items []domain.Item) (*store.ItemStore, *embedding.MockEmbedder) {
	t.Helper()

	emb := embedding.NewMockEmbedder(testDim)
	st, err := store.NewItemStore(filepath.Join(t.TempDir(), "items.db"), testDim)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	for _, item := range items {
		text := BuildSearchableText(item.Name, item.Examine, item.Members)
		vec, err := emb.EmbedOne(context.Background(), text)
		if err != nil {
			t.Fatal(err)
		}
		item.Embedding = vec
		item.TextHash = TextHash(text)
		if err := st.Upsert(item); err != nil {
			t.Fatal(err)
		}
	}

	return st, emb
}

func testCatalog() []domain.Item {
	return []domain.Item{
		{ItemID: 1305, Name: "Dragon longsword", Examine: "A very powerful sword.", Members: true},
		{ItemID: 1307, Name: "Dragon battleaxe", Examine: "A vicious looking axe.", Members: true},
		{ItemID: 1277, Name: "Bronze sword", Examine: "A razor sharp sword.", Members: false},
		{ItemID: 4151, Name: "Abyssal whip", Examine: "A weapon from the abyss.", Members: true},
	}
}

func TestSearchExactMatchRankedFirstWithBoost(t *testing.T) {
	st, emb := seedCatalog(t, testCatalog())
	r := NewRanker(emb, st, DefaultPolicy())

	results, err := r.Search(context.Background(), "dragon longsword", 10, domain.SearchFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("no results")
	}

	if results[0].Item.ItemID != 1305 {
		t.Fatalf("expected item 1305 first, got %d", results[0].Item.ItemID)
	}
	// Exact-substring boost pushes the composite high.
	if results[0].Score < 0.85 {
		t.Errorf("expected composite >= 0.85, got %f", results[0].Score)
	}

	for _, res := range results {
		if res.Score < 0 || res.Score > 1 {
			t.Errorf("score out of [0,1]: %f", res.Score)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not sorted by descending score")
		}
		if results[i].Score == results[i-1].Score && results[i].Item.ItemID < results[i-1].Item.ItemID {
			t.Error("ties not broken by ascending item id")
		}
	}
}

func TestSearchSemanticPathSurfacesNonLexicalMatch(t *testing.T) {
	st, emb := seedCatalog(t, testCatalog())
	r := NewRanker(emb, st, DefaultPolicy())

	// "dlong" shares no name substring; the vector path must surface it.
	results, err := r.Search(context.Background(), "dlong", 10, domain.SearchFilters{})
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, res := range results {
		if res.Item.ItemID == 1305 {
			found = true
		}
	}
	if !found {
		t.Error("semantic path did not surface item 1305 for non-lexical query")
	}
}

func TestSearchMembershipFilterExcludes(t *testing.T) {
	st, emb := seedCatalog(t, testCatalog())
	r := NewRanker(emb, st, DefaultPolicy())

	results, err := r.Search(context.Background(), "dragon longsword", 10, domain.SearchFilters{Members: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range results {
		if res.Item.ItemID == 1305 {
			t.Error("members-only item leaked through members=false filter")
		}
		if res.Item.Members {
			t.Errorf("filtered item %d appeared", res.Item.ItemID)
		}
	}
}

func TestSearchRespectsK(t *testing.T) {
	st, emb := seedCatalog(t, testCatalog())
	r := NewRanker(emb, st, DefaultPolicy())

	results, err := r.Search(context.Background(), "sword", 2, domain.SearchFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) > 2 {
		t.Errorf("expected at most 2 results, got %d", len(results))
	}
}

// failingEmbedder always errors, standing in for a broken model.
type failingEmbedder struct{ embedding.MockEmbedder }

func (f *failingEmbedder) EmbedOne(_ context.Context, _ string) ([]float32, error) {
	return nil, domain.ErrModelNotLoaded
}

func TestSearchKZeroSkipsModel(t *testing.T) {
	st, _ := seedCatalog(t, testCatalog())
	r := NewRanker(&failingEmbedder{}, st, DefaultPolicy())

	// k == 0 must return empty without touching the (broken) model.
	results, err := r.Search(context.Background(), "dragon", 0, domain.SearchFilters{})
	if err != nil {
		t.Fatalf("k=0 should not invoke the model: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result, got %d", len(results))
	}
}

func TestSearchEmbedderErrorPropagates(t *testing.T) {
	st, _ := seedCatalog(t, testCatalog())
	r := NewRanker(&failingEmbedder{}, st, DefaultPolicy())

	_, err := r.Search(context.Background(), "dragon", 5, domain.SearchFilters{})
	if !errors.Is(err, domain.ErrModelNotLoaded) {
		t.Errorf("expected model error to propagate, got %v", err)
	}
}

func TestKeywordScore(t *testing.T) {
	if got := keywordScore("dragon longsword", []string{"dragon", "longsword"}); got != 1.0 {
		t.Errorf("full match: expected 1.0, got %f", got)
	}
	if got := keywordScore("dragon battleaxe", []string{"dragon", "longsword"}); got != 0.5 {
		t.Errorf("half match: expected 0.5, got %f", got)
	}
	if got := keywordScore("abyssal whip", []string{"dragon"}); got != 0 {
		t.Errorf("no match: expected 0, got %f", got)
	}
	if got := keywordScore("anything", nil); got != 0 {
		t.Errorf("no tokens: expected 0, got %f", got)
	}
}

func TestBoostMutualExclusion(t *testing.T) {
	st, emb := seedCatalog(t, []domain.Item{
		// Name contains both tokens but not the contiguous phrase.
		{ItemID: 1, Name: "longsword of the dragon", Members: false},
	})
	r := NewRanker(emb, st, DefaultPolicy())

	results, err := r.Search(context.Background(), "dragon longsword", 5, domain.SearchFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	// Token boost (+0.10) applies, phrase boost (+0.15) does not. With
	// keyword score 1.0 the composite is 0.7*sem + 0.3 + 0.10; sem < 1
	// keeps it strictly under 1.1-capped territory, so check the ceiling
	// implied by the token boost: score <= 0.7*1 + 0.3 + 0.10 = 1.0 but
	// must be at least 0.3 + 0.10.
	if results[0].Score < 0.4 {
		t.Errorf("token boost missing: %f", results[0].Score)
	}
}

func TestScoreCapAtOne(t *testing.T) {
	p := DefaultPolicy()
	r := NewRanker(nil, nil, p)

	c := candidate{item: domain.Item{Name: "dragon longsword"}, semantic: 1.0}
	got := r.score(c, "dragon longsword", []string{"dragon", "longsword"})
	if got != 1.0 {
		t.Errorf("score must cap at 1.0, got %f", got)
	}
}
