// Package server exposes the search engine over HTTP. It is a thin
// boundary: request validation and response shaping live here, ranking and
// persistence do not.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"itemsearch/internal/adapter/analyzer"
	"itemsearch/internal/adapter/cache"
	"itemsearch/internal/adapter/search"
	"itemsearch/internal/domain"
	"itemsearch/internal/logger"
	"itemsearch/internal/port"
)

// Limits bound request parameters at the validation boundary.
type Limits struct {
	MaxQueryChars int
	MaxSearchK    int
	DefaultK      int
}

// DefaultLimits matches the original API contract.
func DefaultLimits() Limits {
	return Limits{MaxQueryChars: 500, MaxSearchK: 100, DefaultK: 10}
}

// Server routes HTTP requests to the engine components.
type Server struct {
	searcher port.Searcher
	embedder port.Embedder
	items    port.ItemStore
	prices   port.PriceStore
	cache    *cache.QueryCache
	log      *logger.Logger
	limits   Limits
}

// New creates a server. The cache may be nil to disable response caching.
func New(searcher port.Searcher, embedder port.Embedder, items port.ItemStore, prices port.PriceStore, qc *cache.QueryCache, log *logger.Logger, limits Limits) *Server {
	if limits.MaxQueryChars <= 0 {
		limits = DefaultLimits()
	}
	return &Server{
		searcher: searcher,
		embedder: embedder,
		items:    items,
		prices:   prices,
		cache:    qc,
		log:      log.With("component", "http"),
		limits:   limits,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/items/search", s.handleSearch)
	mux.HandleFunc("GET /api/items", s.handleListItems)
	mux.HandleFunc("POST /api/items", s.handleCreateItem)
	mux.HandleFunc("GET /api/items/{id}", s.handleGetItem)
	mux.HandleFunc("GET /api/items/{id}/prices", s.handlePriceHistory)
	mux.HandleFunc("GET /api/items/{id}/price/current", s.handleCurrentPrice)
	return mux
}

type searchRequest struct {
	Query       string `json:"query"`
	Limit       int    `json:"limit"`
	MembersOnly *bool  `json:"members_only"`
}

type searchResponse struct {
	Results []domain.ScoredItem `json:"results"`
	Total   int                 `json:"total"`
	Query   string              `json:"query"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &domain.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if req.Limit == 0 {
		req.Limit = s.limits.DefaultK
	}

	if err := s.validateSearch(req); err != nil {
		s.writeError(w, err)
		return
	}

	filters := domain.SearchFilters{Members: req.MembersOnly}

	if s.cache != nil {
		if cached, ok := s.cache.Get(req.Query, req.Limit, filters); ok {
			s.writeJSON(w, http.StatusOK, searchResponse{Results: cached, Total: len(cached), Query: req.Query})
			return
		}
	}

	results, err := s.searcher.Search(r.Context(), req.Query, req.Limit, filters)
	if err != nil {
		s.log.Error("search failed: %v", err)
		s.writeError(w, err)
		return
	}
	if results == nil {
		results = []domain.ScoredItem{}
	}

	if s.cache != nil {
		s.cache.Put(req.Query, req.Limit, filters, results)
	}

	s.writeJSON(w, http.StatusOK, searchResponse{Results: results, Total: len(results), Query: req.Query})
}

func (s *Server) validateSearch(req searchRequest) error {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return &domain.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(req.Query) > s.limits.MaxQueryChars {
		return &domain.ValidationError{Field: "query", Reason: "too long"}
	}
	// A query that tokenizes to nothing (punctuation only) can never match
	// and must not reach the embedding model.
	if len(analyzer.Tokenize(query)) == 0 {
		return &domain.ValidationError{Field: "query", Reason: "no searchable tokens"}
	}
	if req.Limit < 1 || req.Limit > s.limits.MaxSearchK {
		return &domain.ValidationError{Field: "limit", Reason: "out of range"}
	}
	return nil
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	item, err := s.items.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 100 {
		s.writeError(w, &domain.ValidationError{Field: "limit", Reason: "out of range"})
		return
	}
	if offset < 0 {
		s.writeError(w, &domain.ValidationError{Field: "offset", Reason: "must not be negative"})
		return
	}

	var filters domain.SearchFilters
	if v := r.URL.Query().Get("members_only"); v != "" {
		members, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, &domain.ValidationError{Field: "members_only", Reason: "must be a boolean"})
			return
		}
		filters.Members = &members
	}

	items, err := s.items.List(limit, offset, filters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	s.writeJSON(w, http.StatusOK, items)
}

type createItemRequest struct {
	ItemID   int64  `json:"item_id"`
	Name     string `json:"name"`
	Examine  string `json:"examine"`
	Members  bool   `json:"members"`
	LowAlch  *int64 `json:"lowalch"`
	HighAlch *int64 `json:"highalch"`
	BuyLimit *int64 `json:"limit"`
	Value    *int64 `json:"value"`
	Icon     string `json:"icon"`
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &domain.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if req.ItemID <= 0 {
		s.writeError(w, &domain.ValidationError{Field: "item_id", Reason: "must be positive"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.writeError(w, &domain.ValidationError{Field: "name", Reason: "must not be empty"})
		return
	}

	if _, err := s.items.Get(req.ItemID); err == nil {
		s.writeError(w, &domain.ValidationError{Field: "item_id", Reason: "already exists"})
		return
	}

	text := search.BuildSearchableText(req.Name, req.Examine, req.Members)
	vec, err := s.embedder.EmbedOne(r.Context(), text)
	if err != nil {
		s.log.Error("embedding failed for item %d: %v", req.ItemID, err)
		s.writeError(w, err)
		return
	}

	item := domain.Item{
		ItemID:    req.ItemID,
		Name:      req.Name,
		Examine:   req.Examine,
		Members:   req.Members,
		LowAlch:   req.LowAlch,
		HighAlch:  req.HighAlch,
		BuyLimit:  req.BuyLimit,
		Value:     req.Value,
		Icon:      req.Icon,
		Embedding: vec,
		TextHash:  search.TextHash(text),
	}
	if err := s.items.Upsert(item); err != nil {
		s.writeError(w, err)
		return
	}

	created, err := s.items.Get(req.ItemID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit := queryInt(r, "limit", 100)
	if limit < 1 || limit > 1000 {
		s.writeError(w, &domain.ValidationError{Field: "limit", Reason: "out of range"})
		return
	}

	if _, err := s.items.Get(id); err != nil {
		s.writeError(w, err)
		return
	}

	ticks, err := s.prices.Recent(id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ticks == nil {
		ticks = []domain.PriceTick{}
	}
	s.writeJSON(w, http.StatusOK, ticks)
}

type currentPriceResponse struct {
	ItemID    int64     `json:"item_id"`
	Name      string    `json:"name"`
	HighPrice *int64    `json:"high_price,omitempty"`
	LowPrice  *int64    `json:"low_price,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleCurrentPrice(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	item, err := s.items.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	tick, err := s.prices.Latest(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, currentPriceResponse{
		ItemID:    item.ItemID,
		Name:      item.Name,
		HighPrice: tick.HighPrice,
		LowPrice:  tick.LowPrice,
		Timestamp: tick.ObservedAt,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.items.Count()
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}

	body := map[string]interface{}{
		"status": "healthy",
		"items":  count,
		"model":  s.embedder.ModelName(),
	}
	if rd, ok := s.embedder.(interface{ Ready() error }); ok {
		switch err := rd.Ready(); {
		case err == nil:
			body["model_state"] = "ready"
		case errors.Is(err, domain.ErrModelNotLoaded):
			body["model_state"] = "not_loaded"
		default:
			body["model_state"] = "failed"
		}
	}
	s.writeJSON(w, http.StatusOK, body)
}

// Serve runs the HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func itemID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: "item_id", Reason: "must be a positive integer"}
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrNoPriceData):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrModelNotLoaded), errors.Is(err, domain.ErrModelLoadFailed):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, errorResponse{Detail: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response: %v", err)
	}
}
