package sets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const registryCacheKey = "namedsets"

type ServiceConfig struct {
	SourceURL  string
	CacheTTL   time.Duration
	HTTPClient *http.Client
}

// Service holds the fetched question sets. The list is replaced
// wholesale on every load; nothing mutates it in place. A TTL cache
// decides when Current refetches from the source.
type Service struct {
	sourceURL string
	client    *http.Client
	cache     *gocache.Cache

	mu   sync.RWMutex
	sets []QuestionSet
	gen  atomic.Uint64
}

func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Service{
		sourceURL: cfg.SourceURL,
		client:    client,
		cache:     gocache.New(ttl, 2*ttl),
	}
}

// Load fetches the sets from the source and replaces the registry.
// Any failure degrades to an empty registry; no error escapes and no
// retry is attempted.
func (s *Service) Load(ctx context.Context) []QuestionSet {
	fetched, err := s.fetch(ctx)
	if err != nil {
		log.Printf("sets: load failed: %v", err)
		fetched = nil
	}
	return s.Replace(fetched)
}

// Current returns the registry, refetching when the cache TTL has
// lapsed. Reads between refreshes are served from the held list.
func (s *Service) Current(ctx context.Context) []QuestionSet {
	if _, ok := s.cache.Get(registryCacheKey); ok {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.sets
	}
	return s.Load(ctx)
}

// Replace installs a new registry wholesale and bumps the generation,
// signalling the session controller to re-validate its position.
func (s *Service) Replace(next []QuestionSet) []QuestionSet {
	if next == nil {
		next = []QuestionSet{}
	}
	s.mu.Lock()
	s.sets = next
	s.mu.Unlock()
	s.cache.SetDefault(registryCacheKey, len(next))
	s.gen.Add(1)
	return next
}

// Generation increments each time the registry is replaced.
func (s *Service) Generation() uint64 {
	return s.gen.Load()
}

func (s *Service) fetch(ctx context.Context) ([]QuestionSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sets: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read sets body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sets source status %d", resp.StatusCode)
	}

	var fetched []QuestionSet
	if err := json.Unmarshal(raw, &fetched); err != nil {
		return nil, fmt.Errorf("decode sets: %w", err)
	}
	return fetched, nil
}

// FindQuestion looks a question up by its text across all sets.
func (s *Service) FindQuestion(text string) (Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, set := range s.sets {
		for _, q := range set.Questions {
			if q.Question == text {
				return q, true
			}
		}
	}
	return Question{}, false
}
