package workforce

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type Worker struct {
	ID       string   `json:"id"`
	Domain   []string `json:"domain"`
	Lang     []string `json:"lang"`
	Location string   `json:"location"`
}

// Criteria narrows the worker pool. An empty list places no constraint on
// its dimension.
type Criteria struct {
	Domains   []string `json:"domains"`
	Langs     []string `json:"langs"`
	Locations []string `json:"locations"`
}

// Filter keeps workers that match any listed value in every constrained
// dimension. Matching ignores case and the pool order is preserved.
func Filter(pool []Worker, domains, langs, locations []string) []Worker {
	domainSet := lowerSet(domains)
	langSet := lowerSet(langs)
	locationSet := lowerSet(locations)

	out := make([]Worker, 0, len(pool))
	for _, w := range pool {
		if !anyIn(domainSet, w.Domain) || !anyIn(langSet, w.Lang) {
			continue
		}
		if len(locationSet) > 0 && !locationSet[strings.ToLower(w.Location)] {
			continue
		}
		out = append(out, w)
	}
	return out
}

func lowerSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}

func anyIn(set map[string]bool, attrs []string) bool {
	if len(set) == 0 {
		return true
	}
	for _, a := range attrs {
		if set[strings.ToLower(a)] {
			return true
		}
	}
	return false
}

type Repository interface {
	List(ctx context.Context) ([]Worker, error)
	Upsert(ctx context.Context, w *Worker) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// PoolCache holds a snapshot of the whole worker pool.
type PoolCache interface {
	Get(ctx context.Context) ([]Worker, bool, error)
	Set(ctx context.Context, pool []Worker) error
	Invalidate(ctx context.Context) error
}

type Service struct {
	repo  Repository
	cache PoolCache
}

// NewService builds the directory service. cache may be nil.
func NewService(repo Repository, cache PoolCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Pool returns the wholesale worker pool, served from cache when possible.
// Cache failures fall back to the repository.
func (s *Service) Pool(ctx context.Context) ([]Worker, error) {
	if s.cache != nil {
		pool, ok, err := s.cache.Get(ctx)
		if err != nil {
			slog.WarnContext(ctx, "worker pool cache read failed", "error", err)
		} else if ok {
			return pool, nil
		}
	}

	pool, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, pool); err != nil {
			slog.WarnContext(ctx, "worker pool cache write failed", "error", err)
		}
	}
	return pool, nil
}

func (s *Service) Find(ctx context.Context, c Criteria) ([]Worker, error) {
	pool, err := s.Pool(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(pool, c.Domains, c.Langs, c.Locations), nil
}

func (s *Service) Save(ctx context.Context, w *Worker) error {
	if w.ID == "" {
		return fmt.Errorf("worker id is required")
	}
	if err := s.repo.Upsert(ctx, w); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		slog.WarnContext(ctx, "worker pool cache invalidation failed", "error", err)
	}
}
