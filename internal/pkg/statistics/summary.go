package statistics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RecoveryLedger/app/repository"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/cache"
)

const (
	CacheKeySummary        = "statistics:summary:%s" // Format with org id
	DefaultSummaryCacheTTL = 60 * time.Second
	cacheOpTimeout         = 500 * time.Millisecond
)

// SummaryService serves dashboard totals with a short-lived cache in front
// of the aggregation queries. Cache failures never fail the request.
type SummaryService struct {
	repo  repository.ReportRepository
	store cache.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSummaryService creates the service. A nil store disables caching.
func NewSummaryService(repo repository.ReportRepository, store cache.Store, ttl time.Duration) *SummaryService {
	if ttl <= 0 {
		ttl = DefaultSummaryCacheTTL
	}
	return &SummaryService{
		repo:  repo,
		store: store,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns the cached totals for orgID or computes and caches them.
func (s *SummaryService) Summary(ctx context.Context, orgID string) (*repository.LedgerSummary, error) {
	key := fmt.Sprintf(CacheKeySummary, orgID)

	if cached, ok := s.lookup(ctx, key); ok {
		return cached, nil
	}

	summary, err := s.repo.Summary(ctx, orgID, s.now())
	if err != nil {
		return nil, err
	}
	s.save(ctx, key, summary)
	return summary, nil
}

// Invalidate drops the cached totals for orgID.
func (s *SummaryService) Invalidate(ctx context.Context, orgID string) {
	if s.store == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := s.store.Delete(cctx, fmt.Sprintf(CacheKeySummary, orgID)); err != nil {
		log.Warnf("[Statistics] Failed to invalidate summary for %s: %v", orgID, err)
	}
}

func (s *SummaryService) lookup(ctx context.Context, key string) (*repository.LedgerSummary, bool) {
	if s.store == nil {
		return nil, false
	}
	cctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	raw, err := s.store.Get(cctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Warnf("[Statistics] Cache read failed for %s: %v", key, err)
		}
		return nil, false
	}
	var summary repository.LedgerSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		log.Warnf("[Statistics] Discarding unreadable cache entry %s: %v", key, err)
		return nil, false
	}
	return &summary, true
}

func (s *SummaryService) save(ctx context.Context, key string, summary *repository.LedgerSummary) {
	if s.store == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := s.store.Set(cctx, key, string(data), s.ttl); err != nil {
		log.Warnf("[Statistics] Cache write failed for %s: %v", key, err)
	}
}
