package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"seatview/internal/domain"
)

type WarmService struct {
	repo    domain.ReviewRepository
	fetch   domain.ReviewFetcher
	workers int
}

type WarmReport struct {
	Total  int
	Warmed int
	Failed int
}

func NewWarmService(r domain.ReviewRepository, f domain.ReviewFetcher, workers int) *WarmService {
	if workers <= 0 {
		workers = 1
	}
	return &WarmService{repo: r, fetch: f, workers: workers}
}

// Warm fetches the most recent reviews through the fetcher so their detail
// views land in the shared cache. Per-review failures are counted, not returned.
func (s *WarmService) Warm(ctx context.Context, limit int) (WarmReport, error) {
	ids, err := s.repo.ListRecentReviewIDs(ctx, limit)
	if err != nil {
		return WarmReport{}, fmt.Errorf("list recent reviews: %w", err)
	}

	sem := semaphore.NewWeighted(int64(s.workers))
	var wg sync.WaitGroup
	var warmed, failed atomic.Int64

	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return WarmReport{Total: len(ids), Warmed: int(warmed.Load()), Failed: int(failed.Load())}, err
		}

		wg.Add(1)
		go func(reviewID int64) {
			defer wg.Done()
			defer sem.Release(1)

			if _, err := s.fetch.GetReview(ctx, reviewID); err != nil {
				failed.Add(1)
				log.Warn().Int64("review_id", reviewID).Err(err).Msg("warm failed")
				return
			}
			warmed.Add(1)
		}(id)
	}

	wg.Wait()
	return WarmReport{Total: len(ids), Warmed: int(warmed.Load()), Failed: int(failed.Load())}, nil
}
