package app

import (
	"context"
	"time"

	"seatview/internal/adapters/observability"
	"seatview/internal/domain"
)

type QueryService struct {
	repo     domain.ReviewRepository
	cache    domain.Cache
	cacheTTL time.Duration
	listTTL  time.Duration
}

func NewQueryService(r domain.ReviewRepository, c domain.Cache, ttl, listTTL time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, listTTL: listTTL}
}

func (s *QueryService) GetReview(ctx context.Context, id int64) (domain.ReviewDetailView, error) {
	key := reviewKey(id)
	var v domain.ReviewDetailView
	if ok, _ := s.cache.Get(ctx, key, &v); ok {
		return v, nil
	}
	r, err := s.repo.GetReview(ctx, id)
	if err != nil {
		return domain.ReviewDetailView{}, err
	}
	v, err = ProjectReview(r)
	observability.ObserveProjection(1, err)
	if err != nil {
		return domain.ReviewDetailView{}, err
	}
	var fenced bool
	if ok, _ := s.cache.Get(ctx, fenceKey(id), &fenced); !ok {
		_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
	}
	return v, nil
}

func (s *QueryService) ListArenaReviews(ctx context.Context, q domain.ArenaReviewsQuery) (domain.ReviewsPage, error) {
	if err := Validate(q); err != nil {
		return domain.ReviewsPage{}, err
	}
	key := arenaReviewsKey(q)
	var out domain.ReviewsPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	rs, err := s.repo.ListArenaReviews(ctx, q)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	return s.projectAndCache(ctx, key, rs)
}

func (s *QueryService) ListUserReviews(ctx context.Context, userID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	if err := Validate(pg); err != nil {
		return domain.ReviewsPage{}, err
	}
	key := userReviewsKey(userID, pg.Limit)
	var out domain.ReviewsPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	rs, err := s.repo.ListUserReviews(ctx, userID, pg)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	return s.projectAndCache(ctx, key, rs)
}

func (s *QueryService) projectAndCache(ctx context.Context, key string, rs []*domain.Review) (domain.ReviewsPage, error) {
	page, err := ProjectReviews(rs)
	observability.ObserveProjection(len(rs), err)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	// The cache refuses oversized pages itself.
	_ = s.cache.Set(ctx, key, page, int(s.listTTL.Seconds()))
	return page, nil
}
