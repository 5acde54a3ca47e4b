package domain

import "context"

type ReviewRepository interface {
	// Read paths. Returned aggregates carry every relation that could be loaded.
	GetReview(ctx context.Context, id int64) (*Review, error)
	ListArenaReviews(ctx context.Context, q ArenaReviewsQuery) ([]*Review, error)
	ListUserReviews(ctx context.Context, userID int64, pg PageQuery) ([]*Review, error)
	ListRecentReviewIDs(ctx context.Context, limit int) ([]int64, error)

	// Write paths. Create and Update reject a SeatID or ConcertID that does
	// not exist with ErrInvalidInput.
	CreateReview(ctx context.Context, w ReviewWrite) (int64, error)
	UpdateReview(ctx context.Context, id int64, w ReviewWrite) error
	DeleteReview(ctx context.Context, id int64) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// ReviewFetcher reads a single projected review, e.g. through the public API.
type ReviewFetcher interface {
	GetReview(ctx context.Context, id int64) (ReviewDetailView, error)
}

type ArenaReviewsQuery struct {
	ArenaID   int64     `validate:"gt=0"`
	StageType StageType `validate:"required,oneof=ALL STANDARD EXTENDED DEGREE_360"`
	Section   int       `validate:"gte=0"`
	SeatID    *int64    `validate:"omitempty,gt=0"`
	Limit     int       `validate:"gte=1,lte=200"`
}

type PageQuery struct {
	Limit int `validate:"gte=1,lte=200"`
}
