package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"seatview/internal/adapters/observability"
	"seatview/internal/domain"
)

type CommandService struct {
	repo   domain.ReviewRepository
	cache  domain.Cache
	photos domain.PhotoStore
	now    func() time.Time
}

func NewCommandService(r domain.ReviewRepository, cache domain.Cache, photos domain.PhotoStore) *CommandService {
	return &CommandService{
		repo:   r,
		cache:  cache,
		photos: photos,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// CreateReview stores the photo, writes a review by userID and returns the
// projection of what was stored.
func (s *CommandService) CreateReview(ctx context.Context, userID int64, in domain.ReviewInput, photo domain.Photo) (domain.ReviewDetailView, error) {
	if err := validateWrite(in, photo); err != nil {
		return domain.ReviewDetailView{}, err
	}
	url, err := s.photos.Put(ctx, userID, photo)
	if err != nil {
		return domain.ReviewDetailView{}, fmt.Errorf("store photo: %w", err)
	}

	now := s.now()
	id, err := s.repo.CreateReview(ctx, domain.ReviewWrite{UserID: userID, Input: in, PhotoURL: &url, At: now})
	if err != nil {
		s.dropPhoto(ctx, url)
		return domain.ReviewDetailView{}, fmt.Errorf("create review: %w", err)
	}
	return s.refresh(ctx, id)
}

// UpdateReview replaces the content and photo of a review written by userID.
// The write time is kept; the modify time moves to now.
func (s *CommandService) UpdateReview(ctx context.Context, id, userID int64, in domain.ReviewInput, photo domain.Photo) (domain.ReviewDetailView, error) {
	if err := validateWrite(in, photo); err != nil {
		return domain.ReviewDetailView{}, err
	}
	old, err := s.authorize(ctx, id, userID)
	if err != nil {
		return domain.ReviewDetailView{}, err
	}
	url, err := s.photos.Put(ctx, userID, photo)
	if err != nil {
		return domain.ReviewDetailView{}, fmt.Errorf("store photo: %w", err)
	}

	s.fence(ctx, id)
	if err := s.repo.UpdateReview(ctx, id, domain.ReviewWrite{UserID: userID, Input: in, PhotoURL: &url, At: s.now()}); err != nil {
		s.dropPhoto(ctx, url)
		return domain.ReviewDetailView{}, fmt.Errorf("update review %d: %w", id, err)
	}
	// Lists of the old seat and stage type no longer hold this version.
	s.invalidateReview(ctx, old)
	if old.PhotoURL != nil && *old.PhotoURL != url {
		s.dropPhoto(ctx, *old.PhotoURL)
	}
	return s.refresh(ctx, id)
}

// DeleteReview removes a review written by userID and evicts every cached
// read model that could contain it.
func (s *CommandService) DeleteReview(ctx context.Context, id, userID int64) error {
	r, err := s.authorize(ctx, id, userID)
	if err != nil {
		return err
	}

	s.fence(ctx, id)
	if err := s.repo.DeleteReview(ctx, id); err != nil {
		return fmt.Errorf("delete review %d: %w", id, err)
	}
	s.invalidateReview(ctx, r)
	if r.PhotoURL != nil {
		s.dropPhoto(ctx, *r.PhotoURL)
	}
	return nil
}

func validateWrite(in domain.ReviewInput, photo domain.Photo) error {
	if err := Validate(in); err != nil {
		return err
	}
	if photo.Body == nil {
		return fmt.Errorf("%w: photo is required", domain.ErrInvalidInput)
	}
	return Validate(photo)
}

// authorize loads review id and checks that userID wrote it.
func (s *CommandService) authorize(ctx context.Context, id, userID int64) (*domain.Review, error) {
	r, err := s.repo.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	// Authorship cannot be checked without the author.
	if r.User == nil {
		return nil, &domain.MissingRelationError{ReviewID: id, Relation: "user"}
	}
	if r.User.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return r, nil
}

// refresh reloads a written review, evicts the views it now belongs to and
// projects it.
func (s *CommandService) refresh(ctx context.Context, id int64) (domain.ReviewDetailView, error) {
	r, err := s.repo.GetReview(ctx, id)
	if err != nil {
		return domain.ReviewDetailView{}, fmt.Errorf("reload review %d: %w", id, err)
	}
	s.invalidateReview(ctx, r)
	v, err := ProjectReview(r)
	observability.ObserveProjection(1, err)
	return v, err
}

// fence keeps reads that started before a write from caching the old row,
// then drops the cached detail.
func (s *CommandService) fence(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, fenceKey(id), true, fenceTTLSec)
	_ = s.cache.Del(ctx, reviewKey(id))
}

func (s *CommandService) dropPhoto(ctx context.Context, url string) {
	if s.photos == nil || url == "" {
		return
	}
	if err := s.photos.Delete(ctx, url); err != nil {
		log.Warn().Err(err).Str("photo_url", url).Msg("photo cleanup failed")
	}
}

func (s *CommandService) invalidateReview(ctx context.Context, r *domain.Review) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, reviewKey(r.ReviewID))
	if r.User != nil {
		for _, lim := range commonLimits {
			_ = s.cache.Del(ctx, userReviewsKey(r.User.UserID, lim))
		}
	}
	if r.Seat != nil {
		s.invalidateArena(ctx, r.Seat, r.StageType)
	}
}

// invalidateArena clears the seat-filtered and unfiltered lists of the
// review's stage type and of ALL.
func (s *CommandService) invalidateArena(ctx context.Context, seat *domain.Seat, stage domain.StageType) {
	seatID := seat.SeatID
	stages := []domain.StageType{stage}
	if stage != domain.StageAll {
		stages = append(stages, domain.StageAll)
	}
	for _, st := range stages {
		for _, sid := range []*int64{nil, &seatID} {
			for _, lim := range commonLimits {
				_ = s.cache.Del(ctx, arenaReviewsKey(domain.ArenaReviewsQuery{
					ArenaID:   seat.ArenaID,
					StageType: st,
					Section:   seat.SectionNumber,
					SeatID:    sid,
					Limit:     lim,
				}))
			}
		}
	}
}
