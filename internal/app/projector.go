package app

import "seatview/internal/domain"

// ProjectReview flattens a hydrated review aggregate into its detail view.
// It fails with *domain.MissingRelationError if the review or any of its
// seat, concert or user relations is nil.
func ProjectReview(r *domain.Review) (domain.ReviewDetailView, error) {
	if r == nil {
		return domain.ReviewDetailView{}, &domain.MissingRelationError{Relation: "review"}
	}
	switch {
	case r.Seat == nil:
		return domain.ReviewDetailView{}, &domain.MissingRelationError{ReviewID: r.ReviewID, Relation: "seat"}
	case r.Concert == nil:
		return domain.ReviewDetailView{}, &domain.MissingRelationError{ReviewID: r.ReviewID, Relation: "concert"}
	case r.User == nil:
		return domain.ReviewDetailView{}, &domain.MissingRelationError{ReviewID: r.ReviewID, Relation: "user"}
	}

	return domain.ReviewDetailView{
		ReviewID:     r.ReviewID,
		SeatID:       r.Seat.SeatID,
		RowLine:      r.Seat.RowLine,
		ColumnLine:   r.Seat.ColumnLine,
		ConcertID:    r.Concert.ConcertID,
		Content:      r.Content,
		ViewScore:    r.ViewScore,
		SeatDistance: r.SeatDistance,
		Sound:        r.Sound,
		PhotoURL:     copyStr(r.PhotoURL),
		WriteTime:    r.WriteTime,
		ModifyTime:   r.ModifyTime,
		StageType:    r.StageType,
		Level:        r.User.Level,
		Nickname:     r.User.Nickname,
		ConcertName:  r.Concert.ConcertName,
		UserID:       r.User.UserID,
	}, nil
}

// ProjectReviews projects every review or none: the first missing relation
// aborts the whole page.
func ProjectReviews(rs []*domain.Review) (domain.ReviewsPage, error) {
	out := domain.ReviewsPage{Reviews: make([]domain.ReviewDetailView, 0, len(rs))}
	for _, r := range rs {
		v, err := ProjectReview(r)
		if err != nil {
			return domain.ReviewsPage{}, err
		}
		out.Reviews = append(out.Reviews, v)
	}
	return out, nil
}

// copyStr keeps nil as nil and otherwise returns a fresh pointer.
func copyStr(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}
