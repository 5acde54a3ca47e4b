package domain

import (
	"context"
	"io"
	"time"
)

// ReviewInput is the part of a review its author submits, both when writing
// and when editing it. The web client posts it as the reviewRequestDTO part.
type ReviewInput struct {
	ConcertID    int64        `json:"concertId" validate:"gt=0"`
	SeatID       int64        `json:"seatId" validate:"gt=0"`
	Content      string       `json:"content" validate:"required,max=2000"`
	ViewScore    int          `json:"viewScore" validate:"gte=1,lte=10"`
	SeatDistance SeatDistance `json:"seatDistance" validate:"required,oneof=NEAR AVERAGE FAR"`
	Sound        Sound        `json:"sound" validate:"required,oneof=CLEAR AVERAGE POOR"`
	// ALL is a list filter, never the stage of a concrete review.
	StageType StageType `json:"stageType" validate:"required,oneof=STANDARD EXTENDED DEGREE_360"`
}

// Photo is an uploaded image on its way to a PhotoStore.
type Photo struct {
	Name        string    `validate:"max=255"`
	ContentType string    `validate:"required,startswith=image/"`
	Size        int64     `validate:"gt=0"`
	Body        io.Reader `validate:"-"`
}

// PhotoStore keeps review photos. Put returns the public URL that the
// review then carries as its photoUrl.
type PhotoStore interface {
	Put(ctx context.Context, userID int64, p Photo) (string, error)
	// Delete removes a photo previously returned by Put. URLs the store does
	// not own are ignored.
	Delete(ctx context.Context, url string) error
}

// ReviewWrite is one persisted version of a review.
type ReviewWrite struct {
	UserID   int64
	Input    ReviewInput
	PhotoURL *string
	At       time.Time
}
