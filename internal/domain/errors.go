package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRelation = errors.New("missing relation")
)

// MissingRelationError reports a review whose Seat, Concert or User was not
// hydrated when it was projected.
type MissingRelationError struct {
	ReviewID int64
	Relation string // review|seat|concert|user
}

func (e *MissingRelationError) Error() string {
	if e.Relation == "review" {
		return "missing relation: review is nil"
	}
	return fmt.Sprintf("missing relation: review %d has no %s", e.ReviewID, e.Relation)
}

func (e *MissingRelationError) Is(target error) bool { return target == ErrMissingRelation }
