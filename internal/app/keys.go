package app

import (
	"fmt"

	"seatview/internal/domain"
)

// DefaultListLimit is the page size used when a client does not ask for one.
const DefaultListLimit = 50

// commonLimits are the list sizes evicted on writes; other sizes age out by TTL.
var commonLimits = []int{DefaultListLimit, 100, 200}

// fenceTTLSec is how long a written review stays out of the detail cache.
const fenceTTLSec = 30

func reviewKey(id int64) string { return fmt.Sprintf("review:%d", id) }

// fenceKey marks a review written in the last fenceTTLSec seconds. Reads that
// loaded it before the write must not cache what they loaded.
func fenceKey(id int64) string { return fmt.Sprintf("review_fence:%d", id) }

func userReviewsKey(userID int64, limit int) string {
	return fmt.Sprintf("user_reviews:%d:%d", userID, limit)
}

func arenaReviewsKey(q domain.ArenaReviewsQuery) string {
	seat := "all"
	if q.SeatID != nil {
		seat = fmt.Sprintf("%d", *q.SeatID)
	}
	return fmt.Sprintf("arena_reviews:%d:%s:%d:%s:%d", q.ArenaID, q.StageType, q.Section, seat, q.Limit)
}
