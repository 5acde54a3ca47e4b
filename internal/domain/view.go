package domain

import "time"

// ReviewDetailView is the flat read model served to clients. It is a
// snapshot: nothing in it points back into the Review it was built from.
type ReviewDetailView struct {
	ReviewID     int64        `json:"reviewId"`
	SeatID       int64        `json:"seatId"`
	RowLine      int64        `json:"rowLine"`
	ColumnLine   int64        `json:"columnLine"`
	ConcertID    int64        `json:"concertId"`
	Content      string       `json:"content"`
	ViewScore    int          `json:"viewScore"`
	SeatDistance SeatDistance `json:"seatDistance"`
	Sound        Sound        `json:"sound"`
	PhotoURL     *string      `json:"photoUrl"` // null when absent, "" when empty
	WriteTime    time.Time    `json:"writeTime"`
	ModifyTime   time.Time    `json:"modifyTime"`
	StageType    StageType    `json:"stageType"`
	Level        string       `json:"level"`
	Nickname     string       `json:"nickname"`
	ConcertName  string       `json:"concertName"`
	UserID       int64        `json:"userId"`
}

type ReviewsPage struct {
	Reviews []ReviewDetailView `json:"reviews"`
}
