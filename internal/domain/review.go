package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type SeatDistance string

const (
	SeatDistanceNear    SeatDistance = "NEAR"
	SeatDistanceAverage SeatDistance = "AVERAGE"
	SeatDistanceFar     SeatDistance = "FAR"
)

type Sound string

const (
	SoundClear   Sound = "CLEAR"
	SoundAverage Sound = "AVERAGE"
	SoundPoor    Sound = "POOR"
)

type StageType string

const (
	StageAll       StageType = "ALL"
	StageStandard  StageType = "STANDARD"
	StageExtended  StageType = "EXTENDED"
	StageDegree360 StageType = "DEGREE_360"
)

// stageTypes is ordered by ordinal; the web client sends ordinals.
var stageTypes = []StageType{StageAll, StageStandard, StageExtended, StageDegree360}

// ParseStageType accepts either the name ("STANDARD") or its ordinal ("1").
func ParseStageType(s string) (StageType, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n >= len(stageTypes) {
			return "", false
		}
		return stageTypes[n], true
	}
	up := StageType(strings.ToUpper(s))
	for _, st := range stageTypes {
		if st == up {
			return st, true
		}
	}
	return "", false
}

// UnmarshalJSON accepts a stage name or its ordinal, quoted or not.
func (s *StageType) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	st, ok := ParseStageType(raw)
	if !ok {
		return fmt.Errorf("%w: unknown stage type %s", ErrInvalidInput, b)
	}
	*s = st
	return nil
}

type Seat struct {
	SeatID        int64
	ArenaID       int64
	SectionNumber int
	RowLine       int64
	ColumnLine    int64
}

type Concert struct {
	ConcertID   int64
	ConcertName string
}

type User struct {
	UserID   int64
	Nickname string
	Level    string
}

// Review is the persisted aggregate. Seat, Concert and User are references
// hydrated by the storage layer; a nil relation means it could not be loaded.
type Review struct {
	ReviewID     int64
	Seat         *Seat
	Concert      *Concert
	User         *User
	Content      string
	ViewScore    int
	SeatDistance SeatDistance
	Sound        Sound
	PhotoURL     *string
	WriteTime    time.Time
	ModifyTime   time.Time
	StageType    StageType
}
