package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"seatview/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

type scanner interface {
	Scan(dest ...any) error
}

// scanReview reads one selectReviewSQL row. Each relation is attached only
// when its key column is non-NULL.
func scanReview(row scanner) (*domain.Review, error) {
	var (
		rv                         domain.Review
		seatDistance, sound, stage string
		photo                      sql.NullString
		seatID, arenaID            sql.NullInt64
		rowLine, colLine           sql.NullInt64
		section                    sql.NullInt32
		concertID                  sql.NullInt64
		concertName                sql.NullString
		userID                     sql.NullInt64
		nickname, level            sql.NullString
	)
	if err := row.Scan(
		&rv.ReviewID,
		&rv.Content,
		&rv.ViewScore,
		&seatDistance,
		&sound,
		&photo,
		&rv.WriteTime,
		&rv.ModifyTime,
		&stage,
		&seatID, &arenaID, &section, &rowLine, &colLine,
		&concertID, &concertName,
		&userID, &nickname, &level,
	); err != nil {
		return nil, err
	}

	rv.SeatDistance = domain.SeatDistance(seatDistance)
	rv.Sound = domain.Sound(sound)
	rv.StageType = domain.StageType(stage)
	if photo.Valid {
		p := photo.String
		rv.PhotoURL = &p
	}
	if seatID.Valid {
		rv.Seat = &domain.Seat{
			SeatID:        seatID.Int64,
			ArenaID:       arenaID.Int64,
			SectionNumber: int(section.Int32),
			RowLine:       rowLine.Int64,
			ColumnLine:    colLine.Int64,
		}
	}
	if concertID.Valid {
		rv.Concert = &domain.Concert{ConcertID: concertID.Int64, ConcertName: concertName.String}
	}
	if userID.Valid {
		rv.User = &domain.User{UserID: userID.Int64, Nickname: nickname.String, Level: level.String}
	}
	return &rv, nil
}

func (r *Repo) GetReview(ctx context.Context, id int64) (*domain.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, getReviewSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get review %d: %w", id, err)
	}
	return rv, nil
}

func (r *Repo) ListArenaReviews(ctx context.Context, q domain.ArenaReviewsQuery) ([]*domain.Review, error) {
	var sb strings.Builder
	sb.WriteString(listArenaReviewsPrefix)
	args := []any{q.ArenaID, q.Section}
	// ALL spans every stage type.
	if q.StageType != domain.StageAll {
		sb.WriteString(" AND r.stage_type = ?")
		args = append(args, string(q.StageType))
	}
	if q.SeatID != nil {
		sb.WriteString(" AND s.seat_id = ?")
		args = append(args, *q.SeatID)
	}
	sb.WriteString(orderNewestSQL)
	args = append(args, q.Limit)

	return r.queryReviews(ctx, sb.String(), args...)
}

func (r *Repo) ListUserReviews(ctx context.Context, userID int64, pg domain.PageQuery) ([]*domain.Review, error) {
	return r.queryReviews(ctx, listUserReviewsSQL, userID, pg.Limit)
}

func (r *Repo) queryReviews(ctx context.Context, query string, args ...any) ([]*domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Review, 0)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) ListRecentReviewIDs(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, listRecentReviewIDsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repo) CreateReview(ctx context.Context, w domain.ReviewWrite) (int64, error) {
	in := w.Input
	res, err := r.db.ExecContext(ctx, createReviewSQL,
		in.Content, in.ViewScore, string(in.SeatDistance), string(in.Sound), w.PhotoURL, string(in.StageType), w.At, w.At,
		in.ConcertID, w.UserID, in.SeatID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: seat %d, concert %d or user %d does not exist", domain.ErrInvalidInput, in.SeatID, in.ConcertID, w.UserID)
	}
	return res.LastInsertId()
}

func (r *Repo) UpdateReview(ctx context.Context, id int64, w domain.ReviewWrite) error {
	in := w.Input
	res, err := r.db.ExecContext(ctx, updateReviewSQL,
		in.SeatID, in.ConcertID,
		in.Content, in.ViewScore, string(in.SeatDistance), string(in.Sound), w.PhotoURL, string(in.StageType), w.At,
		id,
	)
	if err != nil {
		return fmt.Errorf("update review %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var one int
	switch err := r.db.QueryRowContext(ctx, reviewExistsSQL, id).Scan(&one); {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrNotFound
	case err != nil:
		return err
	}
	return fmt.Errorf("%w: seat %d or concert %d does not exist", domain.ErrInvalidInput, in.SeatID, in.ConcertID)
}

func (r *Repo) DeleteReview(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteReviewSQL, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
