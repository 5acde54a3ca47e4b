//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"seatview/internal/domain"
	mysqlrepo "seatview/internal/storage/mysql"
)

// ---------- small helpers ----------

// migrationsDir prefers MIGRATIONS_DIR and falls back to the repo's migrations/.
func migrationsDir(t *testing.T) string {
	t.Helper()
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir(t)

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	// Start isolated MySQL; let Docker pick a free host port.
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=seatview",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "seatview")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

const seedSQL = `
INSERT INTO users (user_id, nickname, level) VALUES (7, 'abc', 'GOLD'), (8, 'def', 'SILVER');
INSERT INTO concerts (concert_id, concert_name, arena_id) VALUES (100, 'Spring Fest', 2);
INSERT INTO seats (seat_id, arena_id, section_number, row_line, column_line) VALUES
  (10, 2, 4, 3, 5),
  (11, 2, 4, 3, 6),
  (12, 2, 9, 1, 1);
INSERT INTO reviews (review_id, seat_id, concert_id, user_id, content, view_score, seat_distance, sound, photo_url, stage_type, write_time, modify_time) VALUES
  (1, 10, 100, 7, 'Great view', 8, 'NEAR', 'CLEAR', NULL, 'STANDARD', '2025-03-14 19:30:00', '2025-03-14 19:30:00'),
  (2, 11, 100, 8, 'Bit far', 6, 'AVERAGE', 'CLEAR', 'https://cdn.example.com/r/2.jpg', 'STANDARD', '2025-03-15 19:30:00', '2025-03-15 20:00:00'),
  (3, 10, 100, 7, 'In the round', 9, 'NEAR', 'AVERAGE', '', 'DEGREE_360', '2025-03-16 19:30:00', '2025-03-16 19:30:00'),
  (4, 12, 999, 7, 'Orphaned concert', 5, 'FAR', 'POOR', NULL, 'STANDARD', '2025-03-17 19:30:00', '2025-03-17 19:30:00');
`

// ---------- the test ----------
func TestRepo_MySQL_HydrateAndQuery(t *testing.T) {
	db := startMySQL(t)
	if _, err := db.Exec(seedSQL); err != nil {
		t.Fatalf("seed: %v", err)
	}

	repo := mysqlrepo.New(db)
	ctx := context.Background()

	// Fully hydrated aggregate
	r, err := repo.GetReview(ctx, 1)
	if err != nil {
		t.Fatalf("GetReview: %v", err)
	}
	if r.Seat == nil || r.Concert == nil || r.User == nil {
		t.Fatalf("expected all relations, got %+v", r)
	}
	if r.Seat.SeatID != 10 || r.Seat.RowLine != 3 || r.Seat.ColumnLine != 5 || r.Seat.ArenaID != 2 || r.Seat.SectionNumber != 4 {
		t.Fatalf("unexpected seat: %+v", r.Seat)
	}
	if r.Concert.ConcertName != "Spring Fest" || r.User.Nickname != "abc" || r.User.Level != "GOLD" {
		t.Fatalf("unexpected relations: %+v %+v", r.Concert, r.User)
	}
	if r.PhotoURL != nil {
		t.Fatalf("expected NULL photo to stay absent, got %q", *r.PhotoURL)
	}
	if !r.WriteTime.Equal(time.Date(2025, 3, 14, 19, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected write time: %v", r.WriteTime)
	}

	// Empty photo stays empty, not absent
	r3, err := repo.GetReview(ctx, 3)
	if err != nil {
		t.Fatalf("GetReview(3): %v", err)
	}
	if r3.PhotoURL == nil || *r3.PhotoURL != "" {
		t.Fatalf("expected empty photo, got %v", r3.PhotoURL)
	}

	// Dangling concert id surfaces as a nil relation
	r4, err := repo.GetReview(ctx, 4)
	if err != nil {
		t.Fatalf("GetReview(4): %v", err)
	}
	if r4.Concert != nil || r4.Seat == nil || r4.User == nil {
		t.Fatalf("expected only concert missing, got %+v", r4)
	}

	if _, err := repo.GetReview(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Arena lists
	std, err := repo.ListArenaReviews(ctx, domain.ArenaReviewsQuery{ArenaID: 2, StageType: domain.StageStandard, Section: 4, Limit: 50})
	if err != nil {
		t.Fatalf("ListArenaReviews: %v", err)
	}
	if len(std) != 2 || std[0].ReviewID != 2 || std[1].ReviewID != 1 {
		t.Fatalf("expected [2 1] newest first, got %v", ids(std))
	}

	seat := int64(10)
	all, err := repo.ListArenaReviews(ctx, domain.ArenaReviewsQuery{ArenaID: 2, StageType: domain.StageAll, Section: 4, SeatID: &seat, Limit: 50})
	if err != nil {
		t.Fatalf("ListArenaReviews(ALL): %v", err)
	}
	if len(all) != 2 || all[0].ReviewID != 3 || all[1].ReviewID != 1 {
		t.Fatalf("expected [3 1], got %v", ids(all))
	}

	// User list
	mine, err := repo.ListUserReviews(ctx, 7, domain.PageQuery{Limit: 2})
	if err != nil {
		t.Fatalf("ListUserReviews: %v", err)
	}
	if len(mine) != 2 || mine[0].ReviewID != 4 || mine[1].ReviewID != 3 {
		t.Fatalf("expected [4 3], got %v", ids(mine))
	}

	recent, err := repo.ListRecentReviewIDs(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecentReviewIDs: %v", err)
	}
	if fmt.Sprint(recent) != "[4 3 2]" {
		t.Fatalf("expected [4 3 2], got %v", recent)
	}

	// Create
	photo := "https://storage.googleapis.com/seatview/reviews/8/a.jpg"
	at := time.Date(2025, 3, 18, 19, 30, 0, 123456000, time.UTC)
	in := domain.ReviewInput{
		ConcertID: 100, SeatID: 11, Content: "Loud but fine", ViewScore: 7,
		SeatDistance: domain.SeatDistanceAverage, Sound: domain.SoundPoor, StageType: domain.StageExtended,
	}
	newID, err := repo.CreateReview(ctx, domain.ReviewWrite{UserID: 8, Input: in, PhotoURL: &photo, At: at})
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	created, err := repo.GetReview(ctx, newID)
	if err != nil {
		t.Fatalf("GetReview(created): %v", err)
	}
	if created.Seat == nil || created.Seat.SeatID != 11 || created.User == nil || created.User.UserID != 8 ||
		created.Content != "Loud but fine" || created.StageType != domain.StageExtended ||
		created.PhotoURL == nil || *created.PhotoURL != photo ||
		!created.WriteTime.Equal(at) || !created.ModifyTime.Equal(at) {
		t.Fatalf("unexpected created review: %+v", created)
	}

	bad := in
	bad.SeatID = 999
	if _, err := repo.CreateReview(ctx, domain.ReviewWrite{UserID: 8, Input: bad, At: at}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown seat, got %v", err)
	}
	if _, err := repo.CreateReview(ctx, domain.ReviewWrite{UserID: 404, Input: in, At: at}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown user, got %v", err)
	}

	// Update
	later := at.Add(time.Hour)
	edit := in
	edit.SeatID = 12
	edit.Content = "Moved to section 9"
	if err := repo.UpdateReview(ctx, newID, domain.ReviewWrite{UserID: 8, Input: edit, At: later}); err != nil {
		t.Fatalf("UpdateReview: %v", err)
	}
	updated, err := repo.GetReview(ctx, newID)
	if err != nil {
		t.Fatalf("GetReview(updated): %v", err)
	}
	if updated.Seat.SeatID != 12 || updated.Seat.SectionNumber != 9 || updated.Content != "Moved to section 9" ||
		updated.PhotoURL != nil || updated.User.UserID != 8 ||
		!updated.WriteTime.Equal(at) || !updated.ModifyTime.Equal(later) {
		t.Fatalf("unexpected updated review: %+v", updated)
	}
	if err := repo.UpdateReview(ctx, 404, domain.ReviewWrite{Input: edit, At: later}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing review, got %v", err)
	}
	edit.ConcertID = 999
	if err := repo.UpdateReview(ctx, newID, domain.ReviewWrite{Input: edit, At: later}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown concert, got %v", err)
	}

	// Delete
	if err := repo.DeleteReview(ctx, 2); err != nil {
		t.Fatalf("DeleteReview: %v", err)
	}
	if err := repo.DeleteReview(ctx, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func ids(rs []*domain.Review) []int64 {
	out := make([]int64, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ReviewID)
	}
	return out
}
