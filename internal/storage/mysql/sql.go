package mysql

// selectReviewSQL hydrates a review aggregate. Relations are LEFT JOINed so a
// dangling id comes back as NULL columns instead of dropping the row.
const selectReviewSQL = `
SELECT
  r.review_id,
  r.content,
  r.view_score,
  r.seat_distance,
  r.sound,
  r.photo_url,
  r.write_time,
  r.modify_time,
  r.stage_type,
  s.seat_id,
  s.arena_id,
  s.section_number,
  s.row_line,
  s.column_line,
  c.concert_id,
  c.concert_name,
  u.user_id,
  u.nickname,
  u.level
FROM reviews r
LEFT JOIN seats s    ON s.seat_id = r.seat_id
LEFT JOIN concerts c ON c.concert_id = r.concert_id
LEFT JOIN users u    ON u.user_id = r.user_id
`

const getReviewSQL = selectReviewSQL + `WHERE r.review_id = ?`

// Seat filters need the seat row, so orphaned seats never match here.
const listArenaReviewsPrefix = selectReviewSQL + `WHERE s.arena_id = ? AND s.section_number = ?`

const listUserReviewsSQL = selectReviewSQL + `
WHERE r.user_id = ?
ORDER BY r.write_time DESC, r.review_id DESC
LIMIT ?`

const orderNewestSQL = "\nORDER BY r.write_time DESC, r.review_id DESC\nLIMIT ?"

const listRecentReviewIDsSQL = `
SELECT review_id
FROM reviews
ORDER BY write_time DESC, review_id DESC
LIMIT ?`

// createReviewSQL inserts nothing unless seat, concert and author exist.
const createReviewSQL = `
INSERT INTO reviews
  (seat_id, concert_id, user_id, content, view_score, seat_distance, sound, photo_url, stage_type, write_time, modify_time)
SELECT s.seat_id, c.concert_id, u.user_id, ?, ?, ?, ?, ?, ?, ?, ?
FROM seats s
JOIN concerts c ON c.concert_id = ?
JOIN users u    ON u.user_id = ?
WHERE s.seat_id = ?`

// updateReviewSQL leaves user_id and write_time alone. It matches nothing
// when the new seat or concert does not exist.
const updateReviewSQL = `
UPDATE reviews r
JOIN seats s    ON s.seat_id = ?
JOIN concerts c ON c.concert_id = ?
SET
  r.seat_id       = s.seat_id,
  r.concert_id    = c.concert_id,
  r.content       = ?,
  r.view_score    = ?,
  r.seat_distance = ?,
  r.sound         = ?,
  r.photo_url     = ?,
  r.stage_type    = ?,
  r.modify_time   = ?
WHERE r.review_id = ?`

const reviewExistsSQL = `SELECT 1 FROM reviews WHERE review_id = ?`

const deleteReviewSQL = `DELETE FROM reviews WHERE review_id = ?`
