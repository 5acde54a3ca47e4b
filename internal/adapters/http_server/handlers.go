package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"seatview/internal/app"
	"seatview/internal/domain"
)

// UserHeader carries the caller's user id, set by the auth gateway in front
// of this service.
const UserHeader = "X-User-ID"

// ProblemMissingRelation types the problem answered for a review whose seat,
// concert or author row is gone. Retrying cannot fix it.
const ProblemMissingRelation = "urn:seatview:missing-relation"

// Multipart parts of a review write, as the web client names them.
const (
	reviewPart = "reviewRequestDTO"
	filePart   = "file"
)

const DefaultMaxPhotoBytes = 10 << 20

type Handlers struct {
	Q *app.QueryService
	C *app.CommandService
	// MaxPhotoBytes caps an uploaded photo; 0 means DefaultMaxPhotoBytes.
	MaxPhotoBytes int64
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/api/v1", func(r chi.Router) {
		r.Post("/view/reviews", h.createReview)
		r.Get("/view/reviews/{reviewId}", h.getReview)
		r.Put("/view/reviews/{reviewId}", h.updateReview)
		r.Delete("/view/reviews/{reviewId}", h.deleteReview)
		r.Get("/view/arenas/{arenaId}/reviews", h.listArenaReviews)
		r.Get("/mypage/reviews", h.listMyReviews)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeTypedProblem(w, status, "about:blank", title, detail)
}

func writeTypedProblem(w http.ResponseWriter, status int, typ, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: typ, Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		mre *domain.MissingRelationError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.As(err, &mbe):
		writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", fmt.Sprintf("upload exceeds %d bytes", mbe.Limit))
	case errors.Is(err, domain.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "review not found")
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", "only the author may do this")
	case errors.As(err, &mre):
		log.Error().Err(err).
			Int64("review_id", mre.ReviewID).
			Str("relation", mre.Relation).
			Str("path", r.URL.Path).
			Msg("review aggregate is missing a relation")
		writeTypedProblem(w, http.StatusInternalServerError, ProblemMissingRelation, "Internal Server Error", "review data is incomplete")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeJSON answers 304 when the client already holds this representation.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

// writeBody answers a write with the resulting representation.
func writeBody(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidInput}, args...)...)
}

// readReviewForm decodes a review write: the JSON reviewRequestDTO part and
// the photo in the file part. done releases the upload and is never nil.
func (h *Handlers) readReviewForm(w http.ResponseWriter, r *http.Request) (in domain.ReviewInput, photo domain.Photo, done func(), err error) {
	done = func() {}
	limit := h.MaxPhotoBytes
	if limit <= 0 {
		limit = DefaultMaxPhotoBytes
	}
	// Room for the JSON part and multipart framing on top of the photo.
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		return in, photo, done, fmt.Errorf("%w: multipart body: %w", domain.ErrInvalidInput, err)
	}
	form := r.MultipartForm
	done = func() { _ = form.RemoveAll() }

	// Browsers send the JSON part as a Blob, which arrives as a file.
	var raw []byte
	if v := form.Value[reviewPart]; len(v) > 0 {
		raw = []byte(v[0])
	} else if fhs := form.File[reviewPart]; len(fhs) > 0 {
		f, err := fhs[0].Open()
		if err != nil {
			return in, photo, done, err
		}
		raw, err = io.ReadAll(io.LimitReader(f, 64<<10))
		_ = f.Close()
		if err != nil {
			return in, photo, done, err
		}
	}
	if len(raw) == 0 {
		return in, photo, done, invalid("%s part is required", reviewPart)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, photo, done, invalid("%s: %v", reviewPart, err)
	}

	fhs := form.File[filePart]
	if len(fhs) == 0 {
		return in, photo, done, invalid("%s part is required", filePart)
	}
	fh := fhs[0]
	if fh.Size > limit {
		return in, photo, done, &http.MaxBytesError{Limit: limit}
	}
	f, err := fh.Open()
	if err != nil {
		return in, photo, done, err
	}
	done = func() { _ = f.Close(); _ = form.RemoveAll() }

	// Trust the bytes, not the client's Content-Type.
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return in, photo, done, fmt.Errorf("sniff photo: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return in, photo, done, err
	}
	photo = domain.Photo{Name: fh.Filename, ContentType: mt.String(), Size: fh.Size, Body: f}
	return in, photo, done, nil
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func callerID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(UserHeader), 10, 64)
	return id, err == nil && id > 0
}

func limitParam(r *http.Request) (int, bool) {
	ls := r.URL.Query().Get("limit")
	if ls == "" {
		return app.DefaultListLimit, true
	}
	l, err := strconv.Atoi(ls)
	if err != nil || l <= 0 || l > 200 {
		return 0, false
	}
	return l, true
}

func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "reviewId")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "reviewId must be a positive number")
		return
	}
	v, err := h.Q.GetReview(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, v)
}

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", UserHeader+" header is required")
		return
	}
	in, photo, done, err := h.readReviewForm(w, r)
	defer done()
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.C.CreateReview(r.Context(), uid, in, photo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Int64("review_id", v.ReviewID).Int64("user_id", uid).Msg("review created")
	w.Header().Set("Location", fmt.Sprintf("/api/v1/view/reviews/%d", v.ReviewID))
	writeBody(w, r, http.StatusCreated, v)
}

func (h *Handlers) updateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "reviewId")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "reviewId must be a positive number")
		return
	}
	uid, ok := callerID(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", UserHeader+" header is required")
		return
	}
	in, photo, done, err := h.readReviewForm(w, r)
	defer done()
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.C.UpdateReview(r.Context(), id, uid, in, photo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Int64("review_id", id).Int64("user_id", uid).Msg("review updated")
	writeBody(w, r, http.StatusOK, v)
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "reviewId")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "reviewId must be a positive number")
		return
	}
	uid, ok := callerID(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", UserHeader+" header is required")
		return
	}
	if err := h.C.DeleteReview(r.Context(), id, uid); err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Int64("review_id", id).Int64("user_id", uid).Msg("review deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) listArenaReviews(w http.ResponseWriter, r *http.Request) {
	arenaID, ok := pathID(r, "arenaId")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "arenaId must be a positive number")
		return
	}
	qs := r.URL.Query()

	stage, ok := domain.ParseStageType(qs.Get("stageType"))
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid stageType", "stageType must be a stage name or ordinal")
		return
	}
	section, err := strconv.Atoi(qs.Get("section"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid section", "section must be an integer")
		return
	}
	q := domain.ArenaReviewsQuery{ArenaID: arenaID, StageType: stage, Section: section}
	if s := qs.Get("seatId"); s != "" {
		seatID, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid seatId", "seatId must be a number")
			return
		}
		q.SeatID = &seatID
	}
	if q.Limit, ok = limitParam(r); !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
		return
	}

	out, err := h.Q.ListArenaReviews(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, out)
}

func (h *Handlers) listMyReviews(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", UserHeader+" header is required")
		return
	}
	limit, ok := limitParam(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
		return
	}
	out, err := h.Q.ListUserReviews(r.Context(), uid, domain.PageQuery{Limit: limit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, out)
}
