// Package viewapi is a Go client for the seat-view review API.
package viewapi

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"seatview/internal/adapters/observability"
	"seatview/internal/domain"
)

const userHeader = "X-User-ID"

// ProblemMissingRelation is the problem type the API answers for a review
// whose seat, concert or author row is gone.
const ProblemMissingRelation = "urn:seatview:missing-relation"

var (
	ErrNotFound     = fmt.Errorf("viewapi: %w", domain.ErrNotFound)
	ErrUnauthorized = errors.New("viewapi: unauthorized")
	ErrForbidden    = fmt.Errorf("viewapi: %w", domain.ErrForbidden)
	ErrCircuitOpen  = gobreaker.ErrOpenState
)

// APIError is a non-success answer decoded from a problem+json body.
type APIError struct {
	Status int
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Is reports a missing-relation problem as domain.ErrMissingRelation and a
// 400 as domain.ErrInvalidInput.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrMissingRelation:
		return e.Type == ProblemMissingRelation
	case domain.ErrInvalidInput:
		return e.Status == http.StatusBadRequest
	}
	return false
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("viewapi: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("viewapi: %d %s", e.Status, e.Title)
}

type Options struct {
	RPS     int
	Timeout time.Duration // per call, including retries
}

type Client struct {
	base    string
	hc      *http.Client
	rl      *rate.Limiter
	cb      *gobreaker.CircuitBreaker[struct{}]
	timeout time.Duration
}

func New(base string, opts Options) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	const name = "viewapi"
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= 5 && float64(c.TotalFailures)/float64(c.Requests) >= 0.5
		},
		// Client-side answers (4xx) and broken data rows mean the server is healthy.
		IsSuccessful: func(err error) bool {
			var ae *APIError
			return err == nil ||
				errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnauthorized) ||
				errors.Is(err, domain.ErrMissingRelation) ||
				(errors.As(err, &ae) && ae.Status < 500)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			observability.ObserveBreaker(name, breakerGauge(to))
		},
	})
	observability.ObserveBreaker(name, 0)

	return &Client{
		base:    strings.TrimRight(base, "/"),
		hc:      &http.Client{Timeout: 20 * time.Second},
		rl:      rate.NewLimiter(rate.Limit(opts.RPS), opts.RPS),
		cb:      cb,
		timeout: opts.Timeout,
	}, nil
}

// ---- Public API ----

func (c *Client) GetReview(ctx context.Context, id int64) (domain.ReviewDetailView, error) {
	var out domain.ReviewDetailView
	err := c.call(ctx, http.MethodGet, "review", fmt.Sprintf("/api/v1/view/reviews/%d", id), 0, nil, &out)
	return out, err
}

// ListArenaReviews sends stageType by name; seatID is optional.
func (c *Client) ListArenaReviews(ctx context.Context, arenaID int64, stage domain.StageType, section int, seatID *int64) (domain.ReviewsPage, error) {
	q := url.Values{}
	q.Set("stageType", string(stage))
	q.Set("section", strconv.Itoa(section))
	if seatID != nil {
		q.Set("seatId", strconv.FormatInt(*seatID, 10))
	}
	var out domain.ReviewsPage
	err := c.call(ctx, http.MethodGet, "arena_reviews", fmt.Sprintf("/api/v1/view/arenas/%d/reviews?%s", arenaID, q.Encode()), 0, nil, &out)
	return out, err
}

func (c *Client) ListMyReviews(ctx context.Context, userID int64) (domain.ReviewsPage, error) {
	var out domain.ReviewsPage
	err := c.call(ctx, http.MethodGet, "my_reviews", "/api/v1/mypage/reviews", userID, nil, &out)
	return out, err
}

func (c *Client) DeleteReview(ctx context.Context, id, userID int64) error {
	return c.call(ctx, http.MethodDelete, "delete_review", fmt.Sprintf("/api/v1/view/reviews/%d", id), userID, nil, nil)
}

// CreateReview writes a review as userID. Both the data and the photo are
// required.
func (c *Client) CreateReview(ctx context.Context, userID int64, in domain.ReviewInput, photoName string, photo io.Reader) (domain.ReviewDetailView, error) {
	var out domain.ReviewDetailView
	p, err := reviewPayload(in, photoName, photo)
	if err != nil {
		return out, err
	}
	err = c.call(ctx, http.MethodPost, "create_review", "/api/v1/view/reviews", userID, p, &out)
	return out, err
}

// UpdateReview replaces the data and photo of review id.
func (c *Client) UpdateReview(ctx context.Context, id, userID int64, in domain.ReviewInput, photoName string, photo io.Reader) (domain.ReviewDetailView, error) {
	var out domain.ReviewDetailView
	p, err := reviewPayload(in, photoName, photo)
	if err != nil {
		return out, err
	}
	err = c.call(ctx, http.MethodPut, "update_review", fmt.Sprintf("/api/v1/view/reviews/%d", id), userID, p, &out)
	return out, err
}

// ---- Internals ----

type payload struct {
	data        []byte
	contentType string
}

// reviewPayload encodes a review write the way the web client does: the
// JSON reviewRequestDTO part plus the photo in the file part.
func reviewPayload(in domain.ReviewInput, photoName string, photo io.Reader) (*payload, error) {
	if photo == nil {
		return nil, errors.New("viewapi: photo is required")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="reviewRequestDTO"; filename="blob"`)
	h.Set("Content-Type", "application/json")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(pw).Encode(in); err != nil {
		return nil, fmt.Errorf("encode review: %w", err)
	}

	fw, err := mw.CreateFormFile("file", photoName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, photo); err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return &payload{data: buf.Bytes(), contentType: mw.FormDataContentType()}, nil
}

func (c *Client) call(ctx context.Context, method, endpoint, path string, userID int64, body *payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.cb.Execute(func() (struct{}, error) {
		return struct{}{}, c.do(ctx, method, endpoint, c.base+path, userID, body, out)
	})
	return err
}

// do performs one logical request with client-side rate limiting and decodes
// JSON into out. GETs are retried on 429 and transient 5xx, honoring
// Retry-After when provided; other methods are sent once. A missing-relation
// problem is permanent and never retried.
func (c *Client) do(ctx context.Context, method, endpoint, target string, userID int64, body *payload, out any) error {
	// client-side rate limiting
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = 4
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		last := i == attempts-1
		// build a fresh request each attempt
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body.data)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rdr)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", body.contentType)
		}
		if userID > 0 {
			req.Header.Set(userHeader, strconv.FormatInt(userID, 10))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "seatview-client/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("viewapi", endpoint, 0, time.Since(start))
			// network error or context canceled
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			// context-aware sleep before retry
			if !last && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("viewapi", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated:
			var err error
			if out != nil {
				err = json.NewDecoder(resp.Body).Decode(out)
			}
			resp.Body.Close()
			return err

		case http.StatusNoContent:
			// success, empty body
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			lastErr = decodeProblem(resp)
			if errors.Is(lastErr, domain.ErrMissingRelation) {
				return lastErr
			}
			if wait == 0 {
				wait = backoff(i)
			}
			if !last && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			return decodeProblem(resp)
		}
	}

	return lastErr
}

// decodeProblem reads a small problem+json body and closes it.
func decodeProblem(resp *http.Response) error {
	defer resp.Body.Close()
	ae := &APIError{Status: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(b, ae); err != nil || ae.Title == "" {
		ae.Title = http.StatusText(resp.StatusCode)
		ae.Detail = strings.TrimSpace(string(b))
	}
	ae.Status = resp.StatusCode
	return ae
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	// seconds form
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	// HTTP-date form
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with up to +50% jitter.
// i = retry attempt (0,1,2,...): 200ms, 400ms, 800ms...
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
