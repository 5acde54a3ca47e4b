// Package photos stores review photos in a Google Cloud Storage bucket.
package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"seatview/internal/adapters/observability"
	"seatview/internal/domain"
)

const defaultPublicBase = "https://storage.googleapis.com"

// GCSStore writes one object per photo under reviews/{userID}/{yyyymmdd}/.
// Objects are readable through the bucket's public URL or a CDN in front of it.
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
	now     func() time.Time
}

// NewGCSStore returns a store for bucket. publicBase is the URL objects are
// served from, e.g. a CDN origin; empty means storage.googleapis.com.
func NewGCSStore(client *storage.Client, bucket, publicBase string) (*GCSStore, error) {
	bucket = strings.TrimSpace(bucket)
	if client == nil {
		return nil, errors.New("photos: storage client is nil")
	}
	if bucket == "" {
		return nil, errors.New("photos: bucket is empty")
	}
	return &GCSStore{
		client:  client,
		bucket:  bucket,
		baseURL: publicURLBase(publicBase, bucket),
		now:     time.Now,
	}, nil
}

func (s *GCSStore) Put(ctx context.Context, userID int64, p domain.Photo) (string, error) {
	name := objectName(userID, p, s.now(), uuid.NewString())

	// Canceling before Close discards a partial upload.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = p.ContentType
	w.CacheControl = "public, max-age=31536000, immutable"
	if _, err := io.Copy(w, p.Body); err != nil {
		cancel()
		_ = w.Close()
		observability.ObserveExternal("gcs", "put", 0, time.Since(start))
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		observability.ObserveExternal("gcs", "put", 0, time.Since(start))
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	observability.ObserveExternal("gcs", "put", 200, time.Since(start))
	return s.baseURL + "/" + name, nil
}

func (s *GCSStore) Delete(ctx context.Context, url string) error {
	name, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || name == "" {
		return nil
	}
	start := time.Now()
	err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		err = nil
	}
	status := 204
	if err != nil {
		status = 0
	}
	observability.ObserveExternal("gcs", "delete", status, time.Since(start))
	return err
}

// publicURLBase is the prefix every stored object's URL starts with.
func publicURLBase(publicBase, bucket string) string {
	base := strings.TrimRight(strings.TrimSpace(publicBase), "/")
	if base == "" {
		base = defaultPublicBase
	}
	return base + "/" + bucket
}

// objectName never reuses the client's file name, only its extension.
func objectName(userID int64, p domain.Photo, at time.Time, id string) string {
	ext := strings.ToLower(path.Ext(p.Name))
	if m := mimetype.Lookup(p.ContentType); m != nil && m.Extension() != "" {
		ext = m.Extension()
	}
	return fmt.Sprintf("reviews/%d/%s/%s%s", userID, at.UTC().Format("20060102"), id, ext)
}
