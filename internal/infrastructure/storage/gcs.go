// Package storage implements object storage for avatars on GCS or S3.
package storage

import (
	"context"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
)

// GCSStore keeps objects in a private bucket and hands out V4 signed URLs.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSClient creates a Cloud Storage client. An empty credsPath uses
// Application Default Credentials. A non-empty endpoint targets an emulator
// such as fake-gcs-server and disables authentication.
func NewGCSClient(ctx context.Context, credsPath, endpoint string) (*storage.Client, error) {
	var opts []option.ClientOption
	switch {
	case endpoint != "":
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	case credsPath != "":
		opts = append(opts, option.WithCredentialsFile(credsPath))
	}
	return storage.NewClient(ctx, opts...)
}

func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket}
}

func (s *GCSStore) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0 // avatars are small, send in one request
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return "", errs.Unavailable("storage.gcs.upload", err)
	}
	if err := wc.Close(); err != nil {
		return "", errs.Unavailable("storage.gcs.upload", err)
	}
	return key, nil
}

func (s *GCSStore) Sign(_ context.Context, key string, ttl time.Duration) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", errs.Unavailable("storage.gcs.sign", err)
	}
	return url, nil
}

var _ port.ObjectStorage = (*GCSStore)(nil)
