package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSConfig configures a Google Cloud Storage store. With no credentials
// file, application default credentials are used.
type GCSConfig struct {
	CredentialsFile string
	Endpoint        string // optional, for emulators
	Anonymous       bool
}

// GCSStore reads and writes objects in GCS buckets.
type GCSStore struct {
	client *storage.Client
}

var _ Store = (*GCSStore)(nil)

// NewGCSStore creates a GCS client. Close releases it.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.CredentialsFile))
	case cfg.Anonymous:
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

func (s *GCSStore) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	r, err := s.client.Bucket(loc.Container).Object(loc.Key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, classifyGCSError(err))
	}
	return r, nil
}

func (s *GCSStore) Put(ctx context.Context, loc Location, data []byte, contentType string) error {
	w := s.client.Bucket(loc.Container).Object(loc.Key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", loc, classifyGCSError(err))
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("write %s: %w", loc, classifyGCSError(err))
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func classifyGCSError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		case apiErr.Code >= 500:
			return fmt.Errorf("%w: %w", ErrConnection, err)
		}
		return err
	}

	return fmt.Errorf("%w: %w", ErrConnection, err)
}
