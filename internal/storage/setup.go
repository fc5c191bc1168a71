package storage

import (
	"context"
	"errors"
	"fmt"
)

// Config selects the backends a Mux serves. Nil backends are not
// registered, except mem:// which is always available.
type Config struct {
	S3    *S3Config
	Azure *AzureConfig
	GCS   *GCSConfig
	Files bool
}

// New builds a Mux for cfg. The returned close function releases clients
// that hold connections.
func New(ctx context.Context, cfg Config) (*Mux, func() error, error) {
	m := NewMux()
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	m.Handle(SchemeMemory, NewMemoryStore())

	if cfg.S3 != nil {
		m.Handle(SchemeS3, NewS3Store(*cfg.S3))
	}
	if cfg.Azure != nil {
		az, err := NewAzureStore(*cfg.Azure)
		if err != nil {
			return nil, nil, fmt.Errorf("azure store: %w", err)
		}
		m.Handle(SchemeAzure, az)
	}
	if cfg.GCS != nil {
		gcs, err := NewGCSStore(ctx, *cfg.GCS)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs store: %w", err)
		}
		m.Handle(SchemeGCS, gcs)
		closers = append(closers, gcs.Close)
	}
	if cfg.Files {
		m.Handle(SchemeFile, FileStore{})
	}
	return m, closeAll, nil
}
