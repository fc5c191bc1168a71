// Package storage fetches and puts whole objects in S3, Azure Blob Storage,
// Google Cloud Storage, the local filesystem or memory.
//
// Every backend maps its own failures onto ErrNotFound, ErrAccessDenied and
// ErrConnection so callers can branch with errors.Is regardless of the
// provider.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Error kinds shared by all stores.
var (
	ErrNotFound          = errors.New("object not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrConnection        = errors.New("storage connection failed")
	ErrTooLarge          = errors.New("object too large")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// Location schemes.
const (
	SchemeS3     = "s3"
	SchemeAzure  = "az"
	SchemeGCS    = "gs"
	SchemeMemory = "mem"
	SchemeFile   = "file"
)

// Store reads and writes whole objects.
type Store interface {
	// Open returns a reader over the object's bytes. The caller closes it.
	Open(ctx context.Context, loc Location) (io.ReadCloser, error)

	// Put replaces the object with data.
	Put(ctx context.Context, loc Location, data []byte, contentType string) error
}

// Fetch reads the whole object at loc. A positive limit caps the object size;
// larger objects fail with ErrTooLarge.
func Fetch(ctx context.Context, s Store, loc Location, limit int64) ([]byte, error) {
	rc, err := s.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", loc, ErrConnection, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (limit %d bytes)", ErrTooLarge, limit)
	}
	return data, nil
}

// Mux dispatches to a Store by location scheme.
type Mux struct {
	mu     sync.RWMutex
	stores map[string]Store
}

var _ Store = (*Mux)(nil)

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{stores: make(map[string]Store)}
}

// Handle registers s for scheme, replacing any previous store.
func (m *Mux) Handle(scheme string, s Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[scheme] = s
}

// Schemes returns the registered schemes, sorted.
func (m *Mux) Schemes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.stores))
	for s := range m.stores {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (m *Mux) store(scheme string) (Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stores[scheme]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedScheme, scheme)
	}
	return s, nil
}

func (m *Mux) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	s, err := m.store(loc.Scheme)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, loc)
}

func (m *Mux) Put(ctx context.Context, loc Location, data []byte, contentType string) error {
	s, err := m.store(loc.Scheme)
	if err != nil {
		return err
	}
	return s.Put(ctx, loc, data, contentType)
}
