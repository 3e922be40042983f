package repository

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"drunc.client/internal/adapters/repository/file"
	"drunc.client/internal/adapters/repository/pg"
	"drunc.client/internal/core/domain"
	"drunc.client/internal/core/ports"
)

func isPostgres(reference string) bool {
	return strings.HasPrefix(reference, "postgres://") || strings.HasPrefix(reference, "postgresql://")
}

// Open returns the resolver able to read reference.
func Open(reference string) (ports.SegmentResolver, error) {
	if isPostgres(reference) {
		repo, err := pg.NewRepository(reference)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
	return file.NewResolver(), nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Resolver opens one backend per reference and keeps it until Close.
type Resolver struct {
	mu       sync.Mutex
	backends map[string]ports.SegmentResolver
	open     func(reference string) (ports.SegmentResolver, error)
}

func NewResolver() *Resolver {
	return &Resolver{
		backends: make(map[string]ports.SegmentResolver),
		open:     Open,
	}
}

func (r *Resolver) Resolve(ctx context.Context, reference, session string) (*domain.SessionTree, error) {
	backend, err := r.backend(reference)
	if err != nil {
		return nil, err
	}
	return backend.Resolve(ctx, reference, session)
}

func (r *Resolver) backend(reference string) (ports.SegmentResolver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.backends[reference]; ok {
		return b, nil
	}
	b, err := r.open(reference)
	if err != nil {
		return nil, err
	}
	r.backends[reference] = b
	return b, nil
}

// Ping checks every opened database. Backends without a connection are skipped.
func (r *Resolver) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, b := range r.backends {
		if p, ok := b.(pinger); ok {
			errs = append(errs, p.Ping(ctx))
		}
	}
	return errors.Join(errs...)
}

func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for ref, b := range r.backends {
		if c, ok := b.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		delete(r.backends, ref)
	}
	return errors.Join(errs...)
}
