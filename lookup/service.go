// SPDX-License-Identifier: GPL-3.0-only

package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whoistel/commons"
	"whoistel/metrics"
	"whoistel/phone"
)

// ErrStoreUnavailable wraps every failure of the backing tables. It is
// the only error Lookup returns.
var ErrStoreUnavailable = errors.New("lookup tables unavailable")

// Cache stores results of canonical numbers. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Set(ctx context.Context, key string, r Result) error
}

// Versioned is implemented by tables that can change underneath the
// service, so cached results of an older snapshot are not reused.
type Versioned interface {
	Version() string
}

// Pinner is implemented by tables that can be swapped while a lookup is
// running. Pin returns tables that keep answering from one version until
// release is called.
type Pinner interface {
	Pin() (tables Tables, release func(), err error)
}

type Service struct {
	tables Tables
	cache  Cache
}

type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func NewService(tables Tables, opts ...Option) *Service {
	s := &Service{tables: tables}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup canonicalizes raw and resolves it. Rejected input and unknown
// numbers are encoded in the Result.
func (s *Service) Lookup(ctx context.Context, raw string) (Result, error) {
	n, err := phone.Canonicalize(raw)
	if err != nil {
		var rejection *phone.Rejection
		if errors.As(err, &rejection) {
			metrics.LookupsTotal.WithLabelValues("invalid").Inc()
			return Rejected(raw, rejection), nil
		}
		return Result{}, err
	}
	return s.Resolve(ctx, n)
}

// Resolve looks up an already canonical number.
func (s *Service) Resolve(ctx context.Context, n phone.Number) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.LookupDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	key, cacheable := cacheKey(s.tables, n)
	if s.cache != nil && cacheable {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.CacheErrorsTotal.Inc()
			commons.Logger.Warnf("lookup cache read failed for %s: %v", n, err)
		case ok:
			metrics.CacheHitsTotal.Inc()
			metrics.LookupsTotal.WithLabelValues(outcome(cached)).Inc()
			return cached, nil
		default:
			metrics.CacheMissesTotal.Inc()
		}
	}

	result, used, err := s.resolve(ctx, n)
	if err != nil {
		metrics.LookupsTotal.WithLabelValues("error").Inc()
		return Result{}, err
	}
	metrics.LookupsTotal.WithLabelValues(outcome(result)).Inc()

	// scoped by the version that answered
	key, cacheable = cacheKey(used, n)
	if s.cache != nil && cacheable {
		if err := s.cache.Set(ctx, key, result); err != nil {
			metrics.CacheErrorsTotal.Inc()
			commons.Logger.Warnf("lookup cache write failed for %s: %v", n, err)
		}
	}
	return result, nil
}

// resolve runs every query of one lookup against the same tables and
// returns them.
func (s *Service) resolve(ctx context.Context, n phone.Number) (Result, Tables, error) {
	tables := s.tables
	if p, ok := tables.(Pinner); ok {
		pinned, release, err := p.Pin()
		if err != nil {
			return Result{}, nil, storeError(err)
		}
		defer release()
		tables = pinned
	}

	m, ok, err := Resolve(ctx, tables, n)
	if err != nil {
		return Result{}, nil, storeError(err)
	}
	if !ok {
		return NotFound(n), tables, nil
	}
	result, err := Enrich(ctx, tables, n, m)
	if err != nil {
		return Result{}, nil, storeError(err)
	}
	return result, tables, nil
}

// cacheKey scopes n by the table version. Versioned tables that are not
// loaded yet are not cacheable.
func cacheKey(tables Tables, n phone.Number) (string, bool) {
	if v, ok := tables.(Versioned); ok {
		version := v.Version()
		return version + ":" + string(n), version != ""
	}
	return string(n), true
}

func storeError(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func outcome(r Result) string {
	if r.Found {
		return "found"
	}
	return "not_found"
}
