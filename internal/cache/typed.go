// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Typed stores JSON-encoded values of one type in a Cache.
type Typed[T any] struct {
	cache Cache
	ttl   time.Duration
}

// NewTyped wraps c.
func NewTyped[T any](c Cache, ttl time.Duration) *Typed[T] {
	return &Typed[T]{cache: c, ttl: ttl}
}

// Get decodes the value under key. Misses and decode failures both
// report false.
func (t *Typed[T]) Get(ctx context.Context, key string) (T, bool) {
	var v T
	data, err := t.cache.Get(ctx, key)
	if err != nil {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false
	}
	return v, true
}

// Set encodes and stores v.
func (t *Typed[T]) Set(ctx context.Context, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.cache.Set(ctx, key, data, t.ttl)
}

// Delete removes key.
func (t *Typed[T]) Delete(ctx context.Context, key string) error {
	return t.cache.Delete(ctx, key)
}

// GetOrLoad returns the cached value or calls load and stores its result.
// A failed store does not fail the call.
func (t *Typed[T]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := t.Get(ctx, key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = t.Set(ctx, key, v)
	return v, nil
}
