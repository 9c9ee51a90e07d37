package repository

import (
	"context"
	"errors"
	"strconv"

	appErrors "github.com/classbot/nz-schedule-bot/pkg/errors"
)

const scheduleRequestsKey = "schedule-requests"

// counterStore is the cache slice the request counter needs.
type counterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	GetString(ctx context.Context, key string) (string, error)
}

// RequestCounter tracks how many times a schedule has been requested, for
// the public statistics.
type RequestCounter struct {
	cache counterStore
}

// NewRequestCounter constructs the counter around the shared cache.
func NewRequestCounter(cache counterStore) *RequestCounter {
	return &RequestCounter{cache: cache}
}

// Increment bumps the lifetime request counter.
func (c *RequestCounter) Increment(ctx context.Context) error {
	_, err := c.cache.Incr(ctx, scheduleRequestsKey)
	return err
}

// Count returns the lifetime request total, zero when never incremented.
func (c *RequestCounter) Count(ctx context.Context) (int, error) {
	raw, err := c.cache.GetString(ctx, scheduleRequestsKey)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.Atoi(raw)
}
