package repository

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/classbot/nz-schedule-bot/pkg/errors"
)

type memoryCounterStore struct {
	values map[string]int64
}

func (s *memoryCounterStore) Incr(_ context.Context, key string) (int64, error) {
	if s.values == nil {
		s.values = make(map[string]int64)
	}
	s.values[key]++
	return s.values[key], nil
}

func (s *memoryCounterStore) GetString(_ context.Context, key string) (string, error) {
	n, ok := s.values[key]
	if !ok {
		return "", appErrors.ErrCacheMiss
	}
	return strconv.FormatInt(n, 10), nil
}

func TestRequestCounter(t *testing.T) {
	ctx := context.Background()
	counter := NewRequestCounter(&memoryCounterStore{})

	count, err := counter.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "never incremented reads as zero")

	for i := 0; i < 3; i++ {
		require.NoError(t, counter.Increment(ctx))
	}

	count, err = counter.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
