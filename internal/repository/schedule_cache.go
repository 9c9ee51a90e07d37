package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classbot/nz-schedule-bot/internal/models"
	appErrors "github.com/classbot/nz-schedule-bot/pkg/errors"
)

// KeyValueStore is the slice of cache behaviour the schedule cache needs.
// Implemented by CacheRepository; tests substitute an in-memory map.
type KeyValueStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// ScheduleCache stores per-class per-date lesson lists, the per-class
// updated-at stamp and per-account portal access tokens. The key layout is
// shared with earlier deployments of the bot and must not change:
//
//	{class}:schedule:{YYYY-MM-DD}
//	{class}:updated-at
//	{class}:access-token:{account}
type ScheduleCache struct {
	kv KeyValueStore
}

// NewScheduleCache constructs the cache around a key-value store.
func NewScheduleCache(kv KeyValueStore) *ScheduleCache {
	return &ScheduleCache{kv: kv}
}

// Lessons returns the cached lessons for a class and date. A cache miss is
// an empty list, never an error.
func (c *ScheduleCache) Lessons(ctx context.Context, class models.Class, date string) ([]models.ScheduleLesson, error) {
	var lessons []models.ScheduleLesson
	if err := c.kv.Get(ctx, scheduleKey(class, date), &lessons); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return []models.ScheduleLesson{}, nil
		}
		return nil, err
	}
	return lessons, nil
}

// PutSchedule overwrites every date of the schedule with the given TTL and
// unconditionally stamps the class's updated-at with the current instant.
func (c *ScheduleCache) PutSchedule(ctx context.Context, class models.Class, schedule models.Schedule, ttl time.Duration) error {
	for _, date := range schedule.Dates {
		if err := c.kv.Set(ctx, scheduleKey(class, date.Date), date.Lessons, ttl); err != nil {
			return fmt.Errorf("cache schedule %s %s: %w", class, date.Date, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := c.kv.SetString(ctx, updatedAtKey(class), now, 0); err != nil {
		return fmt.Errorf("stamp updated-at %s: %w", class, err)
	}
	return nil
}

// UpdatedAt returns the class's last successful write instant, or nil when
// never written.
func (c *ScheduleCache) UpdatedAt(ctx context.Context, class models.Class) (*time.Time, error) {
	raw, err := c.kv.GetString(ctx, updatedAtKey(class))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("parse updated-at for %s: %w", class, err)
	}
	return &ts, nil
}

// AccessToken returns the cached portal token for a class account, or an
// empty string on a miss.
func (c *ScheduleCache) AccessToken(ctx context.Context, class models.Class, account models.Account) (string, error) {
	token, err := c.kv.GetString(ctx, tokenKey(class, account))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

// SetAccessToken caches a portal token. A zero TTL keeps the token until it
// is explicitly invalidated.
func (c *ScheduleCache) SetAccessToken(ctx context.Context, class models.Class, account models.Account, token string, ttl time.Duration) error {
	return c.kv.SetString(ctx, tokenKey(class, account), token, ttl)
}

// DeleteAccessTokens drops both cached tokens of a class, forcing a fresh
// login on next use.
func (c *ScheduleCache) DeleteAccessTokens(ctx context.Context, class models.Class) error {
	return c.kv.Del(ctx,
		tokenKey(class, models.AccountBoy),
		tokenKey(class, models.AccountGirl),
	)
}

func scheduleKey(class models.Class, date string) string {
	return fmt.Sprintf("%s:schedule:%s", class, date)
}

func updatedAtKey(class models.Class) string {
	return fmt.Sprintf("%s:updated-at", class)
}

func tokenKey(class models.Class, account models.Account) string {
	return fmt.Sprintf("%s:access-token:%s", class, account)
}
