// Package cache provides a Redis read-through cache in front of any
// store.GuideStore.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/platform/logger"
	"github.com/phrazzld/studyguide-api/internal/redact"
	"github.com/phrazzld/studyguide-api/internal/store"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL bounds how long a cached guide may be served.
	DefaultTTL = 5 * time.Minute
	keyPrefix  = "studyguide:guide:"

	// versionPrefix names the per-guide write counter. It must outlive any
	// read that started before the write it records.
	versionPrefix = "studyguide:guide-version:"
	versionTTL    = time.Hour
)

var errStaleRead = errors.New("guide changed while it was being read")

// GuideStore caches single-guide reads in Redis and invalidates on every
// write. Listings are always served by the wrapped store. Redis failures
// are logged and fall through to the wrapped store.
//
// Every write bumps a per-guide version. A read that misses the cache only
// fills it if the version is unchanged since before it loaded the guide, so
// a copy loaded before a concurrent write is never cached.
type GuideStore struct {
	next   store.GuideStore
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

var _ store.GuideStore = (*GuideStore)(nil)

// NewClient parses a redis:// URL and verifies the server answers.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewGuideStore wraps next. A non-positive ttl uses DefaultTTL.
func NewGuideStore(next store.GuideStore, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *GuideStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GuideStore{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "guide_cache"),
	}
}

func (s *GuideStore) Put(ctx context.Context, guide *domain.Guide) error {
	if err := s.next.Put(ctx, guide); err != nil {
		return err
	}
	s.set(ctx, guide)
	return nil
}

func (s *GuideStore) Get(ctx context.Context, id string) (*domain.Guide, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		var guide domain.Guide
		if jerr := json.Unmarshal(data, &guide); jerr == nil {
			return &guide, nil
		}
		s.invalidate(ctx, id)
	case errors.Is(err, redis.Nil):
	default:
		s.log(ctx).Warn("guide cache read failed", "guide_id", id, "error", redact.Error(err))
	}

	version, ok := s.version(ctx, id)
	guide, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		s.setIfUnchanged(ctx, guide, version)
	}
	return guide, nil
}

func (s *GuideStore) ListByOwner(ctx context.Context, owner string) ([]*domain.Guide, error) {
	return s.next.ListByOwner(ctx, owner)
}

func (s *GuideStore) Update(ctx context.Context, id string, fn store.UpdateFn) (*domain.Guide, error) {
	// Drop the entry first so a failed write never leaves a stale copy.
	s.invalidate(ctx, id)
	guide, err := s.next.Update(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return guide, nil
}

func (s *GuideStore) Delete(ctx context.Context, id string) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *GuideStore) set(ctx context.Context, guide *domain.Guide) {
	data, err := json.Marshal(guide)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, key(guide.ID), data, s.ttl).Err(); err != nil {
		s.log(ctx).Warn("guide cache write failed", "guide_id", guide.ID, "error", redact.Error(err))
	}
}

// setIfUnchanged caches guide only while its version still equals the one
// read before the guide was loaded.
func (s *GuideStore) setIfUnchanged(ctx context.Context, guide *domain.Guide, version string) {
	data, err := json.Marshal(guide)
	if err != nil {
		return
	}
	vkey := versionKey(guide.ID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleRead
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(guide.ID), data, s.ttl)
			return nil
		})
		return err
	}, vkey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
		s.log(ctx).Debug("skipping cache fill for a guide written during the read", "guide_id", guide.ID)
	default:
		s.log(ctx).Warn("guide cache write failed", "guide_id", guide.ID, "error", redact.Error(err))
	}
}

// version returns the guide's write counter, "" when it has none. ok is
// false when Redis could not be read.
func (s *GuideStore) version(ctx context.Context, id string) (string, bool) {
	v, err := s.client.Get(ctx, versionKey(id)).Result()
	switch {
	case err == nil:
		return v, true
	case errors.Is(err, redis.Nil):
		return "", true
	default:
		s.log(ctx).Warn("guide cache version read failed", "guide_id", id, "error", redact.Error(err))
		return "", false
	}
}

// invalidate bumps the guide's version and drops its cached copy.
func (s *GuideStore) invalidate(ctx context.Context, id string) {
	vkey := versionKey(id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, vkey)
		pipe.Expire(ctx, vkey, versionTTL)
		pipe.Del(ctx, key(id))
		return nil
	})
	if err != nil {
		s.log(ctx).Warn("guide cache invalidation failed", "guide_id", id, "error", redact.Error(err))
	}
}

func (s *GuideStore) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

func key(id string) string {
	return keyPrefix + id
}

func versionKey(id string) string {
	return versionPrefix + id
}
