package cache_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/platform/cache"
	"github.com/phrazzld/studyguide-api/internal/platform/filestore"
	"github.com/phrazzld/studyguide-api/internal/store"
	"github.com/phrazzld/studyguide-api/internal/store/storetest"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records how often reads reach the wrapped store. afterGet,
// when set, runs once the wrapped read has returned.
type countingStore struct {
	store.GuideStore
	gets     atomic.Int64
	afterGet func()
}

func (c *countingStore) Get(ctx context.Context, id string) (*domain.Guide, error) {
	c.gets.Add(1)
	guide, err := c.GuideStore.Get(ctx, id)
	if hook := c.afterGet; hook != nil {
		c.afterGet = nil
		hook()
	}
	return guide, err
}

type harness struct {
	redis   *miniredis.Miniredis
	backing *countingStore
	store   *cache.GuideStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	files, err := filestore.NewGuideStore(afero.NewMemMapFs(), "/guides", logger)
	require.NoError(t, err)
	backing := &countingStore{GuideStore: files}

	return &harness{
		redis:   mr,
		backing: backing,
		store:   cache.NewGuideStore(backing, client, time.Minute, logger),
	}
}

func TestGuideStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.GuideStore {
		return newHarness(t).store
	})
}

func TestGuideStoreServesReadsFromCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	guide := storetest.NewGuide("alice", 100)
	require.NoError(t, h.store.Put(ctx, guide))

	for i := 0; i < 3; i++ {
		got, err := h.store.Get(ctx, guide.ID)
		require.NoError(t, err)
		assert.Equal(t, guide, got)
	}

	assert.Zero(t, h.backing.gets.Load())
	assert.True(t, h.redis.Exists("studyguide:guide:"+guide.ID))
}

func TestGuideStoreExpiresEntries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	guide := storetest.NewGuide("alice", 100)
	require.NoError(t, h.store.Put(ctx, guide))

	h.redis.FastForward(2 * time.Minute)
	_, err := h.store.Get(ctx, guide.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(1), h.backing.gets.Load())
}

func TestGuideStoreInvalidatesOnWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	guide := storetest.NewGuide("alice", 100)
	require.NoError(t, h.store.Put(ctx, guide))

	_, err := h.store.Update(ctx, guide.ID, func(g *domain.Guide) error {
		return g.SetTaskCompleted(1, true)
	})
	require.NoError(t, err)
	assert.False(t, h.redis.Exists("studyguide:guide:"+guide.ID))

	got, err := h.store.Get(ctx, guide.ID)
	require.NoError(t, err)
	assert.True(t, got.StudySchedule[1].Completed)

	require.NoError(t, h.store.Delete(ctx, guide.ID))
	_, err = h.store.Get(ctx, guide.ID)
	assert.ErrorIs(t, err, store.ErrGuideNotFound)
}

func TestGuideStoreSkipsFillWhenWriteRacesRead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	guide := storetest.NewGuide("alice", 100)
	// Seed behind the cache so the first read misses.
	require.NoError(t, h.backing.Put(ctx, guide))

	h.backing.afterGet = func() {
		_, err := h.store.Update(ctx, guide.ID, func(g *domain.Guide) error {
			return g.SetTaskCompleted(1, true)
		})
		require.NoError(t, err)
	}

	stale, err := h.store.Get(ctx, guide.ID)
	require.NoError(t, err)
	assert.False(t, stale.StudySchedule[1].Completed)
	assert.False(t, h.redis.Exists("studyguide:guide:"+guide.ID), "pre-update copy must not be cached")

	fresh, err := h.store.Get(ctx, guide.ID)
	require.NoError(t, err)
	assert.True(t, fresh.StudySchedule[1].Completed)
	assert.True(t, h.redis.Exists("studyguide:guide:"+guide.ID))

	cached, err := h.store.Get(ctx, guide.ID)
	require.NoError(t, err)
	assert.True(t, cached.StudySchedule[1].Completed)
	assert.Equal(t, int64(2), h.backing.gets.Load())
}

func TestGuideStoreWritesBumpVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	guide := storetest.NewGuide("alice", 100)
	require.NoError(t, h.store.Put(ctx, guide))

	_, err := h.store.Update(ctx, guide.ID, func(g *domain.Guide) error { return nil })
	require.NoError(t, err)
	require.NoError(t, h.store.Delete(ctx, guide.ID))

	// Update invalidates before and after the write, Delete once after.
	version, err := h.redis.Get("studyguide:guide-version:" + guide.ID)
	require.NoError(t, err)
	assert.Equal(t, "3", version)
	assert.Positive(t, h.redis.TTL("studyguide:guide-version:"+guide.ID))
}

func TestGuideStoreDiscardsCorruptEntries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	guide := storetest.NewGuide("alice", 100)
	require.NoError(t, h.store.Put(ctx, guide))
	require.NoError(t, h.redis.Set("studyguide:guide:"+guide.ID, "{broken"))

	got, err := h.store.Get(ctx, guide.ID)

	require.NoError(t, err)
	assert.Equal(t, guide.ID, got.ID)
	assert.Equal(t, int64(1), h.backing.gets.Load())
}

func TestGuideStoreFallsBackWhenRedisIsDown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	files, err := filestore.NewGuideStore(afero.NewMemMapFs(), "/guides", logger)
	require.NoError(t, err)

	// Nothing listens on port 1.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	s := cache.NewGuideStore(files, client, time.Minute, logger)

	ctx := context.Background()
	guide := storetest.NewGuide("alice", 100)
	require.NoError(t, s.Put(ctx, guide))

	got, err := s.Get(ctx, guide.ID)
	require.NoError(t, err)
	assert.Equal(t, guide.ID, got.ID)
	assert.NoError(t, s.Delete(ctx, guide.ID))
}
