package cache

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*FeedCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewFeedCache(rdb, time.Minute), mr
}

func TestPageRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, hit, err := c.GetPage(ctx, 1)
	require.NoError(t, err)
	assert.False(t, hit)

	reports := []models.Report{
		{ID: uuid.New(), Title: "a", Score: 5, Images: []string{"https://img/1.png"}},
		{ID: uuid.New(), Title: "b", Score: 3},
	}
	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetPage(ctx, gen, 1, reports))

	got, hit, err := c.GetPage(ctx, 1)
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, got, 2)
	assert.Equal(t, reports[0].ID, got[0].ID)
	assert.Equal(t, 5, got[0].Score)
	assert.Equal(t, []string{"https://img/1.png"}, []string(got[0].Images))
}

func TestInvalidateHidesOlderPages(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetPage(ctx, gen, 1, []models.Report{{ID: uuid.New()}}))

	require.NoError(t, c.Invalidate(ctx))

	_, hit, err := c.GetPage(ctx, 1)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStaleWriteAfterInvalidateIsNotServed(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	// A vote lands between reading the generation and writing the page.
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.SetPage(ctx, gen, 1, []models.Report{{ID: uuid.New()}}))

	_, hit, err := c.GetPage(ctx, 1)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestPagesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetPage(ctx, 0, 2, []models.Report{{ID: uuid.New()}}))
	mr.FastForward(2 * time.Minute)

	_, hit, err := c.GetPage(ctx, 2)
	require.NoError(t, err)
	assert.False(t, hit)
}
