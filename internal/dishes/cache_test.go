package dishes_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-labeling/internal/dishes"
	"ms-labeling/internal/models"
)

type countingSource struct {
	dishes map[string]*models.Dish
	calls  int
}

func (s *countingSource) GetByRKCode(_ context.Context, rkCode string) (*models.Dish, error) {
	s.calls++
	if d, ok := s.dishes[rkCode]; ok {
		return d, nil
	}
	return nil, dishes.ErrDishNotFound
}

func setupCache(t *testing.T, source *countingSource) (*dishes.CachedLookup, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return dishes.NewCachedLookup(source, client, time.Minute), mr
}

func TestCachedLookupReadThrough(t *testing.T) {
	source := &countingSource{dishes: map[string]*models.Dish{
		"2005": {RKCode: "2005", Name: "Борщ", WeightG: 350, Calories: 2520},
	}}
	cache, _ := setupCache(t, source)
	ctx := context.Background()

	first, err := cache.GetByRKCode(ctx, "2005")
	require.NoError(t, err)
	assert.Equal(t, "Борщ", first.Name)
	assert.Equal(t, 1, source.calls)

	// Second read is served from redis, not the sqlite source.
	second, err := cache.GetByRKCode(ctx, "2005")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.calls)
}

func TestCachedLookupNegativeCaching(t *testing.T) {
	source := &countingSource{dishes: map[string]*models.Dish{}}
	cache, _ := setupCache(t, source)
	ctx := context.Background()

	_, err := cache.GetByRKCode(ctx, "9999")
	assert.ErrorIs(t, err, dishes.ErrDishNotFound)
	assert.Equal(t, 1, source.calls)

	// The miss itself is cached so the file is not re-read per webhook.
	_, err = cache.GetByRKCode(ctx, "9999")
	assert.ErrorIs(t, err, dishes.ErrDishNotFound)
	assert.Equal(t, 1, source.calls)
}

func TestCachedLookupExpiry(t *testing.T) {
	source := &countingSource{dishes: map[string]*models.Dish{
		"2005": {RKCode: "2005", Name: "Борщ"},
	}}
	cache, mr := setupCache(t, source)
	ctx := context.Background()

	_, err := cache.GetByRKCode(ctx, "2005")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.GetByRKCode(ctx, "2005")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCachedLookupInvalidate(t *testing.T) {
	source := &countingSource{dishes: map[string]*models.Dish{
		"2005": {RKCode: "2005", Name: "Борщ"},
	}}
	cache, _ := setupCache(t, source)
	ctx := context.Background()

	_, err := cache.GetByRKCode(ctx, "2005")
	require.NoError(t, err)

	// Export refresh: drop the entry, next read goes to the source again.
	source.dishes["2005"].Name = "Борщ украинский"
	require.NoError(t, cache.Invalidate(ctx, "2005"))

	updated, err := cache.GetByRKCode(ctx, "2005")
	require.NoError(t, err)
	assert.Equal(t, "Борщ украинский", updated.Name)
	assert.Equal(t, 2, source.calls)
}

func TestCachedLookupCorruptEntryFallsThrough(t *testing.T) {
	source := &countingSource{dishes: map[string]*models.Dish{
		"2005": {RKCode: "2005", Name: "Борщ"},
	}}
	cache, mr := setupCache(t, source)
	ctx := context.Background()

	require.NoError(t, mr.Set("dish:2005", "{not json"))

	dish, err := cache.GetByRKCode(ctx, "2005")
	require.NoError(t, err)
	assert.Equal(t, "Борщ", dish.Name)
	assert.Equal(t, 1, source.calls)
}
