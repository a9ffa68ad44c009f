package dishes_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ms-labeling/internal/dishes"
	"ms-labeling/internal/models"
)

// TestCachedLookupIntegration runs the read-through cache against a real
// Redis container.
func TestCachedLookupIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	source := &countingSource{dishes: map[string]*models.Dish{
		"2005": {
			RKCode:      "2005",
			Name:        "Борщ",
			WeightG:     350,
			Calories:    2520,
			Ingredients: []string{"говядина", "свекла"},
		},
	}}
	cache := dishes.NewCachedLookup(source, client, time.Minute)

	dish, err := cache.GetByRKCode(ctx, "2005")
	require.NoError(t, err)
	assert.Equal(t, "Борщ", dish.Name)
	assert.Equal(t, []string{"говядина", "свекла"}, dish.Ingredients)
	assert.Equal(t, 1, source.calls)

	// Round-trips through real Redis serialization.
	again, err := cache.GetByRKCode(ctx, "2005")
	require.NoError(t, err)
	assert.Equal(t, dish, again)
	assert.Equal(t, 1, source.calls)

	_, err = cache.GetByRKCode(ctx, "9999")
	assert.ErrorIs(t, err, dishes.ErrDishNotFound)
}
