package ledger

import (
	"context"
	"testing"
	"time"

	"checkout-server/database"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestGormStore(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a postgres container")
	}
	ctx := context.Background()

	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("checkout"),
		postgres.WithUsername("checkout"),
		postgres.WithPassword("checkout"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	runStoreContract(t, func(t *testing.T, c *clock) Store {
		require.NoError(t, db.Exec("DELETE FROM processed_events").Error)
		g := NewGorm(db)
		g.now = c.Now
		return g
	})
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a redis container")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	runStoreContract(t, func(t *testing.T, c *clock) Store {
		require.NoError(t, client.FlushDB(ctx).Err())
		r := NewRedis(client)
		r.now = c.Now
		return r
	})
}
