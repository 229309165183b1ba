//go:build integration

package worker

// Runs the pool against a real Redis via testcontainers.
// Run with: go test -tags integration ./internal/worker/... -v

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(rdC) })

	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestPool_ProcessesRetriesAndDeadLetters(t *testing.T) {
	rdb := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ok, failing atomic.Int32
	good := uuid.New()
	pool := NewPool(rdb, 2, nil)
	pool.Handle(QueueReconcile, JobReconcile, func(_ context.Context, raw json.RawMessage) error {
		var p ReconcilePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		if p.AreaID == good {
			ok.Add(1)
			return nil
		}
		failing.Add(1)
		return errors.New("still failing")
	})
	pool.Start(ctx, 2)

	d := NewDispatcher(rdb, nil, nil)
	require.NoError(t, d.EnqueueReconcile(ctx, good))
	require.NoError(t, d.EnqueueReconcile(ctx, uuid.New()))

	require.Eventually(t, func() bool {
		n, err := DLQLength(ctx, rdb, QueueReconcile)
		return err == nil && n == 1 && ok.Load() == 1
	}, 20*time.Second, 100*time.Millisecond)
	assert.Equal(t, int32(2), failing.Load(), "one retry before the dead letter queue")

	entries, err := ListDLQ(ctx, rdb, QueueReconcile, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, JobReconcile, entries[0].JobType)
	assert.Equal(t, 2, entries[0].Attempts)

	moved, err := RequeueDLQ(ctx, rdb, QueueReconcile, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	require.Eventually(t, func() bool { return failing.Load() == 4 }, 20*time.Second, 100*time.Millisecond)

	cancel()
	pool.Wait()
}
