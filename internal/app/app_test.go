package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maninjwa/stock-count-backend/internal/config"
	"github.com/maninjwa/stock-count-backend/internal/infra"
	"github.com/maninjwa/stock-count-backend/internal/repository/memstore"
)

type nopMailer struct{}

func (nopMailer) Send(infra.Message) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Env:                 "test",
		JWTSecret:           "app-test-secret",
		JWTExpirationHours:  1,
		JWTRefreshHours:     1,
		ReconcileMaxRetries: 3,
		WorkerPoolSize:      1,
	}
}

func TestNew_WithoutRedisRunsInline(t *testing.T) {
	a, err := New(testConfig(), memstore.New(), Options{})
	require.NoError(t, err)

	assert.NotNil(t, a.Services.Areas)
	assert.NotNil(t, a.Services.Reports)
	assert.Nil(t, a.Services.Notifications, "no mailer, no notifications")
	assert.Nil(t, a.pool)
	assert.Nil(t, a.dispatcher)
	assert.Equal(t, a.Services.Comparisons, a.trigger)
}

func TestNew_WithMailer(t *testing.T) {
	a, err := New(testConfig(), memstore.New(), Options{Mailer: nopMailer{}})
	require.NoError(t, err)
	assert.NotNil(t, a.Services.Notifications)
}

func TestStartAndWait_StopOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.SweepIntervalSeconds = 1
	a, err := New(cfg, memstore.New(), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	a.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		a.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}
