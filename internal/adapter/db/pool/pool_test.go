package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupTestPool(t *testing.T, cfg Config) *Pool {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	p, err := New(db, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Close(context.Background())
	})
	return p
}

func TestNew_RejectsNonPositiveSize(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	_, err = New(db, Config{MaxConns: 0}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestNew_DefaultsAcquireTimeout(t *testing.T) {
	p := setupTestPool(t, Config{MaxConns: 2})

	assert.Equal(t, defaultAcquireTimeout, p.Config().AcquireTimeout)
	assert.Equal(t, 2, p.Stats().MaxOpenConnections)
}

func TestWithConn_ReleasesConnection(t *testing.T) {
	p := setupTestPool(t, Config{MaxConns: 1, AcquireTimeout: time.Second})
	ctx := context.Background()

	err := p.WithConn(ctx, func(tx *gorm.DB) error {
		assert.Equal(t, 1, p.Stats().InUse)
		return tx.Exec("SELECT 1").Error
	})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stats().InUse)

	// Error paths release too.
	boom := errors.New("boom")
	err = p.WithConn(ctx, func(tx *gorm.DB) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, p.Stats().InUse)

	assert.Panics(t, func() {
		_ = p.WithConn(ctx, func(tx *gorm.DB) error { panic("handler bug") })
	})
	assert.Equal(t, 0, p.Stats().InUse)

	// The single connection is still usable afterwards.
	require.NoError(t, p.Ping(ctx))
}

func TestWithConn_Exhausted(t *testing.T) {
	p := setupTestPool(t, Config{MaxConns: 1, AcquireTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	var innerErr error
	start := time.Now()
	err := p.WithConn(ctx, func(tx *gorm.DB) error {
		innerErr = p.WithConn(ctx, func(*gorm.DB) error {
			t.Fatal("second acquisition must not succeed")
			return nil
		})
		return nil
	})
	require.NoError(t, err)
	require.Error(t, innerErr)
	assert.ErrorIs(t, innerErr, ErrPoolExhausted)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWithConn_CallerContextWins(t *testing.T) {
	p := setupTestPool(t, Config{MaxConns: 1, AcquireTimeout: 5 * time.Second})

	var innerErr error
	err := p.WithConn(context.Background(), func(tx *gorm.DB) error {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		innerErr = p.WithConn(ctx, func(*gorm.DB) error { return nil })
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, innerErr, context.DeadlineExceeded)
	assert.NotErrorIs(t, innerErr, ErrPoolExhausted)
}

func TestWithConn_ConcurrentCallersShareBoundedPool(t *testing.T) {
	p := setupTestPool(t, Config{MaxConns: 1, AcquireTimeout: 5 * time.Second})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.WithConn(ctx, func(tx *gorm.DB) error {
				if inUse := p.Stats().InUse; inUse > 1 {
					return errors.New("pool exceeded its bound")
				}
				return tx.Exec("SELECT 1").Error
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestClose_RejectsNewWork(t *testing.T) {
	p := setupTestPool(t, Config{MaxConns: 1, AcquireTimeout: time.Second})

	require.NoError(t, p.Close(context.Background()))
	assert.ErrorIs(t, p.WithConn(context.Background(), func(*gorm.DB) error { return nil }), ErrPoolClosed)
	assert.ErrorIs(t, p.Ping(context.Background()), ErrPoolClosed)

	// Idempotent.
	assert.NoError(t, p.Close(context.Background()))
}

func TestClose_DrainsInFlightWork(t *testing.T) {
	p := setupTestPool(t, Config{MaxConns: 1, AcquireTimeout: time.Second})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- p.WithConn(context.Background(), func(tx *gorm.DB) error {
			close(started)
			<-release
			return tx.Exec("SELECT 1").Error
		})
	}()
	<-started

	closed := make(chan error, 1)
	go func() {
		closed <- p.Close(context.Background())
	}()

	select {
	case <-closed:
		t.Fatal("Close returned before in-flight work finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.NoError(t, <-done)
	assert.NoError(t, <-closed)
}

func TestClose_DrainTimeout(t *testing.T) {
	p := setupTestPool(t, Config{MaxConns: 1, AcquireTimeout: time.Second})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.WithConn(context.Background(), func(tx *gorm.DB) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-done
}
