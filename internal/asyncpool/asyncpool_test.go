package asyncpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_SubmitAndNotify(t *testing.T) {
	pool := New(2, 4)
	defer pool.Close()

	err := pool.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	}, "token-a")
	require.NoError(t, err)

	select {
	case c := <-pool.Notify:
		assert.Equal(t, 42, c.Value)
		assert.NoError(t, c.Err)
		assert.Equal(t, "token-a", c.Token)
	case <-time.After(time.Second):
		t.Fatal("completion never arrived")
	}
}

func TestPool_PropagatesJobError(t *testing.T) {
	pool := New(1, 1)
	defer pool.Close()

	wantErr := errors.New("boom")
	err := pool.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return nil, wantErr
	}, nil)
	require.NoError(t, err)

	select {
	case c := <-pool.Notify:
		assert.Equal(t, wantErr, c.Err)
	case <-time.After(time.Second):
		t.Fatal("completion never arrived")
	}
}

func TestPool_RunsJobsConcurrently(t *testing.T) {
	pool := New(4, 4)
	defer pool.Close()

	const n = 4
	release := make(chan struct{})
	started := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		err := pool.Submit(context.Background(), func(ctx context.Context) (any, error) {
			started <- struct{}{}
			<-release
			return nil, nil
		}, i)
		require.NoError(t, err)
	}

	for i := 0; i < n; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("not all jobs started concurrently")
		}
	}
	close(release)

	for i := 0; i < n; i++ {
		select {
		case <-pool.Notify:
		case <-time.After(time.Second):
			t.Fatal("completion missing")
		}
	}
}

func TestPool_SubmitAfterCloseReturnsErrClosed(t *testing.T) {
	pool := New(1, 1)
	pool.Close()

	err := pool.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	}, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPool_SubmitRespectsContextCancellation(t *testing.T) {
	pool := New(1, 1)
	defer pool.Close()

	block := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) (any, error) {
		<-block
		return nil, nil
	}, nil))
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) (any, error) {
		<-block
		return nil, nil
	}, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := pool.Submit(ctx, func(ctx context.Context) (any, error) {
		return nil, nil
	}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
}
