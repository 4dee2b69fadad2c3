package async_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razaaliwebdev/sello/pkg/async"
)

func TestRunAndAwait(t *testing.T) {
	t.Parallel()

	fut := async.Run(context.Background(), func(context.Context) (int, error) {
		return 42, nil
	})

	got, err := fut.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.True(t, fut.IsComplete())
}

func TestRunPropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fut := async.Run(context.Background(), func(context.Context) (string, error) {
		return "", boom
	})

	_, err := fut.Await()
	require.ErrorIs(t, err, boom)
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fut := async.Run(ctx, func(context.Context) (int, error) {
		t.Error("fn must not run on a cancelled context")
		return 0, nil
	})

	_, err := fut.Await()
	require.ErrorIs(t, err, context.Canceled)
}

func TestAwaitWithTimeout(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	fut := async.Run(context.Background(), func(context.Context) (int, error) {
		<-block
		return 1, nil
	})

	_, err := fut.AwaitWithTimeout(20 * time.Millisecond)
	require.ErrorIs(t, err, async.ErrTimeout)
	close(block)

	got, err := fut.AwaitWithTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestWaitAll(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	ok := async.Run(context.Background(), func(context.Context) (int, error) { return 1, nil })
	bad := async.Run(context.Background(), func(context.Context) (int, error) { return 0, boom })

	results, err := async.WaitAll(ok, bad)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 0}, results)
}
