//go:build !windows

package instance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nohands.dev/go/nohands/internal/instance"
	"nohands.dev/go/nohands/internal/testutil"
)

func TestSecondLaunchHandsOverToHolder(t *testing.T) {
	paths := testutil.NewPaths(t)

	first := testutil.NewInstance(t, paths)
	require.NoError(t, first.Guard.Acquire())

	got := make(chan instance.SecondInstance, 1)
	instance.Serve(first.Server, func(msg instance.SecondInstance) { got <- msg })
	first.Listen()

	second := testutil.NewInstance(t, paths)
	require.ErrorIs(t, second.Guard.Acquire(), instance.ErrAlreadyRunning)
	assert.False(t, second.Guard.Held())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, second.Guard.NotifyExisting(ctx, []string{"--from-second"}))

	select {
	case msg := <-got:
		assert.Equal(t, []string{"--from-second"}, msg.Args)
	case <-time.After(time.Second):
		t.Fatal("holder was not notified")
	}

	assert.True(t, first.Guard.Held())
}

func TestLockFreedAfterRelease(t *testing.T) {
	paths := testutil.NewPaths(t)

	first := testutil.NewInstance(t, paths)
	require.NoError(t, first.Guard.Acquire())
	require.NoError(t, first.Guard.Release())

	second := testutil.NewInstance(t, paths)
	assert.NoError(t, second.Guard.Acquire())
}

func TestHandOverWaitsForHolderToFinishStarting(t *testing.T) {
	paths := testutil.NewPaths(t)

	first := testutil.NewInstance(t, paths)
	require.NoError(t, first.Guard.Acquire())
	first.Listen()

	got := make(chan instance.SecondInstance, 1)
	go func() {
		// listening, but second-instance arrives only after startup
		time.Sleep(300 * time.Millisecond)
		instance.Serve(first.Server, func(msg instance.SecondInstance) { got <- msg })
	}()

	second := instance.New(instance.Options{
		AppID:          "nohands-test",
		LockPath:       paths.LockFile,
		SocketPath:     paths.SocketPath,
		NotifyAttempts: 50,
		NotifyBackoff:  20 * time.Millisecond,
		Logger:         testutil.Logger(t),
	})
	require.ErrorIs(t, second.Acquire(), instance.ErrAlreadyRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, second.NotifyExisting(ctx, []string{"late"}))

	select {
	case msg := <-got:
		assert.Equal(t, []string{"late"}, msg.Args)
	case <-time.After(time.Second):
		t.Fatal("holder was not notified")
	}
}
