package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig(attempts int) Config {
	return Config{Attempts: attempts, BaseDelay: time.Millisecond}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), nil, func(_ context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), nil, func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("db down")
	err := Do(context.Background(), fastConfig(3), nil, func(_ context.Context) error {
		calls++
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls)
}

func TestDo_OfflineShortCircuit(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() bool { return false }, func(_ context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrOffline)
	assert.Equal(t, 0, calls, "офлайн не должен приводить к сетевым вызовам")
}

func TestDo_GoesOfflineBetweenAttempts(t *testing.T) {
	calls := 0
	online := true
	err := Do(context.Background(), fastConfig(3), func() bool { return online }, func(_ context.Context) error {
		calls++
		online = false
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, ErrOffline)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Config{Attempts: 3, BaseDelay: time.Minute}, nil, func(_ context.Context) error {
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
