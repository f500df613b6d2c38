package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// --- Exponential ---

func TestExponential_SuccessImmediate(t *testing.T) {
	err := Exponential(context.Background(), func() error { return nil }, ExponentialConfig{
		InitialInterval: 5 * time.Millisecond,
		MaxElapsedTime:  100 * time.Millisecond,
	})
	assert.NoError(t, err)
}

func TestExponential_RetryThenSuccess(t *testing.T) {
	var calls int
	var onRetryCount int

	err := Exponential(context.Background(), func() error {
		if calls < 3 {
			calls++
			return errors.New("temporary error")
		}
		return nil
	}, ExponentialConfig{
		InitialInterval: 2 * time.Millisecond,
		MaxElapsedTime:  500 * time.Millisecond,
		OnRetry: func(err error, next time.Duration) {
			onRetryCount++
			assert.Error(t, err)
			assert.Greater(t, next, time.Duration(0))
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, onRetryCount)
}

func TestExponential_InvalidConfig(t *testing.T) {
	err := Exponential(context.Background(), func() error { return nil }, ExponentialConfig{})
	assert.Error(t, err)
}

func TestExponential_PermanentStopsImmediately(t *testing.T) {
	var calls int
	boom := errors.New("bad request")
	err := Exponential(context.Background(), func() error {
		calls++
		return Permanent(boom)
	}, ExponentialConfig{InitialInterval: time.Millisecond, MaxElapsedTime: time.Second})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestExponential_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Exponential(ctx, func() error { return errors.New("node down") }, ExponentialConfig{
		InitialInterval: 2 * time.Millisecond,
	})
	assert.Error(t, err)
}

// --- Constant ---

func TestConstant(t *testing.T) {
	errNode := errors.New("node down")
	errParams := errors.New("invalid params")

	tests := []struct {
		name      string
		attempts  int
		failFirst int   // calls that fail before success; -1 fails forever
		failWith  error // returned on failing calls
		wantCalls int
		wantErr   error
	}{
		{name: "first call succeeds", attempts: 3, failFirst: 0, wantCalls: 1},
		{name: "succeeds on last attempt", attempts: 3, failFirst: 2, failWith: errNode, wantCalls: 3},
		{name: "gives up after attempts", attempts: 3, failFirst: -1, failWith: errNode, wantCalls: 3, wantErr: errNode},
		{name: "zero attempts runs once", attempts: 0, failFirst: -1, failWith: errNode, wantCalls: 1, wantErr: errNode},
		{name: "permanent stops at once", attempts: 5, failFirst: -1, failWith: Permanent(errParams), wantCalls: 1, wantErr: errParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			err := Constant(context.Background(), func() error {
				calls++
				if tt.failFirst < 0 || calls <= tt.failFirst {
					return tt.failWith
				}
				return nil
			}, time.Millisecond, tt.attempts)

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConstant_CancelledContextSkipsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	start := time.Now()
	err := Constant(ctx, func() error {
		calls++
		return errors.New("fail")
	}, time.Minute, 5)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}
