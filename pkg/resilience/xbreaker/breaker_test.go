package xbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test error")

func TestNewBreaker(t *testing.T) {
	t.Run("default_settings", func(t *testing.T) {
		b := NewBreaker("test")
		assert.Equal(t, "test", b.Name())
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("with_on_state_change", func(t *testing.T) {
		called := make(chan struct{})
		b := NewBreaker("test",
			WithTripPolicy(NewConsecutiveFailures(1)),
			WithOnStateChange(func(name string, from, to State) {
				defer close(called)
				assert.Equal(t, "test", name)
				assert.Equal(t, StateClosed, from)
				assert.Equal(t, StateOpen, to)
			}),
		)

		_ = b.Do(context.Background(), func() error { return errTest })

		// 回调可能异步执行，等待完成
		select {
		case <-called:
		case <-time.After(time.Second):
			t.Fatal("OnStateChange callback not called within timeout")
		}
	})
}

func TestBreaker_Do(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		b := NewBreaker("test")
		err := b.Do(context.Background(), func() error { return nil })
		assert.NoError(t, err)
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("business_error_passes_through", func(t *testing.T) {
		b := NewBreaker("test")
		err := b.Do(context.Background(), func() error { return errTest })
		assert.ErrorIs(t, err, errTest)

		var be *BreakerError
		assert.False(t, errors.As(err, &be), "业务错误不包装为 BreakerError")
	})

	t.Run("canceled_context", func(t *testing.T) {
		b := NewBreaker("test")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := b.Do(ctx, func() error { called = true; return nil })
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called, "context 已取消时不执行操作")
	})

	t.Run("trips_after_consecutive_failures", func(t *testing.T) {
		b := NewBreaker("test", WithTripPolicy(NewConsecutiveFailures(3)))

		for range 3 {
			_ = b.Do(context.Background(), func() error { return errTest })
		}
		assert.Equal(t, StateOpen, b.State())

		err := b.Do(context.Background(), func() error { return nil })
		require.Error(t, err)
		assert.True(t, IsOpen(err))

		var be *BreakerError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "test", be.Name)
		assert.Equal(t, StateOpen, be.State)
		assert.False(t, be.Retryable())
	})

	t.Run("recovers_through_half_open", func(t *testing.T) {
		b := NewBreaker("test",
			WithTripPolicy(NewConsecutiveFailures(1)),
			WithTimeout(50*time.Millisecond),
		)

		_ = b.Do(context.Background(), func() error { return errTest })
		require.Equal(t, StateOpen, b.State())

		time.Sleep(80 * time.Millisecond)

		err := b.Do(context.Background(), func() error { return nil })
		assert.NoError(t, err)
		assert.Equal(t, StateClosed, b.State())
	})
}

func TestExecute(t *testing.T) {
	t.Run("returns_value", func(t *testing.T) {
		b := NewBreaker("test")
		got, err := Execute(context.Background(), b, func() (string, error) {
			return "hello", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
	})

	t.Run("returns_zero_on_error", func(t *testing.T) {
		b := NewBreaker("test")
		got, err := Execute(context.Background(), b, func() (int, error) {
			return 42, errTest
		})
		assert.ErrorIs(t, err, errTest)
		assert.Zero(t, got)
	})

	t.Run("open_state_wraps_error", func(t *testing.T) {
		b := NewBreaker("test", WithTripPolicy(NewConsecutiveFailures(1)))
		_, _ = Execute(context.Background(), b, func() (int, error) { return 0, errTest })

		_, err := Execute(context.Background(), b, func() (int, error) { return 7, nil })
		assert.True(t, IsBreakerError(err))
	})
}

type alwaysFail struct{}

func (alwaysFail) IsSuccessful(error) bool { return false }

func TestBreaker_SuccessPolicy(t *testing.T) {
	b := NewBreaker("test",
		WithTripPolicy(NewConsecutiveFailures(2)),
		WithSuccessPolicy(alwaysFail{}),
	)

	// nil error 也被判定为失败
	for range 2 {
		_ = b.Do(context.Background(), func() error { return nil })
	}
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_Counts(t *testing.T) {
	b := NewBreaker("test")

	_ = b.Do(context.Background(), func() error { return nil })
	_ = b.Do(context.Background(), func() error { return errTest })

	counts := b.Counts()
	assert.EqualValues(t, 2, counts.Requests)
	assert.EqualValues(t, 1, counts.TotalSuccesses)
	assert.EqualValues(t, 1, counts.TotalFailures)
}

func TestConsecutiveFailuresPolicy(t *testing.T) {
	p := NewConsecutiveFailures(3)
	assert.EqualValues(t, 3, p.Threshold())

	assert.False(t, p.ReadyToTrip(Counts{ConsecutiveFailures: 2}))
	assert.True(t, p.ReadyToTrip(Counts{ConsecutiveFailures: 3}))
	assert.True(t, p.ReadyToTrip(Counts{ConsecutiveFailures: 4}))
}

func TestFailureRatioPolicy(t *testing.T) {
	t.Run("below_min_requests", func(t *testing.T) {
		p := NewFailureRatio(0.5, 10)
		assert.False(t, p.ReadyToTrip(Counts{Requests: 9, TotalFailures: 9}))
	})

	t.Run("ratio_reached", func(t *testing.T) {
		p := NewFailureRatio(0.5, 10)
		assert.True(t, p.ReadyToTrip(Counts{Requests: 10, TotalFailures: 5}))
		assert.False(t, p.ReadyToTrip(Counts{Requests: 10, TotalFailures: 4}))
	})

	t.Run("zero_requests", func(t *testing.T) {
		p := NewFailureRatio(0.5, 0)
		assert.False(t, p.ReadyToTrip(Counts{}))
	})

	t.Run("ratio_clamped", func(t *testing.T) {
		assert.InDelta(t, 1.0, NewFailureRatio(1.5, 1).Ratio(), 0.001)
		assert.InDelta(t, 0.0, NewFailureRatio(-0.5, 1).Ratio(), 0.001)
	})
}

func TestBreakerError_Unwrap(t *testing.T) {
	be := &BreakerError{Err: ErrOpenState, Name: "api"}
	assert.ErrorIs(t, be, ErrOpenState)
	assert.Contains(t, be.Error(), "breaker api")
}
