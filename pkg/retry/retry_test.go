package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func fastConfig(attempts uint) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(4), func() error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, calls)
}

func TestDo_RetryIfStopsOnOtherErrors(t *testing.T) {
	cfg := fastConfig(5)
	cfg.RetryIf = func(err error) bool { return errors.Is(err, errTransient) }

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls == 1 {
			return errTransient
		}
		return errFatal
	})

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 2, calls)
}

func TestDo_OnRetry(t *testing.T) {
	cfg := fastConfig(3)
	var attempts []uint
	cfg.OnRetry = func(n uint, err error) { attempts = append(attempts, n) }

	_ = Do(context.Background(), cfg, func() error { return errTransient })

	require.GreaterOrEqual(t, len(attempts), 2)
	assert.Equal(t, uint(0), attempts[0])
	assert.Equal(t, uint(1), attempts[1])
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	v, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errTransient
		}
		return "K7M2PQ", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "K7M2PQ", v)
}
