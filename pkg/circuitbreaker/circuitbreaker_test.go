package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var (
	errDown = errors.New("connection refused")
	errMiss = errors.New("miss")
)

func fail() (int, error) { return 0, errDown }

func TestNew_TripsAfterConsecutiveFailuresAndLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := DefaultConfig("redis")
	cfg.ConsecutiveFailures = 3
	cb := New[int](cfg, zap.New(core))

	for range 3 {
		_, err := cb.Execute(fail)
		require.ErrorIs(t, err, errDown)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	_, err := cb.Execute(func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	entries := logs.FilterMessage("circuit breaker state changed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "open", entries[0].ContextMap()["to"])
}

func TestNew_HalfOpenProbeCloses(t *testing.T) {
	cfg := DefaultConfig("redis")
	cfg.ConsecutiveFailures = 1
	cfg.OpenTimeout = 20 * time.Millisecond
	cb := New[int](cfg, nil)

	_, _ = cb.Execute(fail)
	require.Equal(t, gobreaker.StateOpen, cb.State())

	require.Eventually(t, func() bool { return cb.State() == gobreaker.StateHalfOpen }, time.Second, 5*time.Millisecond)
	v, err := cb.Execute(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestNew_IsSuccessfulErrorsDoNotTrip(t *testing.T) {
	cfg := DefaultConfig("redis")
	cfg.ConsecutiveFailures = 1
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, errMiss) }
	cb := New[int](cfg, nil)

	for range 5 {
		_, err := cb.Execute(func() (int, error) { return 0, errMiss })
		require.ErrorIs(t, err, errMiss)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestNew_ZeroThresholdUsesDefault(t *testing.T) {
	cb := New[int](Config{Name: "x", OpenTimeout: time.Minute}, nil)

	for range 4 {
		_, _ = cb.Execute(fail)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	_, _ = cb.Execute(fail)
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}
