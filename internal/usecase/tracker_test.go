package usecase

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"growthdash/pkg/metrics"
)

func TestRequestTracker_NewerRequestSupersedes(t *testing.T) {
	tracker := NewRequestTracker(metrics.NewWithRegisterer(prometheus.NewRegistry()))

	firstCtx, first := tracker.Begin(context.Background(), "tab-1")
	secondCtx, second := tracker.Begin(context.Background(), "tab-1")

	assert.ErrorIs(t, firstCtx.Err(), context.Canceled)
	assert.NoError(t, secondCtx.Err())
	assert.True(t, first.Stale())
	assert.False(t, second.Stale())

	first.Done()
	assert.True(t, second.Current())

	second.Done()
	assert.ErrorIs(t, secondCtx.Err(), context.Canceled)
	assert.False(t, first.Current())
}

func TestRequestTracker_SessionsAreIndependent(t *testing.T) {
	tracker := NewRequestTracker(metrics.NewWithRegisterer(prometheus.NewRegistry()))

	ctxA, a := tracker.Begin(context.Background(), "tab-1")
	_, b := tracker.Begin(context.Background(), "tab-2")
	defer a.Done()
	defer b.Done()

	assert.NoError(t, ctxA.Err())
	assert.True(t, a.Current())
	assert.True(t, b.Current())
}

func TestRequestTracker_EmptySessionNeverStale(t *testing.T) {
	tracker := NewRequestTracker(metrics.NewWithRegisterer(prometheus.NewRegistry()))

	ctx1, t1 := tracker.Begin(context.Background(), "")
	_, t2 := tracker.Begin(context.Background(), "")
	defer t1.Done()
	defer t2.Done()

	assert.NoError(t, ctx1.Err())
	assert.False(t, t1.Stale())
	assert.False(t, t2.Stale())
}
