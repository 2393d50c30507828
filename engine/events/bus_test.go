package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"siteforge/engine/telemetry/metrics"
)

func TestBusBasicPublishSubscribe(t *testing.T) {
	bus := NewBus(metrics.NoopProvider{})
	sub, err := bus.Subscribe(10)
	require.NoError(t, err)
	defer sub.Close()

	ev := Event{Category: CategoryAssets, Type: "asset_discovered"}
	require.NoError(t, bus.Publish(ev))

	select {
	case got := <-sub.C():
		require.Equal(t, ev.Type, got.Type)
		require.Equal(t, ev.Category, got.Category)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestBusDropBehavior(t *testing.T) {
	bus := NewBus(metrics.NoopProvider{})
	sub, err := bus.Subscribe(1)
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		_ = bus.Publish(Event{Category: CategoryPipeline, Type: "tick"})
	}
	stats := bus.Stats()
	require.Greater(t, stats.Published, uint64(0))
	require.Greater(t, stats.Dropped, uint64(0))
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus(metrics.NoopProvider{})
	sub1, _ := bus.Subscribe(2)
	sub2, _ := bus.Subscribe(2)
	defer sub1.Close()
	defer sub2.Close()

	_ = bus.Publish(Event{Category: CategoryBuild, Type: "queued"})

	recv := func(ch <-chan Event) bool {
		select {
		case <-ch:
			return true
		case <-time.After(200 * time.Millisecond):
			return false
		}
	}
	require.True(t, recv(sub1.C()))
	require.True(t, recv(sub2.C()))
}

func TestBusPublishRejectsMissingCategory(t *testing.T) {
	bus := NewBus(metrics.NoopProvider{})
	require.Error(t, bus.Publish(Event{Type: "x"}))
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(metrics.NoopProvider{})
	sub, err := bus.Subscribe(1)
	require.NoError(t, err)
	require.NoError(t, bus.Unsubscribe(sub))
	_, open := <-sub.C()
	require.False(t, open)
}

func TestBusPublishCtxCorrelation(t *testing.T) {
	bus := NewBus(metrics.NoopProvider{})
	sub, err := bus.Subscribe(2)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, bus.PublishCtx(context.Background(), Event{Category: CategoryPipeline, Type: "stage_start"}))
	select {
	case ev := <-sub.C():
		require.Equal(t, "stage_start", ev.Type)
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout")
	}
}
