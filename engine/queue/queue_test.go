package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"siteforge/engine/events"
	"siteforge/engine/models"
	"siteforge/engine/pipeline"
	"siteforge/engine/store"
	"siteforge/engine/telemetry/metrics"
)

func TestDispatcherRunsQueuedBuildToSuccess(t *testing.T) {
	st := store.NewMemStore()
	bus := events.NewBus(metrics.NoopProvider{})
	runner := func(_ context.Context, _ Job) ([]pipeline.OptimizedPage, *pipeline.Stats, error) {
		return []pipeline.OptimizedPage{{URLPath: "/"}}, &pipeline.Stats{}, nil
	}
	d := New(st, bus, runner, 1)

	buildID, err := d.Enqueue(context.Background(), "site1", models.Settings{})
	require.NoError(t, err)

	build, err := d.Await(context.Background(), buildID, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, models.BuildSuccess, build.Status)
	require.Equal(t, 1, build.PagesProcessed)
}

func TestDispatcherRecordsRunnerFailure(t *testing.T) {
	st := store.NewMemStore()
	runner := func(_ context.Context, _ Job) ([]pipeline.OptimizedPage, *pipeline.Stats, error) {
		return nil, nil, assertError
	}
	d := New(st, nil, runner, 1)

	buildID, err := d.Enqueue(context.Background(), "site1", models.Settings{})
	require.NoError(t, err)

	build, err := d.Await(context.Background(), buildID, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, models.BuildFailed, build.Status)
	require.NotEmpty(t, build.Error)
}

func TestDispatcherRunsSameSiteBuildsInFIFOOrder(t *testing.T) {
	st := store.NewMemStore()
	var order []int32
	var counter int32
	runner := func(_ context.Context, _ Job) ([]pipeline.OptimizedPage, *pipeline.Stats, error) {
		n := atomic.AddInt32(&counter, 1)
		order = append(order, n)
		time.Sleep(10 * time.Millisecond)
		return nil, &pipeline.Stats{}, nil
	}
	d := New(st, nil, runner, 4)

	id1, err := d.Enqueue(context.Background(), "site1", models.Settings{})
	require.NoError(t, err)
	id2, err := d.Enqueue(context.Background(), "site1", models.Settings{})
	require.NoError(t, err)

	_, err = d.Await(context.Background(), id1, time.Second)
	require.NoError(t, err)
	_, err = d.Await(context.Background(), id2, time.Second)
	require.NoError(t, err)

	require.Equal(t, []int32{1, 2}, order)
}

type stubError string

func (e stubError) Error() string { return string(e) }

const assertError = stubError("runner failed")
