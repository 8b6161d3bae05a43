package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/pkg/metrics"
	"nuzlocke-bridge/internal/pkg/pubsub"
	"nuzlocke-bridge/internal/source"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []pubsub.Event
}

func (r *recorder) handle(ev pubsub.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func newEmitter(t *testing.T, src source.Source, interval time.Duration) (*PollingEmitter, *recorder, *metrics.BridgeMetrics) {
	t.Helper()
	m := metrics.NewBridgeMetricsWithRegistry("test", prometheus.NewRegistry())
	e := NewPollingEmitter(src, nil, interval, m, log.Discard())
	rec := &recorder{}
	e.Broker().Subscribe(rec.handle)
	t.Cleanup(e.Stop)
	return e, rec, m
}

func demoKV() *source.MemoryKV {
	kv := source.NewMemoryKV(nil)
	kv.SetRun("abc123", nuzlocke.DemoSavesData, nuzlocke.DemoGameData)
	return kv
}

func TestEvery(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(250*time.Millisecond), Every(250*time.Millisecond).Next(base))
	assert.Equal(t, base.Add(time.Second), Every(0).Next(base))
}

func TestPollingEmitter_StartObservesImmediately(t *testing.T) {
	e, rec, _ := newEmitter(t, source.NewStorageSource(demoKV()), time.Hour)

	e.Start(context.Background())

	assert.Equal(t, []string{pubsub.KindDataUpdate, pubsub.KindTeamUpdate, pubsub.KindStatsUpdate}, rec.kinds())

	view, ok := e.Latest()
	require.True(t, ok)
	assert.Equal(t, "abc123", view.GameID)
	assert.Len(t, view.Team, 2)

	rec.mu.Lock()
	stats, isStats := rec.events[2].Payload.(nuzlocke.Stats)
	rec.mu.Unlock()
	require.True(t, isStats)
	assert.Equal(t, view.Stats, stats)
}

func TestPollingEmitter_StartTwiceIsNoop(t *testing.T) {
	kv := demoKV()
	e, rec, _ := newEmitter(t, source.NewStorageSource(kv), time.Hour)

	e.Start(context.Background())
	kv.Set(source.GameKey("abc123"), `{"__team":[]}`)
	e.Start(context.Background())

	assert.True(t, e.Running())
	assert.Equal(t, 1, rec.count(pubsub.KindDataUpdate))
}

func TestPollingEmitter_StopIdempotent(t *testing.T) {
	e, _, _ := newEmitter(t, source.NewStorageSource(demoKV()), time.Hour)

	e.Stop()
	e.Start(context.Background())
	e.Stop()
	e.Stop()
	assert.False(t, e.Running())
}

func TestPollingEmitter_UnchangedIsSilent(t *testing.T) {
	e, rec, m := newEmitter(t, source.NewStorageSource(demoKV()), time.Hour)
	ctx := context.Background()

	e.observe(ctx)
	e.observe(ctx)
	e.observe(ctx)

	assert.Equal(t, 1, rec.count(pubsub.KindDataUpdate))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ObservationsTotal.WithLabelValues(metrics.GetServiceName(), "unchanged")))
}

func TestPollingEmitter_NoActiveRunIsSilent(t *testing.T) {
	e, rec, m := newEmitter(t, source.NewStorageSource(source.NewMemoryKV(nil)), time.Hour)

	e.observe(context.Background())

	assert.Empty(t, rec.kinds())
	_, ok := e.Latest()
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ObservationsTotal.WithLabelValues(metrics.GetServiceName(), "no_data")))
}

func TestPollingEmitter_ReadFailurePublishesError(t *testing.T) {
	src := source.SourceFunc(func(context.Context) (source.Raw, error) {
		return source.Raw{}, errors.New("profile locked")
	})
	e, rec, _ := newEmitter(t, src, time.Hour)

	e.observe(context.Background())

	require.Equal(t, []string{pubsub.KindError}, rec.kinds())
	rec.mu.Lock()
	payload := rec.events[0].Payload.(ErrorPayload)
	rec.mu.Unlock()
	assert.Contains(t, payload.Message, "profile locked")
}

func TestPollingEmitter_ActiveIDFallsBackToFirstRun(t *testing.T) {
	kv := source.NewMemoryKV(nil)
	kv.SetRun("ghost", nuzlocke.DemoSavesData, nuzlocke.DemoGameData)
	e, _, _ := newEmitter(t, source.NewStorageSource(kv), time.Hour)

	e.observe(context.Background())

	view, ok := e.Latest()
	require.True(t, ok)
	assert.Equal(t, "abc123", view.GameID)
}

func TestPollingEmitter_EmptyIndexPublishesError(t *testing.T) {
	kv := source.NewMemoryKV(nil)
	kv.SetRun("abc123", ",,", `{}`)
	e, rec, _ := newEmitter(t, source.NewStorageSource(kv), time.Hour)

	e.observe(context.Background())

	assert.Equal(t, []string{pubsub.KindError}, rec.kinds())
}

func TestPollingEmitter_TicksPickUpChanges(t *testing.T) {
	kv := demoKV()
	e, rec, _ := newEmitter(t, source.NewStorageSource(kv), 10*time.Millisecond)

	e.Start(context.Background())
	kv.Set(source.GameKey("abc123"), `{"__team":["r1"],"r1":{"pokemon":"mudkip","status":1}}`)

	assert.Eventually(t, func() bool {
		return rec.count(pubsub.KindDataUpdate) == 2
	}, 2*time.Second, 5*time.Millisecond)

	view, ok := e.Latest()
	require.True(t, ok)
	require.Len(t, view.Team, 1)
	assert.Equal(t, "mudkip", view.Team[0].Species)
}

func TestPollingEmitter_ResetRepublishes(t *testing.T) {
	e, rec, _ := newEmitter(t, source.NewStorageSource(demoKV()), time.Hour)
	ctx := context.Background()

	e.observe(ctx)
	e.Reset()
	e.observe(ctx)

	assert.Equal(t, 2, rec.count(pubsub.KindDataUpdate))
}

func TestPollingEmitter_StopFromSubscriberDuringStart(t *testing.T) {
	e, rec, _ := newEmitter(t, source.NewStorageSource(demoKV()), 10*time.Millisecond)
	e.Broker().Subscribe(func(pubsub.Event) {
		assert.True(t, e.Running())
		e.Stop()
	}, pubsub.KindDataUpdate)

	started := make(chan struct{})
	go func() {
		e.Start(context.Background())
		close(started)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after a subscriber stopped the emitter")
	}
	assert.False(t, e.Running())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{pubsub.KindDataUpdate}, rec.kinds(), "no events after stop")
}

func TestPollingEmitter_StopFromSubscriberOnTick(t *testing.T) {
	kv := demoKV()
	e, rec, _ := newEmitter(t, source.NewStorageSource(kv), 10*time.Millisecond)

	var updates atomic.Int32
	stopped := make(chan struct{})
	e.Broker().Subscribe(func(pubsub.Event) {
		if updates.Add(1) == 2 {
			e.Stop()
			close(stopped)
		}
	}, pubsub.KindDataUpdate)

	e.Start(context.Background())
	kv.Set(source.GameKey("abc123"), `{"__team":[]}`)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop called from a subscriber on a tick did not return")
	}
	assert.False(t, e.Running())

	kv.Set(source.GameKey("abc123"), `{"__team":["r1"],"r1":{"pokemon":"mudkip","status":1}}`)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, rec.count(pubsub.KindDataUpdate))
	assert.Equal(t, 1, rec.count(pubsub.KindTeamUpdate))
}
