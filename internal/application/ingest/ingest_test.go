package ingest_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/ingest"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/event"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/telemetry"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type capturingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *capturingPublisher) Publish(e event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *capturingPublisher) snapshot() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event(nil), c.events...)
}

// Two clients each post a batch of one INFO and one ERROR entry: four
// entries total, errors_count increments by 2, one log event per entry
// in ingest order.
func TestBatchIngestFromTwoClients(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	pub := &capturingPublisher{}
	in := ingest.New(ingest.WithClock(clk), ingest.WithPublisher(pub))

	batch := []ingest.IngestLogInput{
		{Level: telemetry.LevelInfo, Label: "a", Message: "x"},
		{Level: telemetry.LevelError, Label: "b", Message: "y"},
	}
	in.IngestLogs(context.Background(), ingest.ClientIdentity{ClientID: "c1"}, batch)
	in.IngestLogs(context.Background(), ingest.ClientIdentity{ClientID: "c2"}, batch)

	entries := in.QueryLogs(ingest.LogQuery{})
	assert.Len(t, entries, 4)
	assert.Equal(t, int64(2), in.Counters().ErrorsTotal)
	assert.Equal(t, int64(4), in.Counters().LogsTotal)

	events := pub.snapshot()
	require.Len(t, events, 4)
	for _, e := range events {
		assert.Equal(t, event.TypeLog, e.Type)
	}
}

// After N > capacity insertions, exactly capacity entries remain.
func TestRingBufferBound(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	in := ingest.New(ingest.WithClock(clk))

	var batch []ingest.IngestLogInput
	for i := 0; i < ingest.LogCapacity+50; i++ {
		batch = append(batch, ingest.IngestLogInput{Level: telemetry.LevelInfo, Label: "l", Message: "m"})
	}
	in.IngestLogs(context.Background(), ingest.ClientIdentity{ClientID: "c"}, batch)

	entries := in.QueryLogs(ingest.LogQuery{Limit: ingest.LogCapacity + 100})
	assert.Len(t, entries, ingest.LogCapacity)
}

func TestQueryLogsFiltersByLevelAndSearch(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	in := ingest.New(ingest.WithClock(clk))

	in.IngestLogs(context.Background(), ingest.ClientIdentity{ClientID: "c1"}, []ingest.IngestLogInput{
		{Level: telemetry.LevelInfo, Label: "net", Message: "connected to server"},
		{Level: telemetry.LevelError, Label: "net", Message: "timeout"},
		{Level: telemetry.LevelDebug, Label: "ui", Message: "render tick"},
	})

	errOnly := in.QueryLogs(ingest.LogQuery{Levels: map[telemetry.Level]bool{telemetry.LevelError: true}})
	require.Len(t, errOnly, 1)
	assert.Equal(t, "timeout", errOnly[0].Message)

	bySearch := in.QueryLogs(ingest.LogQuery{Search: "CONNECTED"})
	require.Len(t, bySearch, 1)
	assert.Equal(t, "net", bySearch[0].Label)
}

func TestClearLogsResetsCountersAndEmitsEvent(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	pub := &capturingPublisher{}
	in := ingest.New(ingest.WithClock(clk), ingest.WithPublisher(pub))

	in.IngestLogs(context.Background(), ingest.ClientIdentity{ClientID: "c"}, []ingest.IngestLogInput{
		{Level: telemetry.LevelError, Label: "l", Message: "m"},
	})
	require.Equal(t, int64(1), in.Counters().ErrorsTotal)

	in.ClearLogs()

	assert.Empty(t, in.QueryLogs(ingest.LogQuery{}))
	assert.Equal(t, int64(0), in.Counters().ErrorsTotal)

	events := pub.snapshot()
	assert.Equal(t, event.TypeLogsCleared, events[len(events)-1].Type)
}

func TestSetPublisherWiresLateBoundBroadcaster(t *testing.T) {
	in := ingest.New()

	in.IngestLogs(context.Background(), ingest.ClientIdentity{ClientID: "c"}, []ingest.IngestLogInput{
		{Level: telemetry.LevelInfo, Label: "l", Message: "m"},
	})

	pub := &capturingPublisher{}
	in.SetPublisher(pub)

	in.IngestLogs(context.Background(), ingest.ClientIdentity{ClientID: "c"}, []ingest.IngestLogInput{
		{Level: telemetry.LevelInfo, Label: "l", Message: "m2"},
	})

	events := pub.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, event.TypeLog, events[0].Type)
}

// A submission with no client id still upserts a RemoteClient: the
// ingest mints an id and stamps the stored entries with it.
func TestIngestWithoutClientIDMintsOne(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	in := ingest.New(ingest.WithClock(clk))

	entries := in.IngestLogs(context.Background(), ingest.ClientIdentity{}, []ingest.IngestLogInput{
		{Level: telemetry.LevelInfo, Label: "l", Message: "m"},
	})
	require.Len(t, entries, 1)
	require.NotEmpty(t, entries[0].ClientID)

	clients := in.Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, entries[0].ClientID, clients[0].ID)
	assert.Equal(t, 1, clients[0].TotalLogs)

	snap := in.IngestMetrics(context.Background(), ingest.ClientIdentity{}, telemetry.MetricsSnapshot{})
	assert.NotEmpty(t, snap.ClientID)
}

func TestClientStatusDerivesFromLastSeen(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	in := ingest.New(ingest.WithClock(clk))

	in.Heartbeat(ingest.ClientIdentity{ClientID: "c1", ClientName: "phone"}, "Pixel", "14", "1.0", "10.0.0.1")

	clk.now = clk.now.Add(400 * time.Second)
	clients := in.Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, telemetry.ClientOffline, clients[0].Status)
}
