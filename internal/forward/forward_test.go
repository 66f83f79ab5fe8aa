package forward

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/monitor"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func testSnapshot() monitor.Snapshot {
	return monitor.Snapshot{
		Session: monitor.SessionInfo{
			StartTime:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			DurationSeconds:  90,
			IsRealUser:       true,
			TelemetryEnabled: true,
		},
		Metrics:  monitor.Counters{PageViews: 3, APICalls: 2, TotalTrackedEvents: 5, FilteringEfficiency: 17},
		Business: map[string]float64{"purchase_value": 129.99},
	}
}

func TestPublisher_Publish(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	p := NewPublisher(nc, "shop.", nil)
	p.now = func() time.Time { return time.Date(2024, 6, 1, 12, 1, 30, 0, time.UTC) }
	assert.Equal(t, "shop.sessions.abc-123.snapshot", p.Subject("abc-123"))

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("shop.sessions.*.snapshot", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, p.Publish(context.Background(), "abc-123", testSnapshot()))

	select {
	case msg := <-ch:
		assert.Equal(t, "shop.sessions.abc-123.snapshot", msg.Subject)
		var got Message
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "abc-123", got.SessionID)
		assert.True(t, got.PublishedAt.Equal(time.Date(2024, 6, 1, 12, 1, 30, 0, time.UTC)))
		assert.EqualValues(t, 3, got.Snapshot.Metrics.PageViews)
		assert.Equal(t, 129.99, got.Snapshot.Business["purchase_value"])
		assert.True(t, got.Snapshot.Session.IsRealUser)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
}

func TestPublisher_DefaultPrefix(t *testing.T) {
	p := NewPublisher(nil, "", nil)
	assert.Equal(t, "domainscope.sessions.s1.snapshot", p.Subject("s1"))
}

func TestPublisher_InvalidSessionID(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	p := NewPublisher(nc, "", nil)
	for _, id := range []string{"", "a.b", "a*", "a>", "a b"} {
		err := p.Publish(context.Background(), id, testSnapshot())
		assert.ErrorIs(t, err, ErrInvalidSessionID, id)
	}
}

func TestPublisher_CanceledContext(t *testing.T) {
	p := NewPublisher(nil, "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "s1", testSnapshot()), context.Canceled)
}

func TestPublisher_ClosedConnection(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	nc.Close()

	p := NewPublisher(nc, "", nil)
	err = p.Publish(context.Background(), "s1", testSnapshot())
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}

func TestConnect(t *testing.T) {
	server := startTestNATSServer(t)

	nc, err := Connect(server.ClientURL(), "")
	require.NoError(t, err)
	assert.True(t, nc.IsConnected())
	nc.Close()

	_, err = Connect("nats://127.0.0.1:1", "")
	assert.ErrorContains(t, err, "connect to nats")
}
