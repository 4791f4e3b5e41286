package liquidation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/liqwatch/internal/alert"
	"github.com/rickgao/liqwatch/internal/connection"
)

const vault = "0x2e3d94f0562703b25c83308a05046ddaf9a8dd14"

const liquidationFrame = `{
  "channel": "user",
  "data": {
    "fills": [
      {"coin":"BTC","px":"50000.0","sz":"1.0","side":"A","time":1700000000000,"dir":"Close Long",
       "liquidation":{"liquidatedUser":"0xdead","markPx":"49990.0","method":"market"}},
      {"coin":"BTC","px":"50010.0","sz":"2.0","side":"A","time":1700000000001,"dir":"Close Long",
       "liquidation":{"liquidatedUser":"0xdead","markPx":"49980.0","method":"market"}}
    ]
  }
}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[int64][]alert.Alert
}

func (n *recordingNotifier) Notify(_ context.Context, recipient int64, a alert.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = make(map[int64][]alert.Alert)
	}
	n.sent[recipient] = append(n.sent[recipient], a)
	return nil
}

func (n *recordingNotifier) count(recipient int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent[recipient])
}

func (n *recordingNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, alerts := range n.sent {
		total += len(alerts)
	}
	return total
}

// mockWSServer creates a test WebSocket server and counts connections.
func mockWSServer(t *testing.T, handler func(n int, conn *websocket.Conn)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	var conns atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(int(conns.Add(1)), conn)
	}))
	t.Cleanup(server.Close)

	return server, &conns
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// readSubscribe reads the first frame and checks it is the expected
// subscription.
func readSubscribe(conn *websocket.Conn) bool {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return false
	}
	var req connection.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return false
	}
	return req.Method == "subscribe" &&
		req.Subscription != nil &&
		req.Subscription.Type == "userEvents" &&
		req.Subscription.User == vault
}

// answerPings replies to application pings until the connection closes.
func answerPings(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req connection.Request
		if json.Unmarshal(data, &req) == nil && req.Method == "ping" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"pong"}`)); err != nil {
				return
			}
		}
	}
}

func testConfig(url string) Config {
	return Config{
		URL:                url,
		Address:            vault,
		ChatIDs:            []int64{100, 200},
		PingInterval:       time.Hour,
		ReconnectBaseDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:  40 * time.Millisecond,
	}
}

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	})
}

func TestNewWatcher_Defaults(t *testing.T) {
	w := NewWatcher(Config{URL: "ws://x", Address: vault}, nil, &recordingNotifier{}, nil)

	assert.Equal(t, 30*time.Second, w.cfg.PingInterval)
	assert.Equal(t, 90*time.Second, w.cfg.PingTimeout)
	assert.Equal(t, 5*time.Second, w.cfg.ReconnectBaseDelay)
	assert.Equal(t, 300*time.Second, w.cfg.ReconnectMaxDelay)
	assert.Equal(t, connection.StateDisconnected, w.State())
	assert.Equal(t, 5*time.Second, w.Status().NextDelay)
}

func TestWatcher_DispatchesLiquidation(t *testing.T) {
	server, _ := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		if !readSubscribe(conn) {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"subscriptionResponse","data":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(liquidationFrame))
		answerPings(conn)
	})

	notifier := &recordingNotifier{}
	w := NewWatcher(testConfig(wsURL(server)), nil, notifier, quietLogger())
	startWatcher(t, w)

	require.Eventually(t, func() bool {
		return notifier.count(100) == 1 && notifier.count(200) == 1
	}, 2*time.Second, 10*time.Millisecond)

	notifier.mu.Lock()
	a := notifier.sent[100][0]
	notifier.mu.Unlock()

	assert.Equal(t, alert.KindLiquidation, a.Kind)
	assert.Contains(t, a.Text, "BTC")
	assert.Contains(t, a.Text, "Close Long")

	assert.Equal(t, connection.StateConnected, w.State())
	status := w.Status()
	assert.Equal(t, int64(1), status.Events)
	assert.NotEmpty(t, status.ConnectionID)
	assert.Equal(t, int64(2), w.RouterStats().MessagesReceived)
}

func TestWatcher_PongKeepsConnectionWithoutAlerts(t *testing.T) {
	server, conns := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		if !readSubscribe(conn) {
			return
		}
		answerPings(conn)
	})

	cfg := testConfig(wsURL(server))
	cfg.PingInterval = 20 * time.Millisecond

	notifier := &recordingNotifier{}
	w := NewWatcher(cfg, nil, notifier, quietLogger())
	startWatcher(t, w)

	require.Eventually(t, func() bool {
		return w.RouterStats().MessagesRouted >= 5
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, connection.StateConnected, w.State())
	assert.Equal(t, int32(1), conns.Load())
	assert.Zero(t, notifier.total())
}

func TestWatcher_ReconnectsAfterServerClose(t *testing.T) {
	server, conns := mockWSServer(t, func(n int, conn *websocket.Conn) {
		if !readSubscribe(conn) {
			return
		}
		if n == 1 {
			return // drop the first connection
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(liquidationFrame))
		answerPings(conn)
	})

	notifier := &recordingNotifier{}
	w := NewWatcher(testConfig(wsURL(server)), nil, notifier, quietLogger())
	startWatcher(t, w)

	require.Eventually(t, func() bool {
		return conns.Load() >= 2 && notifier.count(100) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.GreaterOrEqual(t, w.Status().Reconnects, int64(1))
	assert.Equal(t, 10*time.Millisecond, w.Status().NextDelay)
}

// fakeClient is a scripted connection.Client.
type fakeClient struct {
	connectErr error
	messages   chan connection.TimestampedMessage
	errors     chan error

	mu    sync.Mutex
	sent  [][]byte
	alive int
}

func newFakeClient(connectErr error) *fakeClient {
	return &fakeClient{
		connectErr: connectErr,
		messages:   make(chan connection.TimestampedMessage, 10),
		errors:     make(chan error, 1),
	}
}

func (c *fakeClient) Connect(context.Context) error { return c.connectErr }
func (c *fakeClient) Close() error                  { return nil }
func (c *fakeClient) IsConnected() bool             { return c.connectErr == nil }

func (c *fakeClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeClient) Messages() <-chan connection.TimestampedMessage { return c.messages }
func (c *fakeClient) Errors() <-chan error                           { return c.errors }

func (c *fakeClient) MarkAlive() {
	c.mu.Lock()
	c.alive++
	c.mu.Unlock()
}

func (c *fakeClient) aliveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *fakeClient) push(data string) {
	c.messages <- connection.TimestampedMessage{Data: []byte(data), ReceivedAt: time.Now()}
}

func TestWatcher_BackoffResetsOnConnect(t *testing.T) {
	live := newFakeClient(nil)
	var attempts atomic.Int32

	factory := func(connection.ClientConfig, *slog.Logger) connection.Client {
		if attempts.Add(1) <= 3 {
			return newFakeClient(errors.New("dial refused"))
		}
		return live
	}

	w := NewWatcher(testConfig("ws://unused"), nil, &recordingNotifier{}, quietLogger(), WithClientFactory(factory))
	startWatcher(t, w)

	require.Eventually(t, func() bool {
		return w.State() == connection.StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(4), attempts.Load())
	assert.Equal(t, int64(3), w.Status().Reconnects)
	assert.Equal(t, 10*time.Millisecond, w.Status().NextDelay)

	live.mu.Lock()
	require.Len(t, live.sent, 1)
	assert.JSONEq(t, `{"method":"subscribe","subscription":{"type":"userEvents","user":"`+vault+`"}}`, string(live.sent[0]))
	live.mu.Unlock()
}

func TestWatcher_BackoffCapped(t *testing.T) {
	var attempts atomic.Int32
	factory := func(connection.ClientConfig, *slog.Logger) connection.Client {
		attempts.Add(1)
		return newFakeClient(errors.New("dial refused"))
	}

	w := NewWatcher(testConfig("ws://unused"), nil, &recordingNotifier{}, quietLogger(), WithClientFactory(factory))
	startWatcher(t, w)

	require.Eventually(t, func() bool {
		return attempts.Load() >= 5
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 40*time.Millisecond, w.Status().NextDelay)
	assert.NotEqual(t, connection.StateConnected, w.State())
}

func TestWatcher_HandlesMessagesInOrder(t *testing.T) {
	client := newFakeClient(nil)
	factory := func(connection.ClientConfig, *slog.Logger) connection.Client { return client }

	notifier := &recordingNotifier{}
	w := NewWatcher(testConfig("ws://unused"), nil, notifier, quietLogger(), WithClientFactory(factory))
	startWatcher(t, w)

	client.push(`{"channel":"pong"}`)
	client.push(`not json`)
	client.push(`{"channel":"user","data":{"fills":[{"coin":"ETH","px":"3000","sz":"1","side":"B","time":1,"dir":"Open Long"}]}}`)
	client.push(`{"channel":"error","data":"bad subscription"}`)
	client.push(liquidationFrame)

	require.Eventually(t, func() bool {
		return notifier.count(100) == 1 && notifier.count(200) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, client.aliveCount())
	assert.Equal(t, 2, notifier.total())

	stats := w.RouterStats()
	assert.Equal(t, int64(5), stats.MessagesReceived)
	assert.Equal(t, int64(1), stats.ParseErrors)
}

func TestWatcher_ConnectionErrorTriggersReconnect(t *testing.T) {
	first := newFakeClient(nil)
	second := newFakeClient(nil)
	var attempts atomic.Int32

	factory := func(connection.ClientConfig, *slog.Logger) connection.Client {
		if attempts.Add(1) == 1 {
			return first
		}
		return second
	}

	w := NewWatcher(testConfig("ws://unused"), nil, &recordingNotifier{}, quietLogger(), WithClientFactory(factory))
	startWatcher(t, w)

	require.Eventually(t, func() bool {
		return w.State() == connection.StateConnected
	}, time.Second, 5*time.Millisecond)

	first.errors <- connection.ErrStaleConnection

	require.Eventually(t, func() bool {
		return attempts.Load() == 2 && w.State() == connection.StateConnected
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWatcher_StopDuringBackoff(t *testing.T) {
	factory := func(connection.ClientConfig, *slog.Logger) connection.Client {
		return newFakeClient(errors.New("dial refused"))
	}

	cfg := testConfig("ws://unused")
	cfg.ReconnectBaseDelay = time.Hour
	cfg.ReconnectMaxDelay = time.Hour

	w := NewWatcher(cfg, nil, &recordingNotifier{}, quietLogger(), WithClientFactory(factory))
	require.NoError(t, w.Start(context.Background()))

	require.Eventually(t, func() bool {
		return w.State() == connection.StateDisconnected && w.Status().NextDelay == time.Hour
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
	assert.Equal(t, connection.StateDisconnected, w.State())
}
