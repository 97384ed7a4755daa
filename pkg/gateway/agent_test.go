package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mfreeman451/boardwatch/pkg/api"
	"github.com/mfreeman451/boardwatch/pkg/client"
	"github.com/mfreeman451/boardwatch/pkg/commands"
	"github.com/mfreeman451/boardwatch/pkg/kv"
	"github.com/mfreeman451/boardwatch/pkg/metrics"
	"github.com/mfreeman451/boardwatch/pkg/models"
	"github.com/mfreeman451/boardwatch/pkg/switchstate"
	"github.com/mfreeman451/boardwatch/pkg/tracker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakePort reads from a pipe and records writes.
type fakePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	failing bool
}

func newFakePort() *fakePort {
	r, w := io.Pipe()

	return &fakePort{r: r, w: w}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failing {
		return 0, errors.New("serial port closed")
	}

	return p.written.Write(b)
}

func (p *fakePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.written.String()
}

func (p *fakePort) Close() error {
	_ = p.w.Close()

	return p.r.Close()
}

func testConfig() Config {
	return Config{
		GatewayID:           models.DefaultGatewayID,
		DeviceID:            models.DefaultCommandDevice,
		BoardID:             models.DefaultBoardID,
		HeartbeatInterval:   time.Hour,
		CommandPollInterval: time.Hour,
		BoardTimeout:        time.Hour,
	}
}

// staticOpener always hands back the same port.
func staticOpener(p io.ReadWriteCloser) Opener {
	return func() (io.ReadWriteCloser, error) { return p, nil }
}

// newLinkedAgent returns an agent whose serial link is already up.
func newLinkedAgent(api API, port *fakePort) *Agent {
	agent := New(api, staticOpener(port), testConfig(), zerolog.Nop())
	agent.setPort(port)

	return agent
}

func TestAgent_RelayCommandsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAPI := NewMockAPI(ctrl)
	port := newFakePort()
	agent := newLinkedAgent(mockAPI, port)
	ctx := context.Background()

	pending := []client.Command{
		{CommandID: "cmd-a", Value: 3, Mode: "uart"},
		{CommandID: "cmd-b", Value: 16, Mode: "serial"},
	}

	mockAPI.EXPECT().PendingCommands(gomock.Any(), "stm32-main").Return(pending, nil).Times(2)
	mockAPI.EXPECT().MarkCommand(gomock.Any(), "cmd-a", "sent").Return(nil)
	mockAPI.EXPECT().MarkCommand(gomock.Any(), "cmd-b", "sent").Return(errors.New("timeout"))
	mockAPI.EXPECT().MarkCommand(gomock.Any(), "cmd-b", "sent").Return(nil)

	require.NoError(t, agent.relayCommands(ctx))
	require.NoError(t, agent.relayCommands(ctx))

	assert.Equal(t, "3\n16\n", port.Written())
}

func TestAgent_RetriesFailedMarkWithoutRewriting(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAPI := NewMockAPI(ctrl)
	port := newFakePort()
	agent := newLinkedAgent(mockAPI, port)
	ctx := context.Background()

	pending := []client.Command{{CommandID: "cmd-a", Value: 5, Mode: "uart"}}

	gomock.InOrder(
		mockAPI.EXPECT().PendingCommands(gomock.Any(), gomock.Any()).Return(pending, nil),
		mockAPI.EXPECT().MarkCommand(gomock.Any(), "cmd-a", "sent").Return(errors.New("connection reset")),
		mockAPI.EXPECT().PendingCommands(gomock.Any(), gomock.Any()).Return(pending, nil),
		mockAPI.EXPECT().MarkCommand(gomock.Any(), "cmd-a", "sent").Return(nil),
		mockAPI.EXPECT().PendingCommands(gomock.Any(), gomock.Any()).Return(pending, nil),
	)

	require.NoError(t, agent.relayCommands(ctx))

	written, marked := agent.relayState("cmd-a")
	assert.True(t, written)
	assert.False(t, marked)

	require.NoError(t, agent.relayCommands(ctx))

	_, marked = agent.relayState("cmd-a")
	assert.True(t, marked)

	// A stale listing after the mark neither rewrites nor re-marks.
	require.NoError(t, agent.relayCommands(ctx))

	assert.Equal(t, "5\n", port.Written())
}

func TestAgent_RelayConflictIsSettled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAPI := NewMockAPI(ctrl)
	port := newFakePort()
	agent := newLinkedAgent(mockAPI, port)

	mockAPI.EXPECT().PendingCommands(gomock.Any(), gomock.Any()).
		Return([]client.Command{{CommandID: "cmd-a", Value: 1}}, nil).Times(2)
	mockAPI.EXPECT().MarkCommand(gomock.Any(), "cmd-a", "sent").
		Return(&client.APIError{StatusCode: http.StatusConflict, Message: "already completed"})

	require.NoError(t, agent.relayCommands(context.Background()))
	require.NoError(t, agent.relayCommands(context.Background()))
	assert.Equal(t, "1\n", port.Written())
}

func TestAgent_WriteFailureLeavesCommandPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAPI := NewMockAPI(ctrl)
	port := newFakePort()
	port.failing = true
	agent := newLinkedAgent(mockAPI, port)

	mockAPI.EXPECT().PendingCommands(gomock.Any(), gomock.Any()).
		Return([]client.Command{{CommandID: "cmd-a", Value: 1}}, nil)

	assert.Error(t, agent.relayCommands(context.Background()))

	written, _ := agent.relayState("cmd-a")
	assert.False(t, written)
}

func TestAgent_RelaySkippedWhileLinkDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAPI := NewMockAPI(ctrl)
	agent := New(mockAPI, staticOpener(newFakePort()), testConfig(), zerolog.Nop())

	assert.ErrorIs(t, agent.relayCommands(context.Background()), errSerialDown)
}

func TestAgent_PrunesSettledIDs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAPI := NewMockAPI(ctrl)
	agent := newLinkedAgent(mockAPI, newFakePort())

	gomock.InOrder(
		mockAPI.EXPECT().PendingCommands(gomock.Any(), gomock.Any()).
			Return([]client.Command{{CommandID: "cmd-a", Value: 1}}, nil),
		mockAPI.EXPECT().MarkCommand(gomock.Any(), "cmd-a", "sent").Return(nil),
		mockAPI.EXPECT().PendingCommands(gomock.Any(), gomock.Any()).Return(nil, nil),
	)

	require.NoError(t, agent.relayCommands(context.Background()))

	written, _ := agent.relayState("cmd-a")
	assert.True(t, written)

	require.NoError(t, agent.relayCommands(context.Background()))

	written, _ = agent.relayState("cmd-a")
	assert.False(t, written)
}

// boardReports records the board statuses an agent reports.
type boardReports struct {
	mu       sync.Mutex
	statuses []string
}

func (b *boardReports) record(_ context.Context, _ string, status string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.statuses = append(b.statuses, status)

	return nil
}

func (b *boardReports) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.statuses) == 0 {
		return ""
	}

	return b.statuses[len(b.statuses)-1]
}

func TestAgent_ReopensSerialAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAPI := NewMockAPI(ctrl)
	reports := &boardReports{}

	mockAPI.EXPECT().ReportBoardStatus(gomock.Any(), models.DefaultBoardID, gomock.Any()).
		DoAndReturn(reports.record).AnyTimes()
	mockAPI.EXPECT().Ping(gomock.Any()).Return(time.Millisecond, nil).AnyTimes()
	mockAPI.EXPECT().SendHeartbeat(gomock.Any(), gomock.Any()).
		Return(&client.StatusResponse{Status: "online"}, nil).AnyTimes()
	mockAPI.EXPECT().ReportGatewayStatus(gomock.Any(), models.DefaultGatewayID, "offline").Return(nil)

	first, second := newFakePort(), newFakePort()
	defer second.Close()

	var opens atomic.Int32

	open := func() (io.ReadWriteCloser, error) {
		switch opens.Add(1) {
		case 1:
			return nil, errors.New("no such device")
		case 2:
			return first, nil
		default:
			return second, nil
		}
	}

	cfg := testConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond

	agent := New(mockAPI, open, cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- agent.Start(ctx) }()

	_, err := first.w.Write([]byte("STM32_ALIVE\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return reports.last() == "online" }, 2*time.Second, 5*time.Millisecond)

	// Unplugging the UART fails the pending read.
	require.NoError(t, first.w.CloseWithError(errors.New("device disconnected")))

	require.Eventually(t, func() bool { return reports.last() == "offline" }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return opens.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	_, err = second.w.Write([]byte("STM32_ALIVE\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return reports.last() == "online" }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, agent.linkUp())

	cancel()
	require.NoError(t, <-done)
	assert.False(t, agent.linkUp())
}

func TestAgent_HeartbeatCarriesLatency(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAPI := NewMockAPI(ctrl)
	cfg := testConfig()
	cfg.Secret = "s3cret"
	agent := New(mockAPI, staticOpener(newFakePort()), cfg, zerolog.Nop())

	mockAPI.EXPECT().Ping(gomock.Any()).Return(12500*time.Microsecond, nil)
	mockAPI.EXPECT().SendHeartbeat(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, hb client.Heartbeat) (*client.StatusResponse, error) {
			assert.Equal(t, "raspi", hb.GatewayID)
			assert.Equal(t, "s3cret", hb.Secret)
			require.NotNil(t, hb.LatencyMs)
			assert.InDelta(t, 12.5, *hb.LatencyMs, 0.001)

			return &client.StatusResponse{Status: "online"}, nil
		})

	agent.heartbeat(context.Background())
}

// newIntegrationServer runs the real API over a memory store.
func newIntegrationServer(t *testing.T, secret string) (*httptest.Server, *tracker.Tracker, *commands.Queue) {
	t.Helper()

	store := kv.NewMemoryStore()
	logger := zerolog.Nop()
	boards := tracker.New(store, tracker.BoardPartition, 0, logger)
	queue := commands.NewQueue(store, logger)

	srv := api.NewAPIServer(api.Services{
		Boards:   boards,
		Gateways: tracker.New(store, tracker.GatewayPartition, 0, logger),
		Commands: queue,
		Switches: switchstate.NewMirror(store, "", logger),
		Latency:  metrics.NewRecorder(store, metrics.DefaultCapacity, logger),
	}, api.Config{HeartbeatSecret: secret}, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts, boards, queue
}

func TestAgent_EndToEnd(t *testing.T) {
	ts, boards, queue := newIntegrationServer(t, "s3cret")

	c, err := client.New(ts.URL)
	require.NoError(t, err)

	ctx := context.Background()

	cmd, err := queue.Enqueue(ctx, "", 9, "parallel")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Secret = "s3cret"
	cfg.CommandPollInterval = 10 * time.Millisecond

	port := newFakePort()
	defer port.Close()

	agent := New(c, staticOpener(port), cfg, zerolog.Nop())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)

	go func() { done <- agent.Start(runCtx) }()

	require.Eventually(t, func() bool { return port.Written() == "9\n" }, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		pending, err := queue.ListPending(ctx)

		return err == nil && len(pending) == 0
	}, 2*time.Second, 10*time.Millisecond)

	// Board chatter flips the board online.
	_, err = port.w.Write([]byte("STM32_ALIVE\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rec, err := boards.Status(ctx, models.DefaultBoardID)

		return err == nil && rec.Status == models.StatusOnline
	}, 2*time.Second, 10*time.Millisecond)

	gw, err := c.SendHeartbeat(ctx, client.Heartbeat{GatewayID: "raspi", Secret: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "online", gw.Status)

	cancel()
	require.NoError(t, <-done)

	resp, err := http.Get(ts.URL + "/api/gateway-status?gatewayId=raspi")
	require.NoError(t, err)

	defer resp.Body.Close()

	var body map[string]any

	require.NoError(t, jsonDecode(resp.Body, &body))
	assert.Equal(t, "offline", body["status"])

	_, err = queue.Advance(ctx, cmd.ID, "completed")
	assert.NoError(t, err)
}
