package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dvlerrors "github.com/wagiedev/dvl-a50-sdk-go/internal/errors"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/metrics"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/report"
)

// mockTransport implements Transport for testing.
type mockTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	lines   chan []byte
	errs    chan error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		sent:  make([][]byte, 0, 10),
		lines: make(chan []byte, 64),
		errs:  make(chan error, 1),
	}
}

func (m *mockTransport) ReadLines(_ context.Context) (<-chan []byte, <-chan error) {
	return m.lines, m.errs
}

func (m *mockTransport) SendMessage(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}

	m.sent = append(m.sent, append([]byte(nil), data...))

	return nil
}

func (m *mockTransport) setSendErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sendErr = err
}

func (m *mockTransport) getSent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([][]byte, len(m.sent))
	copy(result, m.sent)

	return result
}

func (m *mockTransport) inject(line string) {
	m.lines <- []byte(line)
}

func replyLine(command string, success bool, errMsg string) string {
	return fmt.Sprintf(
		`{"response_to":%q,"success":%t,"error_message":%q,"result":null,"format":"json_v3.1","type":"response"}`,
		command, success, errMsg,
	)
}

func velocityLine(vx float64) string {
	return fmt.Sprintf(
		`{"time":100.0,"vx":%g,"vy":0.0,"vz":0.0,"fom":0.002,"altitude":1.2,"velocity_valid":true,"status":0,"type":"velocity",`+
			`"time_of_validity":1638191471563017,"time_of_transmission":1638191471752336}`,
		vx,
	)
}

const deadReckoningLine = `{"ts":49056.809,"x":12.43,"y":64.73,"z":1.36,"std":0.31,"roll":4.94,"pitch":-0.83,"yaw":65.12,"type":"position_local","status":0}`

func startController(t *testing.T, cfg Config) (*Controller, *mockTransport) {
	t.Helper()

	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 10 * time.Millisecond
	}

	transport := newMockTransport()
	controller := NewController(slog.Default(), transport, cfg)

	require.NoError(t, controller.Start(context.Background()))
	t.Cleanup(controller.Stop)

	return controller, transport
}

func waitFuture(t *testing.T, f *Future) (Response, bool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, ok, err := f.Wait(ctx)
	require.NoError(t, err, "future for %s did not resolve", f.Command())

	return resp, ok
}

func requirePending(t *testing.T, f *Future) {
	t.Helper()

	select {
	case <-f.Done():
		t.Fatalf("future for %s resolved unexpectedly", f.Command())
	default:
	}
}

func TestController_CalibrateGyro_Success(t *testing.T) {
	controller, transport := startController(t, Config{})

	future := controller.CalibrateGyro(context.Background(), time.Second)
	require.NotEmpty(t, future.ID())

	sent := transport.getSent()
	require.Len(t, sent, 1)
	require.JSONEq(t, `{"command":"calibrate_gyro"}`, string(sent[0]))

	time.AfterFunc(20*time.Millisecond, func() {
		transport.inject(replyLine(CommandCalibrateGyro, true, ""))
	})

	resp, ok := waitFuture(t, future)
	require.True(t, ok)
	require.True(t, resp.Success)
	require.Empty(t, resp.ErrorMessage)
	require.NoError(t, resp.Err)
	require.Equal(t, 0, controller.Pending())
}

func TestController_DeviceFailurePassedThrough(t *testing.T) {
	controller, transport := startController(t, Config{})

	future := controller.SetConfig(context.Background(), `{"speed_of_sound": 9000}`, time.Second)
	transport.inject(replyLine(CommandSetConfig, false, "speed_of_sound out of range"))

	resp, ok := waitFuture(t, future)
	require.True(t, ok)
	require.False(t, resp.Success)
	require.Equal(t, "speed_of_sound out of range", resp.ErrorMessage)
	require.NoError(t, resp.Err)
}

func TestController_GetConfig_Result(t *testing.T) {
	controller, transport := startController(t, Config{})

	future := controller.GetConfig(context.Background(), time.Second)
	transport.inject(`{"response_to":"get_config","success":true,"error_message":"",` +
		`"result":{"speed_of_sound":1475,"acoustic_enabled":true},"type":"response"}`)

	resp, ok := waitFuture(t, future)
	require.True(t, ok)
	require.True(t, resp.Success)
	require.JSONEq(t, `{"speed_of_sound":1475,"acoustic_enabled":true}`, string(resp.Result))
}

func TestController_TriggerPing_TimesOut(t *testing.T) {
	controller, _ := startController(t, Config{})

	start := time.Now()
	future := controller.TriggerPing(context.Background(), 200*time.Millisecond)

	resp, ok := waitFuture(t, future)
	elapsed := time.Since(start)

	require.False(t, ok, "timeout must resolve without a response")
	require.Equal(t, Response{}, resp)
	require.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	require.Less(t, elapsed, 500*time.Millisecond)
	require.Equal(t, 0, controller.Pending())
}

func TestController_DefaultTimeout(t *testing.T) {
	controller, _ := startController(t, Config{DefaultTimeout: 50 * time.Millisecond})

	start := time.Now()
	_, ok := waitFuture(t, controller.ResetDeadReckoning(context.Background(), 0))

	require.False(t, ok)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestController_FIFOMatching(t *testing.T) {
	controller, transport := startController(t, Config{})

	first := controller.TriggerPing(context.Background(), time.Second)
	second := controller.TriggerPing(context.Background(), time.Second)

	transport.inject(replyLine(CommandTriggerPing, true, ""))
	transport.inject(replyLine(CommandTriggerPing, false, "ping queue full"))

	resp, ok := waitFuture(t, first)
	require.True(t, ok)
	require.True(t, resp.Success)

	resp, ok = waitFuture(t, second)
	require.True(t, ok)
	require.False(t, resp.Success)
	require.Equal(t, "ping queue full", resp.ErrorMessage)
}

func TestController_CrossTypeIndependence(t *testing.T) {
	controller, transport := startController(t, Config{})

	ping := controller.TriggerPing(context.Background(), time.Second)
	calibrate := controller.CalibrateGyro(context.Background(), time.Second)

	transport.inject(replyLine(CommandCalibrateGyro, true, ""))

	resp, ok := waitFuture(t, calibrate)
	require.True(t, ok)
	require.True(t, resp.Success)

	requirePending(t, ping)
	require.Equal(t, 1, controller.Pending())

	transport.inject(replyLine(CommandTriggerPing, true, ""))

	_, ok = waitFuture(t, ping)
	require.True(t, ok)
}

func TestController_TimeoutDoesNotDisturbQueueOrder(t *testing.T) {
	controller, transport := startController(t, Config{})

	// The short-lived request sits between two long-lived ones.
	first := controller.TriggerPing(context.Background(), time.Second)
	short := controller.TriggerPing(context.Background(), 30*time.Millisecond)
	last := controller.TriggerPing(context.Background(), time.Second)

	_, ok := waitFuture(t, short)
	require.False(t, ok)
	requirePending(t, first)
	requirePending(t, last)

	transport.inject(replyLine(CommandTriggerPing, true, ""))
	transport.inject(replyLine(CommandTriggerPing, false, "second"))

	resp, ok := waitFuture(t, first)
	require.True(t, ok)
	require.True(t, resp.Success)

	resp, ok = waitFuture(t, last)
	require.True(t, ok)
	require.Equal(t, "second", resp.ErrorMessage)
}

func TestController_NoLostCompletions(t *testing.T) {
	controller, transport := startController(t, Config{})

	const numRequests = 50

	futures := make([]*Future, numRequests)

	var wg sync.WaitGroup

	for i := range numRequests {
		wg.Go(func() {
			futures[i] = controller.TriggerPing(context.Background(), 2*time.Second)
		})
	}

	wg.Wait()
	require.Equal(t, numRequests, controller.Pending())

	for range numRequests {
		transport.inject(replyLine(CommandTriggerPing, true, ""))
	}

	answered := 0

	for _, f := range futures {
		resp, ok := waitFuture(t, f)
		if ok && resp.Success {
			answered++
		}
	}

	require.Equal(t, numRequests, answered)
	require.Equal(t, 0, controller.Pending())
}

func TestController_ReplyTimeoutRace(t *testing.T) {
	// A reply and an expiry arriving together must complete the request
	// exactly once; a second completion would panic on the closed channel.
	// Run with: go test -race -count=20 -run TestController_ReplyTimeoutRace
	controller, transport := startController(t, Config{SweepInterval: time.Millisecond})

	for range 100 {
		future := controller.CalibrateGyro(context.Background(), time.Millisecond)

		time.Sleep(500 * time.Microsecond)
		transport.inject(replyLine(CommandCalibrateGyro, true, ""))

		resp, ok := waitFuture(t, future)
		if ok {
			require.True(t, resp.Success)
		}
	}

	require.Eventually(t, func() bool {
		return controller.Pending() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestController_UnmatchedReplyDiscarded(t *testing.T) {
	m := metrics.New()
	controller, transport := startController(t, Config{Metrics: m})

	transport.inject(replyLine(CommandResetDeadReckoning, true, ""))

	future := controller.ResetDeadReckoning(context.Background(), time.Second)
	transport.inject(replyLine(CommandResetDeadReckoning, false, "not running"))

	resp, ok := waitFuture(t, future)
	require.True(t, ok)
	require.Equal(t, "not running", resp.ErrorMessage, "the stale reply must not satisfy a later request")
	require.InDelta(t, 1, testutil.ToFloat64(m.Anomalies.WithLabelValues(metrics.AnomalyUnmatchedReply)), 0)
}

func TestController_MalformedLinesSkipped(t *testing.T) {
	m := metrics.New()
	controller, transport := startController(t, Config{Metrics: m})

	future := controller.CalibrateGyro(context.Background(), time.Second)

	transport.inject(`{"response_to": "calibrate_gyro", "success": tr`)
	transport.inject(`not json at all`)
	transport.inject(`{"type":"heartbeat"}`)
	transport.inject(replyLine(CommandCalibrateGyro, true, ""))

	resp, ok := waitFuture(t, future)
	require.True(t, ok)
	require.True(t, resp.Success)

	require.InDelta(t, 2, testutil.ToFloat64(m.Anomalies.WithLabelValues(metrics.AnomalyMalformed)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.Anomalies.WithLabelValues(metrics.AnomalyUnknownType)), 0)
}

func TestController_SendFailureResolvesImmediately(t *testing.T) {
	controller, transport := startController(t, Config{})

	sendErr := errors.New("broken pipe")
	transport.setSendErr(sendErr)

	future := controller.TriggerPing(context.Background(), time.Minute)

	select {
	case <-future.Done():
	default:
		t.Fatal("future should resolve before Issue returns")
	}

	resp, ok := future.Result()
	require.True(t, ok)
	require.False(t, resp.Success)
	require.ErrorIs(t, resp.Err, sendErr)
	require.Contains(t, resp.ErrorMessage, "broken pipe")
	require.Equal(t, 0, controller.Pending())
}

func TestController_QueueDepth(t *testing.T) {
	controller, _ := startController(t, Config{MaxQueueDepth: 2})

	first := controller.TriggerPing(context.Background(), time.Second)
	second := controller.TriggerPing(context.Background(), time.Second)
	third := controller.TriggerPing(context.Background(), time.Second)

	resp, ok := third.Result()
	require.True(t, ok)
	require.False(t, resp.Success)
	require.ErrorIs(t, resp.Err, dvlerrors.ErrQueueFull)

	requirePending(t, first)
	requirePending(t, second)

	// The cap is per command type.
	other := controller.CalibrateGyro(context.Background(), time.Second)
	requirePending(t, other)
}

func TestController_DisconnectDrainsAllPending(t *testing.T) {
	controller, transport := startController(t, Config{})

	futures := []*Future{
		controller.CalibrateGyro(context.Background(), time.Minute),
		controller.TriggerPing(context.Background(), time.Minute),
		controller.TriggerPing(context.Background(), time.Minute),
		controller.SetConfig(context.Background(), `{"acoustic_enabled": false}`, time.Minute),
	}

	readErr := errors.New("connection reset by peer")
	transport.errs <- readErr

	for _, f := range futures {
		resp, ok := waitFuture(t, f)
		require.True(t, ok)
		require.False(t, resp.Success)
		require.ErrorIs(t, resp.Err, dvlerrors.ErrConnectionLost)
		require.ErrorIs(t, resp.Err, readErr)
	}

	<-controller.Done()
	require.ErrorIs(t, controller.FatalError(), dvlerrors.ErrConnectionLost)
	require.ErrorIs(t, controller.Wait(), dvlerrors.ErrConnectionLost)

	// Commands after the disconnect fail straight away.
	late := controller.GetConfig(context.Background(), time.Minute)
	resp, ok := late.Result()
	require.True(t, ok)
	require.ErrorIs(t, resp.Err, dvlerrors.ErrConnectionLost)
}

func TestController_PeerCloseDrainsPending(t *testing.T) {
	controller, transport := startController(t, Config{})

	future := controller.CalibrateGyro(context.Background(), time.Minute)

	close(transport.lines)
	close(transport.errs)

	resp, ok := waitFuture(t, future)
	require.True(t, ok)
	require.ErrorIs(t, resp.Err, dvlerrors.ErrConnectionLost)
}

func TestController_StopFailsPending(t *testing.T) {
	transport := newMockTransport()
	controller := NewController(slog.Default(), transport, Config{})
	require.NoError(t, controller.Start(context.Background()))

	future := controller.TriggerPing(context.Background(), time.Minute)

	controller.Stop()

	resp, ok := waitFuture(t, future)
	require.True(t, ok)
	require.ErrorIs(t, resp.Err, dvlerrors.ErrControllerStopped)
}

func TestController_ContextCancelStops(t *testing.T) {
	transport := newMockTransport()
	controller := NewController(slog.Default(), transport, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, controller.Start(ctx))

	defer controller.Stop()

	future := controller.TriggerPing(context.Background(), time.Minute)

	cancel()

	resp, ok := waitFuture(t, future)
	require.True(t, ok)
	require.ErrorIs(t, resp.Err, dvlerrors.ErrControllerStopped)

	select {
	case <-controller.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel should be closed")
	}
}

func TestController_ReportWithoutCallbackDropped(t *testing.T) {
	controller, transport := startController(t, Config{})

	transport.inject(velocityLine(0.5))
	transport.inject(deadReckoningLine)

	// The loop is still alive and serving replies.
	future := controller.CalibrateGyro(context.Background(), time.Second)
	transport.inject(replyLine(CommandCalibrateGyro, true, ""))

	_, ok := waitFuture(t, future)
	require.True(t, ok)
}

func TestController_ReportsRouted(t *testing.T) {
	m := metrics.New()
	controller, transport := startController(t, Config{Metrics: m})

	velocities := make(chan report.VelocityReport, 1)
	poses := make(chan report.DeadReckoningReport, 1)

	controller.AttachVelocityCallback(func(r report.VelocityReport) { velocities <- r })
	controller.AttachDeadReckoningCallback(func(r report.DeadReckoningReport) { poses <- r })

	transport.inject(velocityLine(0.25))
	transport.inject(deadReckoningLine)

	select {
	case r := <-velocities:
		assert.InDelta(t, 0.25, r.Vx, 1e-9)
		assert.True(t, r.VelocityValid)
	case <-time.After(time.Second):
		t.Fatal("velocity report not delivered")
	}

	select {
	case r := <-poses:
		assert.InDelta(t, 12.43, r.X, 1e-9)
		assert.InDelta(t, 65.12, r.Yaw, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("dead reckoning report not delivered")
	}

	require.InDelta(t, 1, testutil.ToFloat64(m.ReportsReceived.WithLabelValues(report.TypeVelocity)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.ReportsReceived.WithLabelValues(report.TypeDeadReckoning)), 0)
}

func TestController_VelocityCallbackHotSwap(t *testing.T) {
	controller, transport := startController(t, Config{})

	first := make(chan report.VelocityReport, 4)
	second := make(chan report.VelocityReport, 4)

	controller.AttachVelocityCallback(func(r report.VelocityReport) { first <- r })
	transport.inject(velocityLine(1))

	select {
	case r := <-first:
		require.InDelta(t, 1.0, r.Vx, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("first callback not invoked")
	}

	controller.AttachVelocityCallback(func(r report.VelocityReport) { second <- r })
	transport.inject(velocityLine(2))

	select {
	case r := <-second:
		require.InDelta(t, 2.0, r.Vx, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("second callback not invoked")
	}

	require.Empty(t, first, "replaced callback must not see later reports")
	require.Empty(t, second, "new callback must not see earlier reports")
}

func TestController_DetachCallback(t *testing.T) {
	controller, transport := startController(t, Config{})

	var calls atomic.Int32

	controller.AttachDeadReckoningCallback(func(report.DeadReckoningReport) { calls.Add(1) })
	controller.AttachDeadReckoningCallback(nil)

	transport.inject(deadReckoningLine)

	future := controller.CalibrateGyro(context.Background(), time.Second)
	transport.inject(replyLine(CommandCalibrateGyro, true, ""))
	waitFuture(t, future)

	require.Equal(t, int32(0), calls.Load())
}

func TestController_SetFatalError_ConcurrentWithStop(t *testing.T) {
	// This test verifies no panic occurs when SetFatalError and Stop race.
	// Run with: go test -race -count=100
	for range 100 {
		transport := newMockTransport()
		controller := NewController(slog.Default(), transport, Config{})

		require.NoError(t, controller.Start(context.Background()))

		var wg sync.WaitGroup

		wg.Go(func() {
			controller.SetFatalError(errors.New("transport error"))
		})

		wg.Go(func() {
			controller.Stop()
		})

		wg.Wait()

		select {
		case <-controller.Done():
		default:
			t.Fatal("done channel should be closed")
		}
	}
}

func TestController_SetFatalError_MultipleCalls(t *testing.T) {
	controller, _ := startController(t, Config{})

	controller.SetFatalError(errors.New("first error"))
	require.EqualError(t, controller.FatalError(), "first error")

	controller.SetFatalError(errors.New("second error"))
	require.EqualError(t, controller.FatalError(), "first error")
}

func TestController_Stop_MultipleCalls(t *testing.T) {
	transport := newMockTransport()
	controller := NewController(slog.Default(), transport, Config{})

	require.NoError(t, controller.Start(context.Background()))

	controller.Stop()
	controller.Stop()
	controller.Stop()

	select {
	case <-controller.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestController_Metrics(t *testing.T) {
	m := metrics.New()
	controller, transport := startController(t, Config{Metrics: m})

	answered := controller.CalibrateGyro(context.Background(), time.Second)
	transport.inject(replyLine(CommandCalibrateGyro, true, ""))
	waitFuture(t, answered)

	expired := controller.TriggerPing(context.Background(), 20*time.Millisecond)
	waitFuture(t, expired)

	require.InDelta(t, 0, testutil.ToFloat64(m.PendingRequests), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.CommandsCompleted.WithLabelValues(CommandCalibrateGyro, metrics.OutcomeSuccess)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.CommandsCompleted.WithLabelValues(CommandTriggerPing, metrics.OutcomeTimeout)), 0)
}

// logBuffer collects log output written from the controller's goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestController_UnknownTypeLoggedAtWarn(t *testing.T) {
	var logs logBuffer

	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	transport := newMockTransport()
	controller := NewController(log, transport, Config{SweepInterval: 10 * time.Millisecond})
	require.NoError(t, controller.Start(context.Background()))
	t.Cleanup(controller.Stop)

	future := controller.TriggerPing(context.Background(), time.Second)

	transport.inject(`{"type":"heartbeat"}`)
	transport.inject(replyLine(CommandTriggerPing, true, ""))

	_, ok := waitFuture(t, future)
	require.True(t, ok)

	out := logs.String()
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, "Skipping line of unknown type")
}

func TestController_StopFromCallback(t *testing.T) {
	controller, transport := startController(t, Config{})

	pending := controller.GetConfig(context.Background(), time.Minute)

	stopped := make(chan struct{})

	var reports atomic.Int32

	controller.AttachVelocityCallback(func(report.VelocityReport) {
		if reports.Add(1) == 2 {
			controller.Stop()
			close(stopped)
		}
	})

	for i := range 3 {
		transport.inject(velocityLine(float64(i)))
	}

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop called from a callback did not return")
	}

	resp, ok := waitFuture(t, pending)
	require.True(t, ok)
	require.ErrorIs(t, resp.Err, dvlerrors.ErrControllerStopped)

	require.NoError(t, controller.Wait())

	select {
	case <-controller.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}
