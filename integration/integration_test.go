//go:build integration

package integration

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	dvla50 "github.com/wagiedev/dvl-a50-sdk-go"
)

// skipIfNoDVL returns the address of a real DVL from DVL_ADDR, or skips.
func skipIfNoDVL(t *testing.T) string {
	t.Helper()

	addr := os.Getenv("DVL_ADDR")
	if addr == "" {
		t.Skip("DVL_ADDR not set")
	}

	return addr
}

// simulator speaks the DVL's JSON protocol on a loopback TCP port.
//
// It answers every command after replyDelay, except those in silent, and
// streams one velocity and one dead reckoning report per reportInterval.
type simulator struct {
	t        *testing.T
	listener net.Listener

	replyDelay     time.Duration
	reportInterval time.Duration

	mu       sync.Mutex
	conn     net.Conn
	silent   map[string]bool
	failures map[string]string
	received []string

	stop chan struct{}
	wg   sync.WaitGroup
}

func newSimulator(t *testing.T) *simulator {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &simulator{
		t:              t,
		listener:       listener,
		replyDelay:     5 * time.Millisecond,
		reportInterval: 20 * time.Millisecond,
		silent:         map[string]bool{},
		failures:       map[string]string{},
		stop:           make(chan struct{}),
	}

	s.wg.Go(s.accept)

	t.Cleanup(s.close)

	return s
}

// options points a driver at the simulator.
func (s *simulator) options() []dvla50.Option {
	host, portStr, err := net.SplitHostPort(s.listener.Addr().String())
	require.NoError(s.t, err)

	port, err := strconv.Atoi(portStr)
	require.NoError(s.t, err)

	return []dvla50.Option{
		dvla50.WithAddress(host),
		dvla50.WithPort(port),
		dvla50.WithDialTimeout(time.Second),
		dvla50.WithSweepInterval(10 * time.Millisecond),
	}
}

func (s *simulator) setSilent(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.silent[command] = true
}

func (s *simulator) setFailure(command, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[command] = message
}

func (s *simulator) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.received...)
}

// dropConnection closes the socket from the device side.
func (s *simulator) dropConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		_ = s.conn.Close()
	}
}

func (s *simulator) close() {
	close(s.stop)
	_ = s.listener.Close()
	s.dropConnection()
	s.wg.Wait()
}

func (s *simulator) accept() {
	conn, err := s.listener.Accept()
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.wg.Go(func() { s.stream(conn) })
	s.serve(conn)
}

func (s *simulator) serve(conn net.Conn) {
	scanner := bufio.NewScanner(conn)

	for scanner.Scan() {
		var cmd struct {
			Command string `json:"command"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			continue
		}

		s.mu.Lock()
		s.received = append(s.received, cmd.Command)
		silent := s.silent[cmd.Command]
		failure, failed := s.failures[cmd.Command]
		s.mu.Unlock()

		if silent {
			continue
		}

		reply := map[string]any{
			"type":          "response",
			"response_to":   cmd.Command,
			"success":       !failed,
			"error_message": failure,
			"result":        nil,
			"format":        "json_v3.1",
		}

		if cmd.Command == dvla50.CommandGetConfig && !failed {
			reply["result"] = map[string]any{
				"speed_of_sound":           1475,
				"acoustic_enabled":         true,
				"dark_mode_enabled":        false,
				"mounting_rotation_offset": 0,
				"range_mode":               "auto",
				"periodic_cycling_enabled": true,
			}
		}

		time.Sleep(s.replyDelay)
		s.write(conn, reply)
	}
}

func (s *simulator) stream(conn net.Conn) {
	ticker := time.NewTicker(s.reportInterval)
	defer ticker.Stop()

	var ts float64

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		ts += s.reportInterval.Seconds()

		velocity := map[string]any{
			"type": "velocity", "time": s.reportInterval.Seconds() * 1000,
			"vx": 0.12, "vy": -0.03, "vz": 0.001, "fom": 0.002,
			"altitude": 4.2, "velocity_valid": true, "status": 0,
			"time_of_validity": 1638191471563017, "time_of_transmission": 1638191471752336,
			"covariance": [3][3]float64{{1e-6, 0, 0}, {0, 1e-6, 0}, {0, 0, 1e-6}},
			"transducers": []map[string]any{
				{"id": 0, "velocity": 0.1, "distance": 4.3, "rssi": -30.5, "nsd": -90.1, "beam_valid": true},
				{"id": 1, "velocity": 0.1, "distance": 4.2, "rssi": -31.0, "nsd": -89.8, "beam_valid": true},
				{"id": 2, "velocity": 0.1, "distance": 4.1, "rssi": -30.9, "nsd": -90.4, "beam_valid": true},
				{"id": 3, "velocity": 0.1, "distance": 4.2, "rssi": -30.2, "nsd": -90.0, "beam_valid": true},
			},
			"format": "json_v3.1",
		}

		position := map[string]any{
			"type": "position_local", "ts": ts,
			"x": ts * 0.12, "y": ts * -0.03, "z": 0.0, "std": 0.01,
			"roll": 0.5, "pitch": -0.2, "yaw": 90.0, "status": 0,
			"format": "json_v3.1",
		}

		if !s.write(conn, velocity) || !s.write(conn, position) {
			return
		}
	}
}

func (s *simulator) write(conn net.Conn, v any) bool {
	line, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("simulator: %v", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = conn.Write(append(line, '\n'))

	return err == nil
}

// startDriver connects a driver to the simulator.
func startDriver(t *testing.T, s *simulator, extra ...dvla50.Option) dvla50.Driver {
	t.Helper()

	driver := dvla50.NewDriver()

	opts := append(s.options(), extra...)
	require.NoError(t, driver.Start(t.Context(), opts...))

	t.Cleanup(func() { _ = driver.Close() })

	return driver
}
