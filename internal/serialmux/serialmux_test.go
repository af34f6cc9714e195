package serialmux

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		require.True(t, ok, "channel closed")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for line")
		return ""
	}
}

func TestSerialMux_MonitorFansOut(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddReadData([]byte("{\"ts_ms\":1,\"users\":[]}\r\n\nOK\n"))

	assert.Equal(t, `{"ts_ms":1,"users":[]}`, recv(t, a))
	assert.Equal(t, `{"ts_ms":1,"users":[]}`, recv(t, b))
	assert.Equal(t, "OK", recv(t, a))
	assert.Equal(t, "OK", recv(t, b))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	assert.Equal(t, uint64(2), mux.Stats().Lines)
}

func TestSerialMux_MonitorEOF(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	port.AddReadData([]byte("OK\n"))
	port.EndOfInput()

	err := mux.Monitor(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), mux.Stats().Lines)
}

func TestSerialMux_SlowSubscriberDrops(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString("OK\n")
	}
	port.AddReadData([]byte(sb.String()))
	port.EndOfInput()

	require.NoError(t, mux.Monitor(context.Background()))
	st := mux.Stats()
	assert.Equal(t, uint64(100), st.Lines)
	assert.Equal(t, uint64(100-cap(ch)), st.Dropped)
	assert.Len(t, ch, cap(ch))
}

func TestSerialMux_SendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.SendCommand("STREAM JSON"))
	require.NoError(t, mux.SendCommand("START\n"))
	assert.Equal(t, "STREAM JSON\nSTART\n", port.Written())

	port.WriteError = errors.New("unplugged")
	assert.EqualError(t, mux.SendCommand("X"), "unplugged")

	port.ShortWrite = true
	assert.ErrorIs(t, mux.SendCommand("X"), ErrWriteFailed)
}

func TestSerialMux_Initialize(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	mux.SetJoints([]string{"head", "left_hand"})

	require.NoError(t, mux.Initialize())
	written := port.Written()
	assert.True(t, strings.HasPrefix(written, "RESET\nSYNC "))
	assert.Contains(t, written, "STREAM JSON\n")
	assert.Contains(t, written, "JOINTS head,left_hand\n")
	assert.True(t, strings.HasSuffix(written, "START\n"))

	port.WriteError = errors.New("gone")
	assert.ErrorContains(t, mux.Initialize(), `"RESET"`)
}

func TestStartCommands(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	cmds := StartCommands(now, nil)
	assert.Equal(t, []string{
		"RESET",
		"SYNC 1700000000123",
		"STREAM JSON",
		"USERS ON",
		"JOINTS ALL",
		"START",
	}, cmds)
}

func TestSerialMux_Close(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	id, ch := mux.Subscribe()

	require.NoError(t, mux.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.True(t, port.Closed())

	// Unsubscribe after close and a second Close are both harmless.
	mux.Unsubscribe(id)
	assert.NoError(t, mux.Close())

	_, late := mux.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestNewSerialMuxWith(t *testing.T) {
	port := NewTestableSerialPort()
	var gotPath string
	var gotOpts PortOptions
	opener := func(path string, opts PortOptions) (SerialPorter, error) {
		gotPath, gotOpts = path, opts
		return port, nil
	}

	mux, err := NewSerialMuxWith(opener, "/dev/ttyUSB0", PortOptions{BaudRate: 57600})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", gotPath)
	assert.Equal(t, 57600, gotOpts.BaudRate)

	require.NoError(t, mux.SendCommand("PING"))
	assert.Equal(t, "PING\n", port.Written())

	failing := func(string, PortOptions) (SerialPorter, error) { return nil, errors.New("busy") }
	_, err = NewSerialMuxWith(failing, "/dev/ttyUSB1", PortOptions{})
	assert.EqualError(t, err, "busy")
}
