package listener

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"thermo-bridge/internal/codec"
	"thermo-bridge/internal/dispatcher"
	"thermo-bridge/internal/registry"
)

func startTCP(t *testing.T, idleTimeout time.Duration) (*TCPListener, *registry.Registry, net.Conn) {
	t.Helper()

	reg := registry.New(nil, zap.NewNop())
	d := dispatcher.New(codec.NDJSONCodec{}, reg, zap.NewNop())
	l := NewTCPListener("127.0.0.1", 0, idleTimeout, d, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, l.Start(ctx))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Stop(stopCtx)
	})

	addr := l.Addr()
	require.NotNil(t, addr)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return l, reg, conn
}

func TestTCPListener_InvalidLineDoesNotCloseConnection(t *testing.T) {
	_, reg, conn := startTCP(t, 0)

	_, err := conn.Write([]byte(`{"device":"ABC123","type":"ht","data":{"t":21.3,"h":45.6}}` + "\n"))
	require.NoError(t, err)
	_, err = conn.Write([]byte("this is not json\n"))
	require.NoError(t, err)
	_, err = conn.Write([]byte(`{"device":"DEF456","type":"ht","data":{"t":19.0}}` + "\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, okA := reg.Get("ABC123")
		_, okB := reg.Get("DEF456")
		return okA && okB
	}, 2*time.Second, 10*time.Millisecond)

	stA, _ := reg.Get("ABC123")
	assert.Equal(t, 21.3, stA.LastValues[codec.FieldTemperature])
	assert.Equal(t, 45.6, stA.LastValues[codec.FieldHumidity])
	stB, _ := reg.Get("DEF456")
	assert.Equal(t, 19.0, stB.LastValues[codec.FieldTemperature])
}

func TestTCPListener_PartialLineBufferedUntilComplete(t *testing.T) {
	_, reg, conn := startTCP(t, 0)

	_, err := conn.Write([]byte(`{"device":"ABC123","type":`))
	require.NoError(t, err)

	// Not yet a complete line: nothing should be registered.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, reg.List())

	_, err = conn.Write([]byte(`"ht","data":{"t":21.3}}` + "\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := reg.Get("ABC123")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTCPListener_UnterminatedLineDiscardedAtClose(t *testing.T) {
	_, reg, conn := startTCP(t, 0)

	// A syntactically complete record is still not a line without its
	// newline; closing the connection must not flush it downstream.
	_, err := conn.Write([]byte(`{"device":"ABC123","type":"ht","data":{"t":21.3}}`))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, reg.List())
}

func TestTCPListener_MultipleConnections(t *testing.T) {
	l, reg, conn1 := startTCP(t, 0)

	conn2, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn2.Close() })

	_, err = conn1.Write([]byte(`{"device":"AAA","type":"ht","data":{"t":1}}` + "\n"))
	require.NoError(t, err)
	_, err = conn2.Write([]byte(`{"device":"BBB","type":"ht","data":{"t":2}}` + "\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(reg.List()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTCPListener_IdleTimeoutClosesConnection(t *testing.T) {
	_, _, conn := startTCP(t, 200*time.Millisecond)

	buf := make([]byte, 1)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := conn.Read(buf)
	// Server closes the idle connection; the client sees EOF.
	require.Error(t, err)
}

func TestTCPListener_StopClosesOpenConnections(t *testing.T) {
	l, _, conn := startTCP(t, 0)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.Stop(stopCtx))

	buf := make([]byte, 1)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := conn.Read(buf)
	require.Error(t, err)
}
