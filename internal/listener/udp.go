package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"thermo-bridge/internal/codec"
	"thermo-bridge/internal/dispatcher"
)

const maxDatagramSize = 65536

// UDPListener receives measurement datagrams and answers every
// structurally valid one with a fresh time-sync ack. The ack is sent
// before downstream processing: client retry timers are sub-second, so
// ack latency must not depend on registry or event-sink latency.
// Malformed datagrams get no ack; the client's retry loop is the
// recovery mechanism.
type UDPListener struct {
	bind       string
	port       int
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	conn    *net.UDPConn
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewUDPListener creates a stopped listener
func NewUDPListener(bind string, port int, d *dispatcher.Dispatcher, logger *zap.Logger) *UDPListener {
	return &UDPListener{
		bind:       bind,
		port:       port,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}
}

// Start binds the socket and launches the read loop. Bind failure is the
// only fatal error. Start is idempotent while running.
func (l *UDPListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running.Load() {
		return nil
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", l.bind, l.port))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s:%d: %w", l.bind, l.port, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP port %d: %w", l.port, err)
	}

	l.conn = conn
	l.running.Store(true)

	l.logger.Info("UDP listener started",
		zap.String("addr", conn.LocalAddr().String()),
	)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.readLoop(ctx, conn)
	}()

	return nil
}

// Stop closes the socket, unblocking the read loop, and waits for
// in-flight work up to the context deadline. The listener can be started
// again afterwards.
func (l *UDPListener) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running.Load() {
		l.mu.Unlock()
		return nil
	}
	l.running.Store(false)
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("udp listener stop: %w", ctx.Err())
	}

	l.logger.Info("UDP listener stopped", zap.Int("port", l.port))
	return nil
}

// Addr returns the bound address, or nil when stopped. Useful with port 0.
func (l *UDPListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

func (l *UDPListener) readLoop(ctx context.Context, conn *net.UDPConn) {
	buf := make([]byte, maxDatagramSize)

	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			l.logger.Warn("UDP read error", zap.Error(err))
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		l.handleDatagram(ctx, conn, data, peer)
	}
}

// handleDatagram decodes, acks, then hands off downstream. Decoding is
// pure and fast; the registry/event work runs in its own goroutine so a
// slow event sink cannot delay acks for other senders.
func (l *UDPListener) handleDatagram(ctx context.Context, conn *net.UDPConn, data []byte, peer *net.UDPAddr) {
	m, err := l.dispatcher.Decode(data)
	if err != nil {
		// Silent drop. The client will retry; that is load-bearing.
		return
	}

	if _, err := conn.WriteToUDP(codec.EncodeAck(l.now()), peer); err != nil {
		l.logger.Warn("Failed to send ack",
			zap.String("peer", peer.String()),
			zap.Error(err),
		)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.dispatcher.Process(ctx, m)
	}()
}
