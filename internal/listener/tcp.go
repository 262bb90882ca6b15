package listener

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"thermo-bridge/internal/dispatcher"
)

// TCPListener accepts NDJSON stream connections. Each connection gets its
// own goroutine and line buffer; a partial line is held until its newline
// arrives. An invalid line is skipped, never fatal for the connection.
// There is no protocol-level ack: delivery confirmation is TCP's job.
type TCPListener struct {
	bind        string
	port        int
	idleTimeout time.Duration
	dispatcher  *dispatcher.Dispatcher
	logger      *zap.Logger

	mu       sync.Mutex
	ln       net.Listener
	conns    map[net.Conn]struct{}
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewTCPListener creates a stopped listener. idleTimeout zero disables
// the idle check.
func NewTCPListener(bind string, port int, idleTimeout time.Duration, d *dispatcher.Dispatcher, logger *zap.Logger) *TCPListener {
	return &TCPListener{
		bind:        bind,
		port:        port,
		idleTimeout: idleTimeout,
		dispatcher:  d,
		logger:      logger,
		conns:       make(map[net.Conn]struct{}),
	}
}

// Start binds the socket and launches the accept loop. Bind failure is
// the only fatal error.
func (l *TCPListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running.Load() {
		return nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", l.bind, l.port))
	if err != nil {
		return fmt.Errorf("failed to listen on TCP port %d: %w", l.port, err)
	}

	l.ln = ln
	l.running.Store(true)

	l.logger.Info("TCP listener started",
		zap.String("addr", ln.Addr().String()),
	)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.acceptLoop(ctx, ln)
	}()

	return nil
}

// Stop closes the listening socket and all open connections, then waits
// for the handlers up to the context deadline.
func (l *TCPListener) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running.Load() {
		l.mu.Unlock()
		return nil
	}
	l.running.Store(false)
	ln := l.ln
	l.ln = nil
	for conn := range l.conns {
		_ = conn.Close()
	}
	l.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("tcp listener stop: %w", ctx.Err())
	}

	l.logger.Info("TCP listener stopped", zap.Int("port", l.port))
	return nil
}

// Addr returns the bound address, or nil when stopped
func (l *TCPListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *TCPListener) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			l.logger.Warn("TCP accept error", zap.Error(err))
			continue
		}

		l.mu.Lock()
		if !l.running.Load() {
			l.mu.Unlock()
			_ = conn.Close()
			return
		}
		l.conns[conn] = struct{}{}
		l.mu.Unlock()

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleConn(ctx, conn)
		}()
	}
}

func (l *TCPListener) handleConn(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr().String()
	l.logger.Debug("Connection opened", zap.String("peer", peer))

	defer func() {
		_ = conn.Close()
		l.mu.Lock()
		delete(l.conns, conn)
		l.mu.Unlock()
		l.logger.Debug("Connection closed", zap.String("peer", peer))
	}()

	reader := bufio.NewReader(conn)
	for {
		if l.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(l.idleTimeout))
		}

		line, err := reader.ReadBytes('\n')
		if err == nil {
			l.handleLine(ctx, line)
		} else {
			// A line the peer never terminated is discarded, not decoded.
			if len(line) > 0 {
				l.logger.Debug("Discarding unterminated line",
					zap.String("peer", peer),
					zap.Int("bytes", len(line)),
				)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					l.logger.Debug("Closing idle connection", zap.String("peer", peer))
				} else {
					l.logger.Warn("Connection read error",
						zap.String("peer", peer),
						zap.Error(err),
					)
				}
			}
			return
		}
	}
}

// handleLine decodes one line; a bad line is dropped and processing
// continues with the next one.
func (l *TCPListener) handleLine(ctx context.Context, line []byte) {
	line = bytes.TrimRight(line, "\r\n")
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	m, err := l.dispatcher.Decode(line)
	if err != nil {
		return
	}
	l.dispatcher.Process(ctx, m)
}
