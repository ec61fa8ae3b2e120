package redisserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/memkv-go/internal/storage"
	"github.com/yndnr/memkv-go/internal/telemetry/logger"
	"github.com/yndnr/memkv-go/internal/telemetry/metric"
)

// Config holds the RESP server configuration.
type Config struct {
	// Address is the TCP listen address.
	Address string
	// ReadTimeout bounds reading one command once its first byte arrived (default: 30s).
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing a response (default: 30s).
	WriteTimeout time.Duration
	// IdleTimeout is the timeout for idle connections (default: 5m).
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per IP.
	// Set to 0 to disable rate limiting.
	RateLimit int
	// MaxClients caps concurrent connections. Set to 0 for no cap.
	MaxClients int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      "127.0.0.1:6379",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
	}
}

// Server accepts RESP connections and serves them from one key space.
type Server struct {
	cfg     *Config
	handler *CommandHandler
	logger  *slog.Logger
	metrics *metric.Registry

	ln      net.Listener
	running atomic.Bool
	clients atomic.Int64
	wg      sync.WaitGroup

	connsMu sync.Mutex
	conns   map[*Conn]struct{}
}

// Conn represents a single client connection.
type Conn struct {
	id      string
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer
	ip      string

	closed atomic.Bool
}

func newConn(c net.Conn) *Conn {
	return &Conn{
		id:      ulid.Make().String(),
		netConn: c,
		br:      bufio.NewReader(c),
		bw:      bufio.NewWriter(c),
		ip:      hostOnly(c.RemoteAddr()),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// IP returns the client host without port.
func (c *Conn) IP() string { return c.ip }

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// New creates a new RESP server over store.
func New(cfg *Config, store storage.Storage, log *slog.Logger, metrics *metric.Registry) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		cfg:     cfg,
		handler: NewCommandHandler(store, cfg.RateLimit, log, metrics),
		logger:  log,
		metrics: metrics,
		conns:   make(map[*Conn]struct{}),
	}
}

// Start binds the listen address and serves connections in the background.
// A bind failure is returned to the caller.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.ln = ln
	s.running.Store(true)
	s.logger.Info("redis server listening", "address", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
			s.logger.Error("redis server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting, closes open connections and waits for their
// goroutines to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}

	s.connsMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connsMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		conn := newConn(c)
		if limit := s.cfg.MaxClients; limit > 0 && s.clients.Load() >= int64(limit) {
			s.metrics.ConnRejected()
			s.logger.Warn("max clients reached, rejecting connection", "remote", conn.RemoteAddr())
			s.reject(conn, "ERR max number of clients reached")
			continue
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) track(c *Conn, open bool) {
	s.connsMu.Lock()
	if open {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
	s.connsMu.Unlock()

	if open {
		s.clients.Add(1)
		s.metrics.ConnOpened()
		s.handler.connOpened(c)
	} else {
		s.clients.Add(-1)
		s.metrics.ConnClosed()
		s.handler.connClosed(c)
	}
}

func (s *Server) reject(c *Conn, msg string) {
	_ = c.netConn.SetWriteDeadline(time.Now().Add(s.writeTimeout()))
	_, _ = c.bw.WriteString(ErrorReply(msg))
	_ = c.bw.Flush()
	_ = c.Close()
}

func (s *Server) writeTimeout() time.Duration {
	if s.cfg.WriteTimeout == 0 {
		return 30 * time.Second
	}
	return s.cfg.WriteTimeout
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	defer c.Close()

	ctx = logger.WithConnID(ctx, c.ID())
	log := s.logger
	log.DebugContext(ctx, "connection accepted", "remote", c.RemoteAddr().String())
	defer log.DebugContext(ctx, "connection closed")
	defer func() {
		if err := recover(); err != nil {
			log.ErrorContext(ctx, "panic recovered", "error", err, "stack", string(debug.Stack()))
		}
	}()

	readTimeout := s.cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := s.writeTimeout()
	idleTimeout := s.cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 5 * time.Minute
	}

	for {
		// First byte: allow idle timeout (connection can stay idle between commands).
		if err := c.netConn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.DebugContext(ctx, "connection idle timeout")
				return
			}
			log.DebugContext(ctx, "connection read error", "error", err)
			return
		}

		// After first byte: tighten to per-command read timeout.
		if err := c.netConn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		args, err := ReadCommand(c.br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.DebugContext(ctx, "connection timed out")
				return
			}
			s.metrics.IncProtocolErrors()
			_ = c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout))

			switch {
			case errors.Is(err, ErrEmptyCommand):
				// The frame was consumed whole; the stream is still in sync.
				_, _ = c.bw.WriteString(ErrorReply("ERR protocol error: empty command"))
				if err := c.bw.Flush(); err != nil {
					return
				}
				continue
			case errors.Is(err, ErrLimitExceeded):
				log.WarnContext(ctx, "protocol limit exceeded", "error", err)
				_, _ = c.bw.WriteString(ErrorReply("ERR protocol limit exceeded"))
			default:
				log.DebugContext(ctx, "protocol error", "error", err)
				_, _ = c.bw.WriteString(ErrorReply("ERR protocol error: " + protocolDetail(err)))
			}
			_ = c.bw.Flush()
			return
		}

		s.handler.Handle(ctx, c, args)

		if err := c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return
		}
		if err := c.bw.Flush(); err != nil {
			return
		}
	}
}

// protocolDetail strips the package prefix from a decoder error.
func protocolDetail(err error) string {
	msg := err.Error()
	prefix := ErrProtocol.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
