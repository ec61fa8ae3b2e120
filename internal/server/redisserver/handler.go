package redisserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/memkv-go/internal/storage"
	"github.com/yndnr/memkv-go/internal/telemetry/metric"
)

// rateLimiter hands out one token bucket per client IP. A bucket lives while
// at least one connection from its IP is open.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
}

type bucket struct {
	*rate.Limiter
	conns int
}

func newRateLimiter(perSecond int) *rateLimiter {
	return &rateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   perSecond,
	}
}

func (rl *rateLimiter) acquire(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.conns++
}

func (rl *rateLimiter) release(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[ip]
	if !ok {
		return
	}
	if b.conns--; b.conns <= 0 {
		delete(rl.buckets, ip)
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	rl.mu.Unlock()
	return b.Allow()
}

// CommandHandler parses and executes commands against the key space.
type CommandHandler struct {
	store       storage.Storage
	logger      *slog.Logger
	metrics     *metric.Registry
	rateLimiter *rateLimiter
	now         func() time.Time
}

// NewCommandHandler creates a new CommandHandler. rateLimit is in commands per
// second per client IP; zero disables limiting.
func NewCommandHandler(store storage.Storage, rateLimit int, logger *slog.Logger, metrics *metric.Registry) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}

	var rl *rateLimiter
	if rateLimit > 0 {
		rl = newRateLimiter(rateLimit)
	}

	return &CommandHandler{
		store:       store,
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rl,
		now:         time.Now,
	}
}

func (h *CommandHandler) connOpened(conn *Conn) {
	if h.rateLimiter != nil {
		h.rateLimiter.acquire(conn.IP())
	}
}

func (h *CommandHandler) connClosed(conn *Conn) {
	if h.rateLimiter != nil {
		h.rateLimiter.release(conn.IP())
	}
}

// Handle runs one decoded frame and writes the reply to the connection buffer.
// Command failures become error replies; they never close the connection.
func (h *CommandHandler) Handle(ctx context.Context, conn *Conn, args []Entry) {
	start := time.Now()

	if h.rateLimiter != nil && !h.rateLimiter.allow(conn.IP()) {
		h.metrics.RecordCommand(commandLabel(args), "limited", time.Since(start))
		_, _ = conn.bw.WriteString(ErrorReply("ERR rate limit exceeded"))
		return
	}

	cmd, err := ParseCommand(args, h.now())
	if err != nil {
		h.metrics.RecordCommand(commandLabel(args), "error", time.Since(start))
		h.writeError(ctx, conn, err)
		return
	}

	reply, err := cmd.Execute(ctx, h.store)
	elapsed := time.Since(start)
	if err != nil {
		h.metrics.RecordCommand(cmd.Name(), "error", elapsed)
		h.writeError(ctx, conn, err)
		return
	}

	h.metrics.RecordCommand(cmd.Name(), "ok", elapsed)
	if h.logger.Enabled(ctx, slog.LevelDebug) {
		h.logger.DebugContext(ctx, "command executed",
			append([]any{"command", cmd.Name(), "elapsed", elapsed}, logAttrs(cmd)...)...)
	}
	_, _ = conn.bw.WriteString(reply)
}

// logAttrs returns the arguments worth logging for cmd. Values are masked
// by the logger unless redaction is off.
func logAttrs(cmd Command) []any {
	switch c := cmd.(type) {
	case Get:
		return []any{"key", c.Key}
	case Set:
		attrs := []any{"key", c.Key, "value", c.Value}
		if !c.Expiry.IsZero() {
			attrs = append(attrs, "expires_at", c.Expiry)
		}
		return attrs
	case Echo:
		return []any{"echo", strings.Join(c.Texts, " ")}
	case ConfigGet:
		return []any{"parameter", c.Key}
	case Keys:
		return []any{"pattern", c.Pattern}
	default:
		return nil
	}
}

func (h *CommandHandler) writeError(ctx context.Context, conn *Conn, err error) {
	var ce *CommandError
	if !errors.As(err, &ce) {
		ce = &CommandError{Reason: err.Error(), Err: err}
	}
	if errors.Is(err, storage.ErrStorageIO) {
		h.logger.WarnContext(ctx, "command failed", "error", err)
	} else {
		h.logger.DebugContext(ctx, "command rejected", "error", err)
	}
	_, _ = conn.bw.WriteString(ce.Reply())
}

var knownCommands = map[string]struct{}{
	"PING": {}, "ECHO": {}, "GET": {}, "SET": {}, "CONFIG": {}, "SAVE": {}, "KEYS": {},
}

// commandLabel bounds the metric label space: unknown names collapse to one
// value.
func commandLabel(args []Entry) string {
	if len(args) == 0 {
		return "unknown"
	}
	name, _ := args[0].AsText()
	if _, ok := knownCommands[name]; !ok {
		return "unknown"
	}
	return name
}

// hostOnly strips the port from a remote address.
func hostOnly(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
