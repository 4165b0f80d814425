package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"lotting_ledger/internal/logger"
	"lotting_ledger/internal/models"
)

var (
	ErrBufferFull = errors.New("progress buffer full")
	ErrClosed     = errors.New("progress channel closed")
)

type Sink interface {
	Publish(ctx context.Context, ev models.ProgressEvent) error
}

// DefaultTerminalWait bounds how long a complete or error event waits for
// buffer space.
const DefaultTerminalWait = 5 * time.Second

// Channel is a bounded ProgressNotifier. Events are forwarded to a Sink by
// Run. When the buffer is full progress events are dropped, while terminal
// events wait up to TerminalWait for Run to make room.
type Channel struct {
	TerminalWait time.Duration

	mu     sync.RWMutex
	ch     chan models.ProgressEvent
	closed bool
	log    *zap.Logger
}

func NewChannel(size int, log *zap.Logger) *Channel {
	if size <= 0 {
		size = 16
	}
	return &Channel{TerminalWait: DefaultTerminalWait, ch: make(chan models.ProgressEvent, size), log: logger.OrNop(log)}
}

func (c *Channel) Notify(ctx context.Context, ev models.ProgressEvent) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.ch <- ev:
		return nil
	default:
	}
	if !ev.Terminal() {
		return ErrBufferFull
	}

	t := time.NewTimer(c.TerminalWait)
	defer t.Stop()
	select {
	case c.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return ErrBufferFull
	}
}

// Close stops accepting events; Run drains what is buffered and returns.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Run forwards events to sink until the channel is closed or ctx ends.
// Sink failures are logged and do not stop forwarding.
func (c *Channel) Run(ctx context.Context, sink Sink) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.ch:
			if !ok {
				return
			}
			if err := sink.Publish(ctx, ev); err != nil {
				c.log.Warn("[PROGRESS][WARN] publish failed", zap.String("stage", string(ev.Stage)), zap.Error(err))
			}
		}
	}
}
