package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Message is a templated notification for one person, sent on every channel
// they have an address for.
type Message struct {
	TemplateID    string
	Data          map[string]string
	Email         string
	Phone         string
	AppointmentID string
}

// DefaultQueueSize bounds the Dispatcher queue when no size is given.
const DefaultQueueSize = 256

// Dispatcher sends messages on a background worker. Enqueue never blocks: when
// the queue is full the message is dropped and logged, so a slow provider
// cannot hold up appointment operations.
type Dispatcher struct {
	mgr     *Manager
	logger  zerolog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	queue  chan Message
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(mgr *Manager, size int, logger zerolog.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Dispatcher{
		mgr:     mgr,
		logger:  logger,
		timeout: 10 * time.Second,
		queue:   make(chan Message, size),
	}
}

// Start runs the worker until Close. ctx bounds individual sends.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for msg := range d.queue {
			d.send(ctx, msg)
		}
	}()
}

// Enqueue schedules msg and reports whether it was accepted.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn().
			Str("template", msg.TemplateID).
			Str("appointment_id", msg.AppointmentID).
			Msg("notification queue full, dropping message")
		return false
	}
}

// Close stops accepting messages and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, msg Message) {
	targets := []struct {
		ch Channel
		to string
	}{{ChannelEmail, msg.Email}, {ChannelSMS, msg.Phone}}

	for _, t := range targets {
		if t.to == "" {
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		_, err := d.mgr.sendTemplate(sendCtx, t.ch, msg.TemplateID, msg.Data, t.to, msg.AppointmentID)
		cancel()
		if err != nil {
			d.logger.Warn().Err(err).
				Str("channel", string(t.ch)).
				Str("template", msg.TemplateID).
				Str("appointment_id", msg.AppointmentID).
				Msg("notification failed")
		}
	}
}
