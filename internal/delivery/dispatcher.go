package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrQueueFull is returned by Submit when no slot frees up within the
	// enqueue timeout.
	ErrQueueFull = errors.New("dispatch queue full")
	// ErrDispatcherStopped is returned by Submit after Stop.
	ErrDispatcherStopped = errors.New("dispatcher stopped")
)

// Sender hands a message to the mail system. Wrap an error with
// backoff.Permanent to stop retries.
type Sender interface {
	Send(ctx context.Context, m *Message) error
}

// DispatcherConfig sizes the pool and its retry policy.
type DispatcherConfig struct {
	Workers        int
	QueueSize      int
	MaxAttempts    int
	EnqueueTimeout time.Duration
	SendTimeout    time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = 100 * time.Millisecond
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	return c
}

type DispatcherOption func(*Dispatcher)

// WithArchive stores the HTML of every sent message.
func WithArchive(a Archive) DispatcherOption {
	return func(d *Dispatcher) { d.archive = a }
}

func WithDispatchMetrics(m *DispatchMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher sends messages from a bounded queue on a fixed set of workers,
// retrying each with exponential backoff. Outcomes are logged and counted;
// nothing is reported back to the submitter.
type Dispatcher struct {
	sender  Sender
	archive Archive
	cfg     DispatcherConfig
	logger  *slog.Logger
	metrics *DispatchMetrics

	queue     chan *Message
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once

	// mu orders Submit's enqueue against Stop so that nothing lands in the
	// queue after the workers have drained it.
	mu     sync.RWMutex
	closed atomic.Bool
}

func NewDispatcher(sender Sender, cfg DispatcherConfig, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		sender: sender,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan *Message, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = NewDispatchMetrics(nil)
	}
	return d
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.logger.Info("starting dispatcher",
			slog.Int("workers", d.cfg.Workers),
			slog.Int("queue", d.cfg.QueueSize),
		)
		for i := 0; i < d.cfg.Workers; i++ {
			d.wg.Add(1)
			go d.worker(i)
		}
	})
}

// Stop refuses new submissions, lets the workers drain what is queued and
// waits for them. On a dispatcher that was never started the queue is
// drained on the calling goroutine instead. Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed.CompareAndSwap(false, true) {
		d.mu.Unlock()
		return
	}
	close(d.done)
	d.mu.Unlock()

	// Claiming startOnce here keeps a late Start from spawning workers.
	started := true
	d.startOnce.Do(func() { started = false })

	pending := len(d.queue)
	d.logger.Info("stopping dispatcher", slog.Int("pending", pending), slog.Bool("started", started))
	if started {
		d.wg.Wait()
		return
	}

	if pending > 0 {
		d.logger.Warn("dispatcher stopped before start, draining inline", slog.Int("pending", pending))
	}
	for {
		select {
		case m := <-d.queue:
			d.process(m)
		default:
			return
		}
	}
}

// Submit enqueues m. It waits at most EnqueueTimeout for a free slot.
func (d *Dispatcher) Submit(ctx context.Context, m *Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed.Load() {
		d.metrics.submissions.WithLabelValues("stopped").Inc()
		return ErrDispatcherStopped
	}

	select {
	case d.queue <- m:
		d.accepted()
		return nil
	default:
	}

	timer := time.NewTimer(d.cfg.EnqueueTimeout)
	defer timer.Stop()
	select {
	case d.queue <- m:
		d.accepted()
		return nil
	case <-timer.C:
		d.metrics.submissions.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) accepted() {
	d.metrics.submissions.WithLabelValues("accepted").Inc()
	d.metrics.queueDepth.Set(float64(len(d.queue)))
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case m := <-d.queue:
			d.process(m)
		case <-d.done:
			for {
				select {
				case m := <-d.queue:
					d.process(m)
				default:
					d.logger.Debug("dispatch worker exiting", slog.Int("worker", id))
					return
				}
			}
		}
	}
}

// process sends m until it succeeds, fails permanently or runs out of
// attempts. Once Stop has been called a failed message is not retried.
func (d *Dispatcher) process(m *Message) {
	d.metrics.queueDepth.Set(float64(len(d.queue)))
	log := d.logger.With(slog.String("log_id", m.LogID), slog.String("to", m.To))
	start := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialBackoff
	b.Multiplier = 2
	b.MaxInterval = d.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for attempt := 1; ; attempt++ {
		err := d.send(m)
		if err == nil {
			d.metrics.sends.WithLabelValues("sent").Inc()
			d.metrics.duration.Observe(time.Since(start).Seconds())
			log.Info("briefing sent", slog.Int("attempt", attempt))
			d.archiveMessage(m, log)
			return
		}

		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) || attempt >= d.cfg.MaxAttempts {
			d.metrics.sends.WithLabelValues("failed").Inc()
			d.metrics.duration.Observe(time.Since(start).Seconds())
			log.Error("briefing send failed", slog.Int("attempt", attempt), slog.String("error", err.Error()))
			return
		}

		wait := b.NextBackOff()
		log.Warn("briefing send failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
		select {
		case <-time.After(wait):
		case <-d.done:
			d.metrics.sends.WithLabelValues("abandoned").Inc()
			log.Error("briefing send abandoned on shutdown", slog.Int("attempt", attempt))
			return
		}
	}
}

func (d *Dispatcher) send(m *Message) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panicked: %v", r)
		}
	}()
	return d.sender.Send(ctx, m)
}

// archiveMessage failures are logged only; the message has already gone out.
func (d *Dispatcher) archiveMessage(m *Message, log *slog.Logger) {
	if d.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	body := []byte(m.HTML)
	key := BriefingKey(m)
	if err := d.archive.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "text/html; charset=utf-8"); err != nil {
		log.Error("archiving briefing failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	log.Debug("briefing archived", slog.String("key", key))
}
