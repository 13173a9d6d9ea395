package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwbudde/algo-acoustic/internal/log"
)

var (
	ErrClosed    = errors.New("queue: closed")
	ErrNilEvent  = errors.New("queue: nil event")
	ErrNilAction = errors.New("queue: nil command")
)

// Kind classifies a command.
type Kind uint8

const (
	KindCommit Kind = iota
	KindTrace
	KindEvent
	KindExport
)

func (k Kind) String() string {
	switch k {
	case KindCommit:
		return "commit"
	case KindTrace:
		return "trace"
	case KindEvent:
		return "event"
	case KindExport:
		return "export"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// State is the lifecycle state of a submitted command.
type State uint8

const (
	Queued State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Ticket identifies a submitted command. Tickets increase by one per
// submission, starting at 1.
type Ticket uint64

type command struct {
	ticket   Ticket
	kind     Kind
	run      func() error
	enqueued time.Time
}

// DefaultFailureHistory is the number of failed tickets whose errors are
// retained for State and Result.
const DefaultFailureHistory = 256

// Config holds queue construction parameters.
type Config struct {
	Name       string
	Registerer prometheus.Registerer
	// FailureHistory bounds the failed tickets kept for State and Result.
	FailureHistory int
}

// Option mutates a Config.
type Option func(*Config)

// WithName labels the queue's metrics and log lines.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithFailureHistory retains the errors of the last n failed tickets.
// Non-positive values keep the default.
func WithFailureHistory(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureHistory = n
		}
	}
}

// WithRegisterer registers the queue metrics with reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) {
		if reg != nil {
			c.Registerer = reg
		}
	}
}

// Queue is an unbounded FIFO drained by a single worker goroutine.
type Queue struct {
	logger  log.Logger
	metrics *metrics

	mu       sync.Mutex
	work     *sync.Cond
	progress *sync.Cond

	items     []command
	submitted Ticket
	completed Ticket
	running   Ticket
	failed    map[Ticket]error
	failOrder []Ticket
	maxFailed int
	firstErr  error
	closed    bool

	done chan struct{}
}

// New starts a queue worker.
func New(opts ...Option) *Queue {
	cfg := Config{Name: "default", FailureHistory: DefaultFailureHistory}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.NewRegistry()
	}

	q := &Queue{
		logger:    log.New("queue"),
		metrics:   newMetrics(cfg.Registerer, cfg.Name),
		failed:    make(map[Ticket]error),
		maxFailed: cfg.FailureHistory,
		done:      make(chan struct{}),
	}
	q.work = sync.NewCond(&q.mu)
	q.progress = sync.NewCond(&q.mu)

	go q.loop()
	return q
}

// Enqueue appends a command. It never blocks on the worker.
func (q *Queue) Enqueue(kind Kind, run func() error) (Ticket, error) {
	if run == nil {
		return 0, ErrNilAction
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, ErrClosed
	}
	q.submitted++
	q.items = append(q.items, command{ticket: q.submitted, kind: kind, run: run, enqueued: time.Now()})
	q.metrics.depth.Inc()
	q.work.Signal()
	return q.submitted, nil
}

// Record enqueues an event command that signals ev once every command
// submitted before it has completed.
func (q *Queue) Record(ev *Event) (Ticket, error) {
	if ev == nil {
		return 0, ErrNilEvent
	}
	return q.Enqueue(KindEvent, func() error {
		ev.Signal()
		return nil
	})
}

// Synchronize blocks until every command submitted before the call has
// completed. It returns the first command failure not yet reported.
func (q *Queue) Synchronize() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	target := q.submitted
	for q.completed < target {
		q.progress.Wait()
	}
	return q.takeErrLocked()
}

// Wait blocks until the command with ticket t has finished.
func (q *Queue) Wait(t Ticket) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.completed < t && t <= q.submitted {
		q.progress.Wait()
	}
}

// State reports the lifecycle state of ticket t. Unknown tickets report
// Queued. Failures older than the retained history report Completed.
func (q *Queue) State(t Ticket) State {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case t != 0 && t == q.running:
		return Running
	case t > q.completed:
		return Queued
	}
	if _, ok := q.failed[t]; ok {
		return Failed
	}
	return Completed
}

// Result returns the error of a failed ticket, or nil once the failure has
// aged out of the retained history.
func (q *Queue) Result(t Ticket) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failed[t]
}

// Err returns and clears the first failure since the last report.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.takeErrLocked()
}

func (q *Queue) takeErrLocked() error {
	err := q.firstErr
	q.firstErr = nil
	return err
}

// Pending returns the number of queued or running commands.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.submitted - q.completed)
}

// Completed returns the completion counter.
func (q *Queue) Completed() Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// Close stops accepting commands, drains the queue and stops the worker.
// It is safe to call more than once.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.work.Broadcast()
	}
	q.mu.Unlock()

	<-q.done
	return nil
}

func (q *Queue) loop() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.work.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		cmd := q.items[0]
		q.items[0] = command{}
		q.items = q.items[1:]
		q.running = cmd.ticket
		q.mu.Unlock()

		q.metrics.depth.Dec()
		start := time.Now()
		err := q.exec(cmd)
		q.metrics.observe(cmd.kind, err, time.Since(start))

		q.mu.Lock()
		q.running = 0
		q.completed = cmd.ticket
		if err != nil {
			q.recordFailureLocked(cmd.ticket, err)
			if q.firstErr == nil {
				q.firstErr = err
			}
		}
		q.progress.Broadcast()
		q.mu.Unlock()
	}
}

func (q *Queue) recordFailureLocked(t Ticket, err error) {
	q.failed[t] = err
	q.failOrder = append(q.failOrder, t)
	if len(q.failOrder) > q.maxFailed {
		delete(q.failed, q.failOrder[0])
		q.failOrder = q.failOrder[1:]
	}
}

func (q *Queue) exec(cmd command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: %s command %d panicked: %v", cmd.kind, cmd.ticket, r)
		}
		if err != nil {
			q.logger.Warningf("%s command %d failed: %v", cmd.kind, cmd.ticket, err)
		}
	}()

	q.logger.Debugf("running %s command %d (queued %s)", cmd.kind, cmd.ticket, time.Since(cmd.enqueued))
	return cmd.run()
}
