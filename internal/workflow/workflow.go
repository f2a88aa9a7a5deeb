// Package workflow runs the analysis workers concurrently over one context
// snapshot and hands their joined output to a single synthesis worker.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/life-tracker/internal/snapshot"
)

// ErrAllWorkersFailed is returned when no analysis worker produced output.
var ErrAllWorkersFailed = errors.New("workflow: every analysis worker failed")

// Worker turns an input text into an output text.
type Worker interface {
	Name() string
	Run(ctx context.Context, input string) (string, error)
}

// State is the position of a single run in the workflow state machine.
type State int

const (
	StateIdle State = iota
	StateFanOut
	StateJoined
	StateSynthesizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFanOut:
		return "fan_out"
	case StateJoined:
		return "joined"
	case StateSynthesizing:
		return "synthesizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Section is one analysis worker's contribution to the synthesis input.
type Section struct {
	Worker string
	Output string
}

// WorkerFailure records an analysis worker that did not contribute.
type WorkerFailure struct {
	Worker string
	Err    error
}

// Verdict is the outcome of a successful run.
type Verdict struct {
	UserID   string
	Text     string
	Sections []Section
	Failures []WorkerFailure
	Duration time.Duration
}

// CompletionHook receives every verdict that reaches StateDone.
type CompletionHook func(ctx context.Context, v *Verdict)

// Observer is told about every state transition of every run.
type Observer func(userID string, s State)

type Option func(*Workflow)

func WithCompletionHook(h CompletionHook) Option {
	return func(w *Workflow) { w.hooks = append(w.hooks, h) }
}

// WithWorkerTimeout bounds every single worker call. Zero means no bound.
func WithWorkerTimeout(d time.Duration) Option {
	return func(w *Workflow) { w.workerTimeout = d }
}

func WithObserver(o Observer) Option {
	return func(w *Workflow) { w.observer = o }
}

func WithMetrics(m *Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// Workflow is safe for concurrent use; each Run keeps its own state.
type Workflow struct {
	analysts      []Worker
	judge         Worker
	hooks         []CompletionHook
	observer      Observer
	workerTimeout time.Duration
	metrics       *Metrics
	logger        *slog.Logger
}

func New(analysts []Worker, judge Worker, logger *slog.Logger, opts ...Option) (*Workflow, error) {
	if len(analysts) == 0 {
		return nil, errors.New("workflow: at least one analysis worker is required")
	}
	if judge == nil {
		return nil, errors.New("workflow: a synthesis worker is required")
	}
	w := &Workflow{
		analysts: analysts,
		judge:    judge,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.metrics == nil {
		w.metrics = NewMetrics(nil)
	}
	return w, nil
}

type outcome struct {
	output string
	err    error
}

// Run executes one full pass over snap. Analysis workers all receive the same
// input and are joined in declaration order, whatever order they finish in.
func (w *Workflow) Run(ctx context.Context, snap *snapshot.Snapshot) (*Verdict, error) {
	start := time.Now()
	userID := snap.User.ID
	input := snap.Text()

	w.transition(userID, StateFanOut)
	results := make([]outcome, len(w.analysts))
	var wg sync.WaitGroup
	for i, a := range w.analysts {
		wg.Add(1)
		go func(i int, a Worker) {
			defer wg.Done()
			out, err := w.call(ctx, a, input)
			results[i] = outcome{output: out, err: err}
		}(i, a)
	}
	wg.Wait()
	w.transition(userID, StateJoined)

	verdict := &Verdict{UserID: userID}
	var errs []error
	for i, r := range results {
		name := w.analysts[i].Name()
		if r.err != nil {
			w.logger.Warn("analysis worker failed", "user_id", userID, "worker", name, "error", r.err)
			verdict.Failures = append(verdict.Failures, WorkerFailure{Worker: name, Err: r.err})
			errs = append(errs, fmt.Errorf("%s: %w", name, r.err))
			continue
		}
		verdict.Sections = append(verdict.Sections, Section{Worker: name, Output: r.output})
	}
	if len(verdict.Sections) == 0 {
		return nil, w.fail(userID, start, fmt.Errorf("%w: %w", ErrAllWorkersFailed, errors.Join(errs...)))
	}

	w.transition(userID, StateSynthesizing)
	text, err := w.call(ctx, w.judge, SynthesisInput(input, verdict.Sections))
	if err != nil {
		return nil, w.fail(userID, start, fmt.Errorf("synthesis worker %s: %w", w.judge.Name(), err))
	}
	verdict.Text = text
	verdict.Duration = time.Since(start)

	w.transition(userID, StateDone)
	w.metrics.runs.WithLabelValues(StateDone.String()).Inc()
	w.metrics.duration.Observe(verdict.Duration.Seconds())
	w.logger.Info("workflow completed",
		"user_id", userID,
		"sections", len(verdict.Sections),
		"failures", len(verdict.Failures),
		"duration", verdict.Duration,
	)

	for _, h := range w.hooks {
		h(ctx, verdict)
	}
	return verdict, nil
}

// SynthesisInput is the text the synthesis worker receives: the shared context
// followed by every section, labeled by the worker that wrote it.
func SynthesisInput(shared string, sections []Section) string {
	var b strings.Builder
	b.WriteString(shared)
	for _, s := range sections {
		fmt.Fprintf(&b, "\n\n=== %s REPORT ===\n%s", strings.ToUpper(s.Worker), strings.TrimSpace(s.Output))
	}
	return b.String()
}

// call runs one worker with the per-worker timeout. A panic is reported as
// that worker's failure.
func (w *Workflow) call(ctx context.Context, wk Worker, input string) (out string, err error) {
	if w.workerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.workerTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panicked: %v", r)
		}
		if err != nil {
			w.metrics.workerFailures.WithLabelValues(wk.Name()).Inc()
		}
	}()

	out, err = wk.Run(ctx, input)
	if err == nil && strings.TrimSpace(out) == "" {
		err = errors.New("empty output")
	}
	return out, err
}

func (w *Workflow) fail(userID string, start time.Time, err error) error {
	w.transition(userID, StateFailed)
	w.metrics.runs.WithLabelValues(StateFailed.String()).Inc()
	w.metrics.duration.Observe(time.Since(start).Seconds())
	w.logger.Error("workflow failed", "user_id", userID, "error", err)
	return err
}

func (w *Workflow) transition(userID string, s State) {
	if w.observer != nil {
		w.observer(userID, s)
	}
}
