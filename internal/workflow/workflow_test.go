package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/snapshot"
)

// =========================================================================
// FAKE WORKERS
// =========================================================================

type fakeWorker struct {
	name  string
	delay time.Duration
	out   string
	err   error
	panic bool

	mu     sync.Mutex
	inputs []string
}

func (f *fakeWorker) Name() string { return f.name }

func (f *fakeWorker) Run(ctx context.Context, input string) (string, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()
	if f.panic {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.out, f.err
}

func (f *fakeWorker) lastInput() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return ""
	}
	return f.inputs[len(f.inputs)-1]
}

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		User:    model.User{ID: "u1", Email: "ada@example.com", Name: "Ada"},
		Profile: model.Document{"job": "engineer"},
		TakenAt: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorkflow(t *testing.T, analysts []Worker, judge Worker, opts ...Option) *Workflow {
	t.Helper()
	wf, err := New(analysts, judge, discardLogger(), opts...)
	require.NoError(t, err)
	return wf
}

// =========================================================================
// RUN
// =========================================================================

func TestRun_JoinsInDeclarationOrder(t *testing.T) {
	// The first analyst finishes last; the judge must still see it first.
	a := &fakeWorker{name: "Visionary", out: "far", delay: 40 * time.Millisecond}
	b := &fakeWorker{name: "Architect", out: "structure", delay: 10 * time.Millisecond}
	c := &fakeWorker{name: "Commander", out: "today"}
	judge := &fakeWorker{name: "Judge", out: "<li>do it</li><em>go</em>"}

	wf := newTestWorkflow(t, []Worker{a, b, c}, judge)
	v, err := wf.Run(context.Background(), testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, "<li>do it</li><em>go</em>", v.Text)
	assert.Equal(t, "u1", v.UserID)
	require.Len(t, v.Sections, 3)
	assert.Equal(t, []string{"Visionary", "Architect", "Commander"},
		[]string{v.Sections[0].Worker, v.Sections[1].Worker, v.Sections[2].Worker})

	in := judge.lastInput()
	iv := strings.Index(in, "=== VISIONARY REPORT ===\nfar")
	ia := strings.Index(in, "=== ARCHITECT REPORT ===\nstructure")
	ic := strings.Index(in, "=== COMMANDER REPORT ===\ntoday")
	require.True(t, iv >= 0 && ia >= 0 && ic >= 0, "judge input missing a section: %q", in)
	assert.True(t, iv < ia && ia < ic, "sections out of order: %q", in)
}

func TestRun_EveryAnalystSeesSameInput(t *testing.T) {
	a := &fakeWorker{name: "A", out: "1"}
	b := &fakeWorker{name: "B", out: "2"}
	judge := &fakeWorker{name: "J", out: "v"}

	snap := testSnapshot()
	wf := newTestWorkflow(t, []Worker{a, b}, judge)
	_, err := wf.Run(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, snap.Text(), a.lastInput())
	assert.Equal(t, snap.Text(), b.lastInput())
	assert.True(t, strings.HasPrefix(judge.lastInput(), snap.Text()))
}

func TestRun_RunsAnalystsConcurrently(t *testing.T) {
	var workers []Worker
	for _, n := range []string{"A", "B", "C"} {
		workers = append(workers, &fakeWorker{name: n, out: n, delay: 100 * time.Millisecond})
	}
	wf := newTestWorkflow(t, workers, &fakeWorker{name: "J", out: "v"})

	start := time.Now()
	_, err := wf.Run(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestRun_SingleFailureDegrades(t *testing.T) {
	tests := []struct {
		name   string
		broken *fakeWorker
	}{
		{"error", &fakeWorker{name: "B", err: errors.New("model down")}},
		{"panic", &fakeWorker{name: "B", panic: true}},
		{"empty output", &fakeWorker{name: "B", out: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeWorker{name: "A", out: "alpha"}
			c := &fakeWorker{name: "C", out: "gamma"}
			judge := &fakeWorker{name: "J", out: "verdict"}

			wf := newTestWorkflow(t, []Worker{a, tt.broken, c}, judge)
			v, err := wf.Run(context.Background(), testSnapshot())
			require.NoError(t, err)

			require.Len(t, v.Sections, 2)
			assert.Equal(t, "A", v.Sections[0].Worker)
			assert.Equal(t, "C", v.Sections[1].Worker)
			require.Len(t, v.Failures, 1)
			assert.Equal(t, "B", v.Failures[0].Worker)
			assert.NotContains(t, judge.lastInput(), "=== B REPORT ===")
		})
	}
}

func TestRun_TimeoutCountsAsFailure(t *testing.T) {
	slow := &fakeWorker{name: "Slow", out: "late", delay: time.Second}
	fast := &fakeWorker{name: "Fast", out: "ok"}
	judge := &fakeWorker{name: "J", out: "v"}

	wf := newTestWorkflow(t, []Worker{slow, fast}, judge, WithWorkerTimeout(20*time.Millisecond))
	v, err := wf.Run(context.Background(), testSnapshot())
	require.NoError(t, err)
	require.Len(t, v.Failures, 1)
	assert.ErrorIs(t, v.Failures[0].Err, context.DeadlineExceeded)
}

func TestRun_AllAnalystsFail(t *testing.T) {
	judge := &fakeWorker{name: "J", out: "v"}
	hookCalled := false
	wf := newTestWorkflow(t,
		[]Worker{
			&fakeWorker{name: "A", err: errors.New("x")},
			&fakeWorker{name: "B", err: errors.New("y")},
		},
		judge,
		WithCompletionHook(func(context.Context, *Verdict) { hookCalled = true }),
	)

	v, err := wf.Run(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.Nil(t, v)
	assert.ErrorIs(t, err, ErrAllWorkersFailed)
	assert.Empty(t, judge.inputs, "judge must not run")
	assert.False(t, hookCalled)
}

func TestRun_SynthesisFailureIsFatal(t *testing.T) {
	wf := newTestWorkflow(t,
		[]Worker{&fakeWorker{name: "A", out: "a"}},
		&fakeWorker{name: "J", err: errors.New("judge down")},
	)
	v, err := wf.Run(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.Nil(t, v)
	assert.Contains(t, err.Error(), "judge down")
}

func TestRun_StateTransitions(t *testing.T) {
	var mu sync.Mutex
	var seen []State
	observe := func(_ string, s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	}

	ok := newTestWorkflow(t,
		[]Worker{&fakeWorker{name: "A", out: "a"}},
		&fakeWorker{name: "J", out: "v"},
		WithObserver(observe),
	)
	_, err := ok.Run(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, []State{StateFanOut, StateJoined, StateSynthesizing, StateDone}, seen)

	seen = nil
	bad := newTestWorkflow(t,
		[]Worker{&fakeWorker{name: "A", err: errors.New("x")}},
		&fakeWorker{name: "J", out: "v"},
		WithObserver(observe),
	)
	_, err = bad.Run(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.Equal(t, []State{StateFanOut, StateJoined, StateFailed}, seen)
}

func TestRun_CompletionHookGetsVerdict(t *testing.T) {
	var got *Verdict
	var calls atomic.Int32
	wf := newTestWorkflow(t,
		[]Worker{&fakeWorker{name: "A", out: "a"}},
		&fakeWorker{name: "J", out: "final"},
		WithCompletionHook(func(_ context.Context, v *Verdict) {
			calls.Add(1)
			got = v
		}),
	)
	v, err := wf.Run(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Same(t, v, got)
}

func TestRun_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	wf := newTestWorkflow(t,
		[]Worker{&fakeWorker{name: "A", out: "a"}, &fakeWorker{name: "B", err: errors.New("x")}},
		&fakeWorker{name: "J", out: "v"},
		WithMetrics(m),
	)
	_, err := wf.Run(context.Background(), testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workerFailures.WithLabelValues("B")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.workerFailures.WithLabelValues("A")))
}

func TestNew_RequiresWorkers(t *testing.T) {
	_, err := New(nil, &fakeWorker{name: "J"}, discardLogger())
	assert.Error(t, err)
	_, err = New([]Worker{&fakeWorker{name: "A"}}, nil, discardLogger())
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "fan_out", StateFanOut.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
