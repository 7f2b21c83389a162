package pipeline_test

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/gateway"
	"github.com/agentstation/infer/pkg/logging"
	"github.com/agentstation/infer/pkg/normalize"
	"github.com/agentstation/infer/pkg/pipeline"
	"github.com/agentstation/infer/pkg/pits"
	"github.com/agentstation/infer/pkg/query"
	"github.com/agentstation/infer/pkg/rules"
	"github.com/agentstation/infer/pkg/sinks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memory collects the streams of every dataset in buffers.
type memory struct {
	mu      sync.Mutex
	opened  map[string]int
	buffers map[string]*bytes.Buffer
}

func newMemory() *memory {
	return &memory{opened: map[string]int{}, buffers: map[string]*bytes.Buffer{}}
}

func (m *memory) factory(dataset string) (*sinks.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened[dataset]++
	stream := func(kind string) sinks.Sink {
		buf := &bytes.Buffer{}
		m.buffers[dataset+"."+kind] = buf
		return sinks.New(buf, dataset+"."+kind)
	}
	return &sinks.Set{
		Dataset:   dataset,
		Log:       stream("log"),
		Relations: stream("relations"),
		Errors:    stream("errors"),
	}, nil
}

func (m *memory) lines(dataset, kind string) []string {
	buf, ok := m.buffers[dataset+"."+kind]
	if !ok {
		return nil
	}
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func placeRule(overrideList ...rules.Override) *rules.Rule {
	return &rules.Rule{
		Types:        rules.Types{From: []string{"Place"}, To: "Place"},
		TextDistance: 1,
		Relation:     "sameAs",
		Override:     overrideList,
	}
}

func ruleSet(overrideList ...rules.Override) *rules.Set {
	set := rules.NewSet()
	set.Add("ref", placeRule(overrideList...))
	return set
}

// echo returns a candidate named after the query, or none for "nowhere".
func echo() gateway.Gateway {
	return gateway.Func(func(_ context.Context, _ string, req query.Request) ([]gateway.Candidate, error) {
		if req.TextQuery == "nowhere" {
			return nil, nil
		}
		return []gateway.Candidate{{ID: "b-" + strings.ToLower(req.TextQuery), Type: req.TargetType}}, nil
	})
}

func places(names ...string) *pipeline.SliceSource {
	src := make(pipeline.SliceSource, 0, len(names))
	for i, n := range names {
		src = append(src, pits.PIT{ID: fmt.Sprintf("a%d", i+1), Type: "Place", Name: n})
	}
	return &src
}

func quiet() pipeline.Option {
	return pipeline.WithLogger(logging.NewNopLogger())
}

func TestRunRelation(t *testing.T) {
	mem := newMemory()
	p, err := pipeline.New(ruleSet(), echo(), mem.factory, quiet())
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateIdle, p.State())

	summary, err := p.Run(context.Background(), places("Leiden"))
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateClosed, p.State())

	assert.Equal(t, []string{`{"from":"a1","to":"b-leiden","type":"sameAs"}`}, mem.lines("ref", "relations"))
	assert.Empty(t, mem.lines("ref", "errors"))
	require.Len(t, mem.lines("ref", "log"), 1)
	assert.Contains(t, mem.lines("ref", "log")[0], `"kind":"relation"`)

	assert.Equal(t, 1, summary.PITs)
	assert.Equal(t, 1, summary.Tasks)
	assert.Equal(t, sinks.Stats{Relations: 1}, summary.Datasets["ref"])
	assert.NotEmpty(t, summary.RunID)
}

func TestRunNoMatch(t *testing.T) {
	mem := newMemory()
	p, err := pipeline.New(ruleSet(), echo(), mem.factory, quiet())
	require.NoError(t, err)

	_, err = p.Run(context.Background(), places("nowhere"))
	require.NoError(t, err)

	assert.Empty(t, mem.lines("ref", "relations"))
	assert.Equal(t, []string{`{"id":"a1","type":"Place","name":"nowhere"}`}, mem.lines("ref", "errors"))
	assert.Len(t, mem.lines("ref", "log"), 1)
}

func TestRunNoApplicableRule(t *testing.T) {
	var calls atomic.Int32
	g := gateway.Func(func(context.Context, string, query.Request) ([]gateway.Candidate, error) {
		calls.Add(1)
		return nil, nil
	})

	set := rules.NewSet()
	filtered := placeRule()
	filtered.Filter = rules.Predicate(func(p pits.PIT) (bool, error) { return p.Name != "Leiden", nil })
	set.Add("ref", filtered)

	src := pipeline.SliceSource{
		{ID: "s1", Type: "Street", Name: "Breestraat"},
		{ID: "a1", Type: "Place", Name: "Leiden"},
	}

	mem := newMemory()
	p, err := pipeline.New(set, g, mem.factory, quiet())
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), &src)
	require.NoError(t, err)

	assert.Zero(t, summary.Tasks)
	assert.Equal(t, 2, summary.Unmatched)
	assert.Zero(t, calls.Load())
	for _, kind := range []string{"log", "relations", "errors"} {
		assert.Empty(t, mem.lines("ref", kind), kind)
	}
}

func TestRunOverrideSkipsGateway(t *testing.T) {
	var calls atomic.Int32
	g := gateway.Func(func(context.Context, string, query.Request) ([]gateway.Candidate, error) {
		calls.Add(1)
		return []gateway.Candidate{{ID: "searched"}}, nil
	})
	n := normalize.Func(func(id, _ string) (string, error) {
		if strings.HasPrefix(id, "urn:") {
			return id, nil
		}
		return "urn:x:" + id, nil
	})

	mem := newMemory()
	p, err := pipeline.New(ruleSet(
		rules.Override{From: "urn:x:a1", To: "urn:y:b2"},
		rules.Override{From: "urn:x:a2"},
	), g, mem.factory, quiet(), pipeline.WithNormalizer(n))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), places("Leiden", "Delft"))
	require.NoError(t, err)

	assert.Zero(t, calls.Load())
	assert.Equal(t, []string{`{"from":"a1","to":"urn:y:b2","type":"sameAs"}`}, mem.lines("ref", "relations"))
	assert.Equal(t, []string{`{"id":"a2","type":"Place","name":"Delft"}`}, mem.lines("ref", "errors"))
	for _, line := range mem.lines("ref", "log") {
		assert.Contains(t, line, `"override":true`)
	}
}

func TestRunConcurrencyBound(t *testing.T) {
	const limit = 3
	var inFlight, peak atomic.Int32
	g := gateway.Func(func(_ context.Context, _ string, req query.Request) ([]gateway.Candidate, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return []gateway.Candidate{{ID: req.TextQuery}}, nil
	})

	names := make([]string, 60)
	for i := range names {
		names[i] = fmt.Sprintf("place %d", i)
	}

	mem := newMemory()
	p, err := pipeline.New(ruleSet(), g, mem.factory, quiet(), pipeline.WithConcurrency(limit))
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), places(names...))
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
	assert.Equal(t, 60, summary.Tasks)
	assert.Len(t, mem.lines("ref", "relations"), 60)
	assert.Zero(t, testutil.ToFloat64(p.Metrics().InFlight))
}

func TestRunFailureIsolation(t *testing.T) {
	g := gateway.Func(func(_ context.Context, dataset string, req query.Request) ([]gateway.Candidate, error) {
		if req.TextQuery == "Delft" {
			return nil, errors.NewGatewayError(dataset, 503, "unavailable", nil)
		}
		return []gateway.Candidate{{ID: req.TextQuery}}, nil
	})

	var completions atomic.Int32
	var completed pipeline.Summary
	mem := newMemory()
	p, err := pipeline.New(ruleSet(), g, mem.factory, quiet(),
		pipeline.WithConcurrency(4),
		pipeline.WithOnComplete(func(s pipeline.Summary) {
			completions.Add(1)
			completed = s
		}))
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), places("Leiden", "Delft", "Gouda", "Haarlem"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), completions.Load())
	assert.Equal(t, summary.RunID, completed.RunID)
	assert.Equal(t, sinks.Stats{Relations: 3, Errors: 1}, summary.Datasets["ref"])
	assert.Len(t, mem.lines("ref", "relations"), 3)
	assert.Equal(t, []string{`{"id":"a2","type":"Place","name":"Delft"}`}, mem.lines("ref", "errors"))

	logLines := mem.lines("ref", "log")
	require.Len(t, logLines, 4)
	errorLines := slices.DeleteFunc(slices.Clone(logLines), func(l string) bool {
		return !strings.Contains(l, `"kind":"error"`)
	})
	require.Len(t, errorLines, 1)
	assert.Contains(t, errorLines[0], "unavailable")

	assert.Equal(t, 3.0, testutil.ToFloat64(p.Metrics().Outcomes.WithLabelValues("ref", "relation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().Outcomes.WithLabelValues("ref", "error")))
}

func TestRunIdempotent(t *testing.T) {
	names := []string{"Leiden", "nowhere", "Delft", "Gouda", "nowhere", "Haarlem", "Alkmaar"}

	run := func() *memory {
		mem := newMemory()
		p, err := pipeline.New(ruleSet(), echo(), mem.factory, quiet(), pipeline.WithConcurrency(8))
		require.NoError(t, err)
		_, err = p.Run(context.Background(), places(names...))
		require.NoError(t, err)
		return mem
	}

	first, second := run(), run()
	for _, kind := range []string{"relations", "errors"} {
		assert.ElementsMatch(t, first.lines("ref", kind), second.lines("ref", kind), kind)
	}
}

func TestRunOrderWithSingleWorker(t *testing.T) {
	set := rules.NewSet()
	set.Add("geonames", placeRule(), placeRule())
	set.Add("nwb", placeRule())

	mem := newMemory()
	p, err := pipeline.New(set, echo(), mem.factory, quiet(), pipeline.WithConcurrency(1))
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), places("Leiden", "Delft"))
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Tasks)
	assert.Equal(t, 6, summary.Totals().Relations)

	geonames := mem.lines("geonames", "log")
	require.Len(t, geonames, 4)
	assert.Contains(t, geonames[0], `"rule":"geonames#0"`)
	assert.Contains(t, geonames[0], `"name":"Leiden"`)
	assert.Contains(t, geonames[1], `"rule":"geonames#1"`)
	assert.Contains(t, geonames[2], `"name":"Delft"`)
	assert.Len(t, mem.lines("nwb", "log"), 2)
	assert.Equal(t, 1, mem.opened["geonames"])
	assert.Equal(t, 1, mem.opened["nwb"])
}

func TestRunTwice(t *testing.T) {
	mem := newMemory()
	p, err := pipeline.New(ruleSet(), echo(), mem.factory, quiet())
	require.NoError(t, err)

	_, err = p.Run(context.Background(), places("Leiden"))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), places("Leiden"))
	assert.ErrorIs(t, err, errors.ErrAlreadyRun)
	assert.Equal(t, 1, mem.opened["ref"])
}

func TestRunMalformedInput(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"a1","type":"Place","name":"Leiden"}`,
		`{"id":`,
		``,
		`{"type":"Place","name":"anonymous"}`,
		`{"uri":"http://example.org/a3","type":"Place","name":"Delft"}`,
	}, "\n")

	tl := logging.NewTestLogger(t)
	mem := newMemory()
	p, err := pipeline.New(ruleSet(), echo(), mem.factory, pipeline.WithLogger(tl.Logger))
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), pits.NewReader(strings.NewReader(input), "input"))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.PITs)
	assert.Equal(t, 2, summary.Skipped)
	assert.ElementsMatch(t, []string{
		`{"from":"a1","to":"b-leiden","type":"sameAs"}`,
		`{"from":"http://example.org/a3","to":"b-delft","type":"sameAs"}`,
	}, mem.lines("ref", "relations"))
	tl.AssertContains(t, "Skipping malformed PIT")
	tl.AssertContains(t, "malformed input at line 2")
	tl.AssertContains(t, "malformed input at line 4")
	assert.Equal(t, 2.0, testutil.ToFloat64(p.Metrics().PITs.WithLabelValues("skipped")))
}

func TestRunOversizedRecord(t *testing.T) {
	input := `{"id":"a1","type":"Place","name":"` + strings.Repeat("x", 512) + `"}` + "\n" +
		`{"id":"a2","type":"Place","name":"Leiden"}` + "\n"

	tl := logging.NewTestLogger(t)
	mem := newMemory()
	p, err := pipeline.New(ruleSet(), echo(), mem.factory, pipeline.WithLogger(tl.Logger))
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), pits.NewReaderSize(strings.NewReader(input), "input", 256))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PITs)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, []string{`{"from":"a2","to":"b-leiden","type":"sameAs"}`}, mem.lines("ref", "relations"))
	tl.AssertContains(t, "malformed input at line 1")
}

func TestRunTaskLogFields(t *testing.T) {
	g := gateway.Func(func(_ context.Context, dataset string, _ query.Request) ([]gateway.Candidate, error) {
		return nil, errors.NewGatewayError(dataset, 503, "unavailable", nil)
	})

	tl := logging.NewTestLogger(t)
	mem := newMemory()
	p, err := pipeline.New(ruleSet(), g, mem.factory, pipeline.WithLogger(tl.Logger))
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), places("Delft"))
	require.NoError(t, err)

	var failed []string
	for _, line := range tl.Lines() {
		if strings.Contains(line, "Search failed") || strings.Contains(line, "Task failed") {
			failed = append(failed, line)
		}
	}
	require.Len(t, failed, 2)
	for _, line := range failed {
		for _, field := range []string{
			`"run_id":"` + summary.RunID + `"`,
			`"dataset":"ref"`,
			`"rule":"ref#0"`,
			`"pit_id":"a1"`,
		} {
			assert.Equal(t, 1, strings.Count(line, field), "%s in %s", field, line)
		}
		assert.Equal(t, 1, strings.Count(line, `"run_id":`), line)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var completions atomic.Int32
	mem := newMemory()
	p, err := pipeline.New(ruleSet(), echo(), mem.factory, quiet(),
		pipeline.WithOnComplete(func(pipeline.Summary) { completions.Add(1) }))
	require.NoError(t, err)

	summary, err := p.Run(ctx, places("Leiden"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Tasks)
	assert.Equal(t, int32(1), completions.Load())
	assert.Equal(t, pipeline.StateClosed, p.State())
}

func TestRunConfigError(t *testing.T) {
	mem := newMemory()
	p, err := pipeline.New(ruleSet(rules.Override{From: "  "}), echo(), mem.factory, quiet())
	require.NoError(t, err)

	_, err = p.Run(context.Background(), places("Leiden"))
	assert.True(t, errors.IsConfigError(err))
	assert.Empty(t, mem.opened, "no sinks opened")
	assert.Equal(t, pipeline.StateClosed, p.State())
}

func TestRunSinkOpenFailure(t *testing.T) {
	set := rules.NewSet()
	set.Add("geonames", placeRule())
	set.Add("nwb", placeRule())

	mem := newMemory()
	factory := func(dataset string) (*sinks.Set, error) {
		if dataset == "nwb" {
			return nil, errors.WrapIO("create", "nwb.log.ndjson", errors.New("read-only"))
		}
		return mem.factory(dataset)
	}

	p, err := pipeline.New(set, echo(), factory, quiet())
	require.NoError(t, err)

	_, err = p.Run(context.Background(), places("Leiden"))
	var ioErr *errors.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestRunSkipsPITWithoutIdentity(t *testing.T) {
	src := pipeline.SliceSource{{Type: "Place", Name: "anonymous"}, {ID: "a2", Type: "Place", Name: "Delft"}}

	mem := newMemory()
	p, err := pipeline.New(ruleSet(), echo(), mem.factory, quiet())
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), &src)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Tasks)
}

func TestNewValidation(t *testing.T) {
	mem := newMemory()

	_, err := pipeline.New(nil, echo(), mem.factory)
	assert.True(t, errors.IsValidationError(err))

	_, err = pipeline.New(ruleSet(), echo(), mem.factory, pipeline.WithConcurrency(0))
	assert.True(t, errors.IsValidationError(err))

	_, err = pipeline.New(ruleSet(), echo(), mem.factory, pipeline.WithNormalizer(nil))
	assert.True(t, errors.IsValidationError(err))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", pipeline.StateIdle.String())
	assert.Equal(t, "expanding", pipeline.StateExpanding.String())
	assert.Equal(t, "running", pipeline.StateRunning.String())
	assert.Equal(t, "draining", pipeline.StateDraining.String())
	assert.Equal(t, "closed", pipeline.StateClosed.String())
	assert.Equal(t, "unknown", pipeline.State(42).String())
}
