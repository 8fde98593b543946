package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collect-intel/dtef-app-sub001/internal/models"
	"github.com/collect-intel/dtef-app-sub001/internal/queue"
	"github.com/collect-intel/dtef-app-sub001/internal/runner"
	"github.com/collect-intel/dtef-app-sub001/internal/source"
	"github.com/collect-intel/dtef-app-sub001/internal/store"
	"github.com/collect-intel/dtef-app-sub001/internal/summary"
)

type fakeSource struct {
	head    string
	headErr error
	tree    []source.TreeEntry
	treeErr error
	files   map[string]string
}

func (f *fakeSource) BranchHead(context.Context, string) (string, error) {
	return f.head, f.headErr
}

func (f *fakeSource) ListTree(context.Context, string) ([]source.TreeEntry, error) {
	return f.tree, f.treeErr
}

func (f *fakeSource) GetRaw(_ context.Context, path, _ string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, source.ErrFileNotFound
	}

	return []byte(content), nil
}

type fakeQueue struct {
	mu   sync.Mutex
	ids  []string
	jobs []queue.Job
}

func (q *fakeQueue) Enqueue(id string, fn queue.Job) (int, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ids = append(q.ids, id)
	q.jobs = append(q.jobs, fn)

	return len(q.ids), len(q.ids)
}

type fakeApplier struct {
	mu    sync.Mutex
	calls []appliedResult
}

type appliedResult struct {
	configID string
	result   summary.RunResult
	fileName string
}

func (a *fakeApplier) Apply(_ context.Context, configID string, result summary.RunResult, fileName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, appliedResult{configID: configID, result: result, fileName: fileName})

	return nil
}

const periodicBlueprint = `
title: Survey Accuracy
tags: [_periodic, dtef]
models: [CORE]
prompts:
  - id: p1
    prompt: "Estimate the distribution."
`

const catalogueYAML = "CORE:\n  - openai:gpt-x\n"

func blob(path string) source.TreeEntry {
	return source.TreeEntry{Path: path, Type: "blob"}
}

func newFixture(src *fakeSource, st store.Store, now time.Time) (*Scheduler, *fakeQueue, *fakeApplier) {
	if src.files == nil {
		src.files = map[string]string{}
	}

	if _, ok := src.files[models.CataloguePath]; !ok {
		src.files[models.CataloguePath] = catalogueYAML
	}

	q := &fakeQueue{}
	applier := &fakeApplier{}

	s := New(Config{
		Source:  src,
		Store:   st,
		Queue:   q,
		Runner:  runner.Func(func(context.Context, runner.Job) (string, error) { return "", errors.New("not used") }),
		Applier: applier,
		Now:     func() time.Time { return now },
	})

	return s, q, applier
}

func TestTick_SchedulesStaleSkipsFresh(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	runTS := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.Put(context.Background(),
		store.RunKey("foo__bar", "hashA", runTS), []byte("{}"), store.ContentTypeJSON))

	src := &fakeSource{
		head:  "sha1",
		tree:  []source.TreeEntry{blob("blueprints/foo/bar.yaml")},
		files: map[string]string{"blueprints/foo/bar.yaml": periodicBlueprint},
	}

	// 3 days after the run: fresh.
	s, q, _ := newFixture(src, st, runTS.Add(3*24*time.Hour))

	report, err := s.Tick(context.Background(), TickOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedFresh)
	assert.Zero(t, report.Scheduled)
	assert.Empty(t, q.ids)

	// 8 days after the run: stale.
	s, q, _ = newFixture(src, st, runTS.Add(8*24*time.Hour))

	report, err = s.Tick(context.Background(), TickOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scheduled)
	assert.Zero(t, report.SkippedFresh)
	assert.Equal(t, []string{"foo__bar"}, q.ids)
}

func TestTick_NoPriorRunsSchedules(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		head:  "sha1",
		tree:  []source.TreeEntry{blob("blueprints/foo/bar.yaml")},
		files: map[string]string{"blueprints/foo/bar.yaml": periodicBlueprint},
	}

	s, q, _ := newFixture(src, store.NewMemStore(), time.Now())

	report, err := s.Tick(context.Background(), TickOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scheduled)
	assert.Equal(t, "sha1", report.CommitSHA)
	assert.Len(t, q.jobs, 1)
}

func TestTick_ForceSchedulesFresh(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	runTS := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.Put(context.Background(),
		store.RunKey("foo__bar", "hashA", runTS), []byte("{}"), store.ContentTypeJSON))

	src := &fakeSource{
		head:  "sha1",
		tree:  []source.TreeEntry{blob("blueprints/foo/bar.yaml")},
		files: map[string]string{"blueprints/foo/bar.yaml": periodicBlueprint},
	}

	s, _, _ := newFixture(src, st, runTS.Add(time.Hour))

	report, err := s.Tick(context.Background(), TickOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scheduled)
	assert.Zero(t, report.SkippedFresh)
}

func TestTick_ReservedIDSkipped(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		head: "sha1",
		tree: []source.TreeEntry{blob("blueprints/_pr_evals/x.yml")},
	}

	s, q, _ := newFixture(src, store.NewMemStore(), time.Now())

	report, err := s.Tick(context.Background(), TickOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedReserved)
	assert.Zero(t, report.Scheduled)
	assert.Empty(t, q.ids)
}

func TestTick_NonPeriodicSkipped(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		head:  "sha1",
		tree:  []source.TreeEntry{blob("blueprints/adhoc.yaml")},
		files: map[string]string{"blueprints/adhoc.yaml": "title: Adhoc\ntags: [misc]\n"},
	}

	s, _, _ := newFixture(src, store.NewMemStore(), time.Now())

	report, err := s.Tick(context.Background(), TickOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedNonPeriodic)
	assert.Zero(t, report.Scheduled)
}

func TestTick_ParseFailureIsolated(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		head: "sha1",
		tree: []source.TreeEntry{
			blob("blueprints/broken.yaml"),
			blob("blueprints/good.yaml"),
		},
		files: map[string]string{
			"blueprints/broken.yaml": "tags: \"not-a-list\"\n",
			"blueprints/good.yaml":   periodicBlueprint,
		},
	}

	s, q, _ := newFixture(src, store.NewMemStore(), time.Now())

	report, err := s.Tick(context.Background(), TickOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Scheduled)
	assert.Equal(t, []string{"good"}, q.ids)
}

func TestTick_TreeListingFailureAborts(t *testing.T) {
	t.Parallel()

	src := &fakeSource{head: "sha1", treeErr: errors.New("rate limited")}

	s, _, _ := newFixture(src, store.NewMemStore(), time.Now())

	_, err := s.Tick(context.Background(), TickOptions{})
	assert.ErrorContains(t, err, "listing source tree")
}

func TestTick_BranchHeadFailureAborts(t *testing.T) {
	t.Parallel()

	src := &fakeSource{headErr: errors.New("no such branch")}

	s, _, _ := newFixture(src, store.NewMemStore(), time.Now())

	_, err := s.Tick(context.Background(), TickOptions{})
	assert.ErrorContains(t, err, "resolving branch head")
}

func TestTick_BatchLimit(t *testing.T) {
	t.Parallel()

	src := &fakeSource{head: "sha1", files: map[string]string{}}

	for i := 0; i < 5; i++ {
		path := fmt.Sprintf("blueprints/bp%d.yaml", i)
		src.tree = append(src.tree, blob(path))
		src.files[path] = periodicBlueprint
	}

	s, q, _ := newFixture(src, store.NewMemStore(), time.Now())

	report, err := s.Tick(context.Background(), TickOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scheduled)
	assert.Len(t, q.ids, 2)
}

func TestTick_UnknownGroupCountsError(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		head: "sha1",
		tree: []source.TreeEntry{blob("blueprints/odd.yaml")},
		files: map[string]string{
			"blueprints/odd.yaml": "tags: [_periodic]\nmodels: [NO_SUCH_GROUP]\n",
		},
	}

	s, q, _ := newFixture(src, store.NewMemStore(), time.Now())

	report, err := s.Tick(context.Background(), TickOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)
	assert.Empty(t, q.ids)
}

func TestTick_UnparseableFilenameCountsAsAbsent(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()

	require.NoError(t, st.Put(context.Background(),
		store.RunPrefix("foo__bar")+"junk-without-timestamp.json", []byte("{}"), store.ContentTypeJSON))

	src := &fakeSource{
		head:  "sha1",
		tree:  []source.TreeEntry{blob("blueprints/foo/bar.yaml")},
		files: map[string]string{"blueprints/foo/bar.yaml": periodicBlueprint},
	}

	s, _, _ := newFixture(src, st, time.Now())

	report, err := s.Tick(context.Background(), TickOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scheduled)
}

func TestEvaluationJob_RunsPipelineAndAppliesResult(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	runTS := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	src := &fakeSource{
		head: "sha1",
		tree: []source.TreeEntry{blob("blueprints/foo/bar.yaml")},
		files: map[string]string{
			"blueprints/foo/bar.yaml": periodicBlueprint,
			models.CataloguePath:      catalogueYAML,
		},
	}

	q := &fakeQueue{}
	applier := &fakeApplier{}

	pipeline := runner.Func(func(ctx context.Context, job runner.Job) (string, error) {
		fileName := store.RunFileName(job.RunLabel, runTS)

		result := summary.RunResult{
			RunLabel: job.RunLabel,
			Models:   job.Models,
			Scores:   []summary.CoverageScore{{ModelID: job.Models[0], PromptID: "p1", Score: 0.7}},
		}

		putErr := store.PutJSON(ctx, st, store.RunPrefix(job.Blueprint.ID)+fileName, result)
		require.NoError(t, putErr)

		return fileName, nil
	})

	s := New(Config{
		Source:  src,
		Store:   st,
		Queue:   q,
		Runner:  pipeline,
		Applier: applier,
	})

	report, err := s.Tick(context.Background(), TickOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, report.Scheduled)
	require.Len(t, q.jobs, 1)

	require.NoError(t, q.jobs[0](context.Background()))

	require.Len(t, applier.calls, 1)
	call := applier.calls[0]
	assert.Equal(t, "foo__bar", call.configID)
	assert.Contains(t, call.result.Tags, "_periodic")
	assert.Contains(t, call.result.Tags, "dtef")
	assert.Contains(t, call.fileName, "_comparison.json")
}

func TestEvaluationJob_PipelineFailurePropagates(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		head: "sha1",
		tree: []source.TreeEntry{blob("blueprints/foo/bar.yaml")},
		files: map[string]string{
			"blueprints/foo/bar.yaml": periodicBlueprint,
			models.CataloguePath:      catalogueYAML,
		},
	}

	q := &fakeQueue{}

	s := New(Config{
		Source:  src,
		Store:   store.NewMemStore(),
		Queue:   q,
		Runner:  runner.Func(func(context.Context, runner.Job) (string, error) { return "", errors.New("provider down") }),
		Applier: &fakeApplier{},
	})

	_, err := s.Tick(context.Background(), TickOptions{})
	require.NoError(t, err)
	require.Len(t, q.jobs, 1)

	jobErr := q.jobs[0](context.Background())
	assert.ErrorContains(t, jobErr, "provider down")
}
