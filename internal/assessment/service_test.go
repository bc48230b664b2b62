package assessment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiworks/lexisurvey/internal/itembank"
	"github.com/lexiworks/lexisurvey/internal/questiongen"
	"github.com/lexiworks/lexisurvey/internal/store"
	"github.com/lexiworks/lexisurvey/internal/survey"
	"github.com/lexiworks/lexisurvey/internal/telemetry"
)

type fixture struct {
	svc     *Service
	store   *store.MemoryStore
	metrics *telemetry.Metrics
}

func newFixture(t *testing.T, repo itembank.Repository, st store.SessionStore) *fixture {
	t.Helper()
	if repo == nil {
		repo = itembank.Seed(itembank.WithSeed(7))
	}
	mem := store.NewMemoryStore()
	if st == nil {
		st = mem
	}
	m := telemetry.New(prometheus.NewRegistry())
	svc, err := New(Deps{
		Repo:      repo,
		Store:     st,
		Events:    mem,
		Generator: questiongen.New(repo, nil, questiongen.DefaultConfig(), questiongen.WithSeed(7)),
		Metrics:   m,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, store: mem, metrics: m}
}

func hint(r int) *int { return &r }

func wrongOption(q *questiongen.Question) string {
	for _, o := range q.Options {
		if o.ID != q.CorrectOptionID && o.ID != questiongen.UnknownOptionID {
			return o.ID
		}
	}
	return questiongen.UnknownOptionID
}

// play answers every question with answer(i) until the session ends and
// returns each step.
func play(t *testing.T, svc *Service, start *StartResult, answer func(i int) bool) []*StepResult {
	t.Helper()
	ctx := context.Background()
	q := start.Question
	var steps []*StepResult
	for i := 0; q != nil; i++ {
		require.Less(t, i, 15, "session did not complete after 15 answers")
		sel := q.CorrectOptionID
		if !answer(i) {
			sel = wrongOption(q)
		}
		res, err := svc.SubmitAnswer(ctx, SubmitRequest{
			SessionID:         start.SessionID,
			QuestionRef:       q.Ref,
			SelectedOptionIDs: []string{sel},
			TimeTaken:         2 * time.Second,
		})
		require.NoError(t, err, "answer %d", i)
		steps = append(steps, res)
		q = res.Question
	}
	return steps
}

func TestStartSession(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	res, err := f.svc.StartSession(ctx, hint(2000))
	require.NoError(t, err)
	require.NotNil(t, res.Question)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, res.SessionID, res.Question.SessionID)
	assert.Equal(t, survey.PhaseCoarse, res.Question.Phase)
	assert.Equal(t, 2000, res.Question.TargetRank)

	st, err := f.svc.Status(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, survey.StatusInProgress, st.Status)
	assert.Equal(t, survey.PhaseCoarse, st.Phase)
	assert.Equal(t, 0, st.QuestionCount)
	assert.Equal(t, 15, st.Total)
	assert.Equal(t, 1500, st.StepBound)
	assert.Equal(t, res.Question.Ref, st.Question.Ref)

	events, err := f.svc.Events(ctx, res.SessionID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, store.EventSessionStarted, events[0].Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Sessions.WithLabelValues(telemetry.OutcomeStarted)))
}

func TestStartSession_HintIsClamped(t *testing.T) {
	f := newFixture(t, nil, nil)
	res, err := f.svc.StartSession(context.Background(), hint(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, 20000, res.Session.RankEstimate)
	assert.Equal(t, 20000, res.Session.StartRank)
}

func TestPerfectScorer(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	start, err := f.svc.StartSession(ctx, hint(2000))
	require.NoError(t, err)
	steps := play(t, f.svc, start, func(int) bool { return true })

	require.Len(t, steps, 15)
	for i, s := range steps[:14] {
		assert.Equal(t, survey.StatusInProgress, s.Status, "step %d", i)
		assert.Equal(t, i+1, s.QuestionCount)
		assert.True(t, s.Correct)
		assert.Nil(t, s.Report)
	}

	last := steps[14]
	assert.Equal(t, survey.StatusComplete, last.Status)
	assert.Nil(t, last.Question)
	require.NotNil(t, last.Report)
	assert.Equal(t, 15, last.Report.Answers)
	assert.Equal(t, 15, last.Report.Correct)
	require.NotNil(t, last.Report.Density)
	assert.Equal(t, 1.0, *last.Report.Density)
	assert.Greater(t, last.Report.Reach, 9000.0)

	rec, err := f.svc.Record(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2000+5*1500+7*200+3*100, rec.Session.RankEstimate)
	assert.Len(t, rec.Session.History, 15)

	events, err := f.svc.Events(ctx, start.SessionID)
	require.NoError(t, err)
	require.Len(t, events, 17)
	assert.Equal(t, store.EventSessionCompleted, events[16].Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Sessions.WithLabelValues(telemetry.OutcomeCompleted)))
}

func TestPhasesFollowSchedule(t *testing.T) {
	f := newFixture(t, nil, nil)
	start, err := f.svc.StartSession(context.Background(), nil)
	require.NoError(t, err)
	steps := play(t, f.svc, start, func(i int) bool { return i%3 != 0 })

	// Phase of the question asked at each index.
	asked := []survey.Phase{start.Question.Phase}
	for _, s := range steps[:14] {
		asked = append(asked, s.Question.Phase)
	}
	for i, p := range asked {
		want := survey.PhaseVerify
		switch {
		case i < 5:
			want = survey.PhaseCoarse
		case i < 12:
			want = survey.PhaseFine
		}
		assert.Equal(t, want, p, "question %d", i)
	}
}

func TestAllWrongScorer(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	start, err := f.svc.StartSession(ctx, hint(2000))
	require.NoError(t, err)
	steps := play(t, f.svc, start, func(int) bool { return false })

	last := steps[len(steps)-1]
	require.NotNil(t, last.Report)
	assert.Equal(t, 0, last.Report.Correct)
	assert.Zero(t, last.Report.Reach)
	assert.Nil(t, last.Report.Density)
	assert.Less(t, last.Report.Volume, 1.0)

	rec, err := f.svc.Record(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, rec.Session.MinRank, rec.Session.RankEstimate)
}

func TestSubmitAnswer_Duplicate(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	start, err := f.svc.StartSession(ctx, nil)
	require.NoError(t, err)
	req := SubmitRequest{
		SessionID:         start.SessionID,
		QuestionRef:       start.Question.Ref,
		SelectedOptionIDs: []string{start.Question.CorrectOptionID},
	}

	first, err := f.svc.SubmitAnswer(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.SubmitAnswer(ctx, req)
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, 1, first.QuestionCount)
	assert.Equal(t, 1, second.QuestionCount)
	assert.Equal(t, first.Question.Ref, second.Question.Ref)
	assert.Equal(t, first.Question, second.Question)
	assert.Equal(t, first.Correct, second.Correct)

	st, err := f.svc.Status(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.QuestionCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Duplicates))
}

func TestSubmitAnswer_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	start, err := f.svc.StartSession(ctx, nil)
	require.NoError(t, err)
	req := SubmitRequest{
		SessionID:         start.SessionID,
		QuestionRef:       start.Question.Ref,
		SelectedOptionIDs: []string{start.Question.CorrectOptionID},
	}

	var (
		wg    sync.WaitGroup
		fresh atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.SubmitAnswer(ctx, req)
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			if !res.Duplicate {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh.Load())
	st, err := f.svc.Status(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.QuestionCount)
	assert.Zero(t, f.svc.locks.len())
}

func TestSubmitAnswer_DuplicateOfFinalAnswerReturnsReport(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	start, err := f.svc.StartSession(ctx, nil)
	require.NoError(t, err)
	q := start.Question
	var lastReq SubmitRequest
	for q != nil {
		lastReq = SubmitRequest{SessionID: start.SessionID, QuestionRef: q.Ref, SelectedOptionIDs: []string{q.CorrectOptionID}}
		res, err := f.svc.SubmitAnswer(ctx, lastReq)
		require.NoError(t, err)
		q = res.Question
	}

	again, err := f.svc.SubmitAnswer(ctx, lastReq)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, survey.StatusComplete, again.Status)
	require.NotNil(t, again.Report)

	_, err = f.svc.SubmitAnswer(ctx, SubmitRequest{SessionID: start.SessionID, QuestionRef: "another"})
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestSubmitAnswer_Errors(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	start, err := f.svc.StartSession(ctx, nil)
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, SubmitRequest{SessionID: "missing", QuestionRef: start.Question.Ref})
	assert.ErrorIs(t, err, ErrNoActiveSession)

	_, err = f.svc.SubmitAnswer(ctx, SubmitRequest{SessionID: start.SessionID, QuestionRef: "stale"})
	assert.ErrorIs(t, err, ErrStaleQuestion)

	_, err = f.svc.SubmitAnswer(ctx, SubmitRequest{
		SessionID:         start.SessionID,
		QuestionRef:       start.Question.Ref,
		SelectedOptionIDs: []string{"zz"},
	})
	assert.ErrorIs(t, err, ErrInvalidAnswer)

	st, err := f.svc.Status(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, st.QuestionCount)
}

func TestResults(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	start, err := f.svc.StartSession(ctx, nil)
	require.NoError(t, err)

	_, err = f.svc.Results(ctx, start.SessionID)
	assert.ErrorIs(t, err, ErrNotComplete)
	_, err = f.svc.Results(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	play(t, f.svc, start, func(i int) bool { return i < 8 })

	a, err := f.svc.Results(ctx, start.SessionID)
	require.NoError(t, err)
	b, err := f.svc.Results(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 15, a.Answers)
}

func TestScore(t *testing.T) {
	q := &questiongen.Question{
		CorrectOptionID: "b",
		Options: []questiongen.Option{
			{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: questiongen.UnknownOptionID},
		},
	}
	cases := []struct {
		name     string
		selected []string
		want     bool
	}{
		{"exact", []string{"b"}, true},
		{"repeated", []string{"b", "b"}, true},
		{"wrong", []string{"a"}, false},
		{"extra", []string{"b", "c"}, false},
		{"unknown", []string{questiongen.UnknownOptionID}, false},
		{"none", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := score(q, tc.selected)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// drainingRepo empties on demand.
type drainingRepo struct {
	itembank.Repository
	empty       atomic.Bool
	unavailable atomic.Bool
}

func (r *drainingRepo) FindNearRank(ctx context.Context, rank, window int) ([]itembank.Item, error) {
	if r.unavailable.Load() {
		return nil, fmt.Errorf("dial: %w", itembank.ErrUnavailable)
	}
	if r.empty.Load() {
		return nil, nil
	}
	return r.Repository.FindNearRank(ctx, rank, window)
}

func (r *drainingRepo) Nearest(ctx context.Context, rank int) (*itembank.Item, error) {
	if r.empty.Load() {
		return nil, itembank.ErrItemNotFound
	}
	return r.Repository.Nearest(ctx, rank)
}

func TestSubmitAnswer_EmptyRepositoryAborts(t *testing.T) {
	repo := &drainingRepo{Repository: itembank.Seed(itembank.WithSeed(7))}
	f := newFixture(t, repo, nil)
	ctx := context.Background()

	start, err := f.svc.StartSession(ctx, nil)
	require.NoError(t, err)

	repo.empty.Store(true)
	_, err = f.svc.SubmitAnswer(ctx, SubmitRequest{
		SessionID:         start.SessionID,
		QuestionRef:       start.Question.Ref,
		SelectedOptionIDs: []string{start.Question.CorrectOptionID},
	})
	require.ErrorIs(t, err, ErrAssessmentAborted)
	assert.ErrorIs(t, err, itembank.ErrItemNotFound)

	st, err := f.svc.Status(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, survey.StatusAborted, st.Status)
	assert.NotEmpty(t, st.AbortReason)
	assert.Nil(t, st.Question)

	_, err = f.svc.Results(ctx, start.SessionID)
	assert.ErrorIs(t, err, ErrAssessmentAborted)
	_, err = f.svc.SubmitAnswer(ctx, SubmitRequest{SessionID: start.SessionID, QuestionRef: start.Question.Ref})
	assert.ErrorIs(t, err, ErrAssessmentAborted)

	events, err := f.svc.Events(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, store.EventSessionAborted, events[len(events)-1].Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Sessions.WithLabelValues(telemetry.OutcomeAborted)))
}

func TestStartSession_EmptyRepository(t *testing.T) {
	repo := &drainingRepo{Repository: itembank.MustMemory(nil)}
	f := newFixture(t, repo, nil)
	_, err := f.svc.StartSession(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAssessmentAborted)
	assert.ErrorIs(t, err, itembank.ErrItemNotFound)
}

func TestSubmitAnswer_TransientFailureLeavesEstimate(t *testing.T) {
	repo := &drainingRepo{Repository: itembank.Seed(itembank.WithSeed(7))}
	f := newFixture(t, repo, nil)
	ctx := context.Background()

	start, err := f.svc.StartSession(ctx, hint(2000))
	require.NoError(t, err)
	req := SubmitRequest{
		SessionID:         start.SessionID,
		QuestionRef:       start.Question.Ref,
		SelectedOptionIDs: []string{start.Question.CorrectOptionID},
	}

	repo.unavailable.Store(true)
	_, err = f.svc.SubmitAnswer(ctx, req)
	require.ErrorIs(t, err, itembank.ErrUnavailable)

	st, err := f.svc.Status(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2000, st.RankEstimate)
	assert.Equal(t, 0, st.QuestionCount)
	assert.Equal(t, survey.StatusInProgress, st.Status)

	// The same answer goes through once the repository is back.
	repo.unavailable.Store(false)
	res, err := f.svc.SubmitAnswer(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 1, res.QuestionCount)
}

// conflictingStore fails the first n updates with ErrConflict after
// letting a concurrent writer bump the version.
type conflictingStore struct {
	*store.MemoryStore
	n atomic.Int32
}

func (s *conflictingStore) Update(ctx context.Context, rec *store.Record) error {
	if s.n.Add(-1) >= 0 {
		return fmt.Errorf("session %s: %w", rec.Session.ID, store.ErrConflict)
	}
	return s.MemoryStore.Update(ctx, rec)
}

func TestSubmitAnswer_ConflictReloadsOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers", func(t *testing.T) {
		st := &conflictingStore{MemoryStore: store.NewMemoryStore()}
		f := newFixture(t, nil, st)
		start, err := f.svc.StartSession(ctx, nil)
		require.NoError(t, err)

		st.n.Store(1)
		res, err := f.svc.SubmitAnswer(ctx, SubmitRequest{
			SessionID:         start.SessionID,
			QuestionRef:       start.Question.Ref,
			SelectedOptionIDs: []string{start.Question.CorrectOptionID},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.QuestionCount)
	})

	t.Run("gives up", func(t *testing.T) {
		st := &conflictingStore{MemoryStore: store.NewMemoryStore()}
		f := newFixture(t, nil, st)
		start, err := f.svc.StartSession(ctx, nil)
		require.NoError(t, err)

		st.n.Store(2)
		_, err = f.svc.SubmitAnswer(ctx, SubmitRequest{
			SessionID:         start.SessionID,
			QuestionRef:       start.Question.Ref,
			SelectedOptionIDs: []string{start.Question.CorrectOptionID},
		})
		assert.True(t, errors.Is(err, store.ErrConflict))
	})
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{Store: store.NewMemoryStore()})
	assert.Error(t, err)
	_, err = New(Deps{Repo: itembank.Seed()})
	assert.Error(t, err)

	svc, err := New(Deps{Repo: itembank.Seed(), Store: store.NewMemoryStore()})
	require.NoError(t, err)
	ev, err := svc.Events(context.Background(), "x")
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestNew_GeneratorSharesControllerWindow(t *testing.T) {
	repo := itembank.Seed()
	controller, err := survey.NewController(repo, survey.Options{Window: 75})
	require.NoError(t, err)

	svc, err := New(Deps{Repo: repo, Store: store.NewMemoryStore(), Controller: controller})
	require.NoError(t, err)
	assert.Equal(t, 75, svc.generator.Window())

	_, err = New(Deps{
		Repo:       repo,
		Store:      store.NewMemoryStore(),
		Controller: controller,
		Generator:  questiongen.New(repo, nil, questiongen.DefaultConfig()),
	})
	assert.ErrorContains(t, err, "window")
}
