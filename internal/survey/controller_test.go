package survey

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/lexiworks/lexisurvey/internal/itembank"
)

var seedBounds = itembank.Bounds{MinRank: 1, MaxRank: 20000, Count: 100}

func newController(t *testing.T, repo itembank.Repository, opts Options) *Controller {
	t.Helper()
	if repo == nil {
		repo = itembank.Seed()
	}
	c, err := NewController(repo, opts)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

// run applies answers until the session completes, returning every
// intermediate session including the initial one.
func run(t *testing.T, c *Controller, s Session, answer func(i int) bool) []Session {
	t.Helper()
	steps := []Session{s}
	for i := 0; !s.Status.Closed(); i++ {
		if i > 100 {
			t.Fatal("session never completed")
		}
		var err error
		s, err = c.Advance(s, AnswerRecord{Correct: answer(i), ItemRank: s.RankEstimate})
		if err != nil {
			t.Fatalf("Advance %d: %v", i, err)
		}
		steps = append(steps, s)
	}
	return steps
}

func TestAdvance_ExactlyFifteenQuestions(t *testing.T) {
	c := newController(t, nil, Options{})
	patterns := map[string]func(int) bool{
		"all correct": func(int) bool { return true },
		"all wrong":   func(int) bool { return false },
		"alternating": func(i int) bool { return i%2 == 0 },
	}
	for name, answer := range patterns {
		t.Run(name, func(t *testing.T) {
			steps := run(t, c, c.Start("s", nil, seedBounds), answer)
			last := steps[len(steps)-1]
			if last.QuestionCount != 15 {
				t.Errorf("QuestionCount = %d, want 15", last.QuestionCount)
			}
			if len(steps) != 16 {
				t.Errorf("got %d steps, want 16", len(steps))
			}
			for i, s := range steps[:len(steps)-1] {
				if s.Status == StatusComplete {
					t.Errorf("complete after %d answers", i)
				}
			}
			if last.Status != StatusComplete {
				t.Errorf("Status = %q, want complete", last.Status)
			}
			for _, s := range steps {
				if s.QuestionCount != len(s.History) {
					t.Errorf("QuestionCount %d != len(History) %d", s.QuestionCount, len(s.History))
				}
			}
		})
	}
}

func TestAdvance_PhaseBoundaries(t *testing.T) {
	c := newController(t, nil, Options{})
	steps := run(t, c, c.Start("s", nil, seedBounds), func(i int) bool { return i%3 != 0 })

	for i, s := range steps[:15] {
		want := PhaseVerify
		switch {
		case i < 5:
			want = PhaseCoarse
		case i < 12:
			want = PhaseFine
		}
		if s.Phase != want {
			t.Errorf("after %d answers: phase %q, want %q", i, s.Phase, want)
		}
	}

	order := c.Schedule()
	for i := 1; i < len(steps); i++ {
		if order.Index(steps[i].Phase) < order.Index(steps[i-1].Phase) {
			t.Errorf("phase regressed at step %d: %q -> %q", i, steps[i-1].Phase, steps[i].Phase)
		}
	}
}

func TestAdvance_StepBoundStaircase(t *testing.T) {
	c := newController(t, nil, Options{})
	steps := run(t, c, c.Start("s", nil, seedBounds), func(i int) bool { return i < 7 })
	want := map[Phase]int{PhaseCoarse: 1500, PhaseFine: 200, PhaseVerify: 100}
	for i, s := range steps {
		if s.StepBound != want[s.Phase] {
			t.Errorf("step %d: bound %d in phase %q", i, s.StepBound, s.Phase)
		}
	}
}

func TestAdvance_UpdateRule(t *testing.T) {
	c := newController(t, nil, Options{})
	s := c.Start("s", nil, seedBounds)

	s, _ = c.Advance(s, AnswerRecord{Correct: true})
	if s.RankEstimate != 3500 {
		t.Fatalf("after correct: %d, want 3500", s.RankEstimate)
	}
	s, _ = c.Advance(s, AnswerRecord{Correct: false})
	if s.RankEstimate != 2000 {
		t.Fatalf("after wrong: %d, want 2000", s.RankEstimate)
	}
	if s.History[0].Phase != PhaseCoarse {
		t.Errorf("record phase = %q", s.History[0].Phase)
	}
}

func TestAdvance_UsesBoundOfAskedPhase(t *testing.T) {
	c := newController(t, nil, Options{})
	s := c.Start("s", nil, seedBounds)
	for range 4 {
		s, _ = c.Advance(s, AnswerRecord{Correct: false})
	}
	before := s.RankEstimate
	// Fifth answer still belongs to the coarse phase.
	s, _ = c.Advance(s, AnswerRecord{Correct: true})
	if got := s.RankEstimate - before; got != 1500 {
		t.Errorf("fifth answer moved estimate by %d, want 1500", got)
	}
	if s.Phase != PhaseFine || s.StepBound != 200 {
		t.Errorf("after five answers: %q/%d", s.Phase, s.StepBound)
	}
}

func TestAdvance_Clamping(t *testing.T) {
	c := newController(t, nil, Options{})
	bounds := itembank.Bounds{MinRank: 90, MaxRank: 20000}

	for _, correct := range []bool{true, false} {
		steps := run(t, c, c.Start("s", nil, bounds), func(int) bool { return correct })
		for i, s := range steps {
			if s.RankEstimate > bounds.MaxRank || s.RankEstimate < bounds.MinRank {
				t.Errorf("correct=%v step %d: estimate %d outside [%d, %d]",
					correct, i, s.RankEstimate, bounds.MinRank, bounds.MaxRank)
			}
		}
	}
}

func TestAdvance_PerfectScorer(t *testing.T) {
	c := newController(t, nil, Options{})
	steps := run(t, c, c.Start("s", nil, seedBounds), func(int) bool { return true })
	if got := steps[5].RankEstimate; got != 9500 {
		t.Errorf("estimate after coarse = %d, want 9500", got)
	}
	last := steps[len(steps)-1]
	if last.RankEstimate != 2000+5*1500+7*200+3*100 {
		t.Errorf("final estimate = %d", last.RankEstimate)
	}
}

func TestAdvance_AllWrongReachesFloor(t *testing.T) {
	c := newController(t, nil, Options{})
	steps := run(t, c, c.Start("s", nil, seedBounds), func(int) bool { return false })
	if got := steps[len(steps)-1].RankEstimate; got != 1 {
		t.Errorf("final estimate = %d, want 1", got)
	}
}

func TestAdvance_ClosedSession(t *testing.T) {
	c := newController(t, nil, Options{})
	steps := run(t, c, c.Start("s", nil, seedBounds), func(int) bool { return true })
	last := steps[len(steps)-1]
	if _, err := c.Advance(last, AnswerRecord{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("got %v, want ErrSessionClosed", err)
	}
	aborted := c.Start("s", nil, seedBounds)
	aborted.Status = StatusAborted
	if _, err := c.Advance(aborted, AnswerRecord{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("aborted: got %v, want ErrSessionClosed", err)
	}
}

func TestAdvance_DoesNotMutateInput(t *testing.T) {
	c := newController(t, nil, Options{})
	s := c.Start("s", nil, seedBounds)
	s, _ = c.Advance(s, AnswerRecord{Correct: true, ItemID: "a"})
	snapshot := s.Clone()

	_, _ = c.Advance(s, AnswerRecord{Correct: false, ItemID: "b"})
	if s.QuestionCount != snapshot.QuestionCount || len(s.History) != 1 || s.History[0].ItemID != "a" {
		t.Errorf("input session modified: %+v", s)
	}
}

func TestStart_HintClamped(t *testing.T) {
	c := newController(t, nil, Options{})
	hint := 50000
	s := c.Start("s", &hint, seedBounds)
	if s.RankEstimate != 20000 {
		t.Errorf("estimate = %d, want 20000", s.RankEstimate)
	}
	low := -4
	if s := c.Start("s", &low, seedBounds); s.RankEstimate != 1 {
		t.Errorf("estimate = %d, want 1", s.RankEstimate)
	}
	if s := c.Start("s", nil, seedBounds); s.RankEstimate != DefaultStartRank || s.Phase != PhaseCoarse || s.StepBound != 1500 {
		t.Errorf("default start: %+v", s)
	}
}

func TestResolveTarget_SparseRepository(t *testing.T) {
	repo := itembank.MustMemory([]itembank.Item{
		{ID: "a", Word: "a", Gloss: "first", Rank: 1},
		{ID: "b", Word: "b", Gloss: "second", Rank: 5000},
	})
	var buf bytes.Buffer
	var subs [][2]int
	c := newController(t, repo, Options{
		Logger:       slog.New(slog.NewTextHandler(&buf, nil)),
		OnSubstitute: func(req, sub int) { subs = append(subs, [2]int{req, sub}) },
	})

	got, err := c.ResolveTarget(context.Background(), 50)
	if err != nil {
		t.Fatalf("ResolveTarget: %v", err)
	}
	if !got.Substituted || (got.Rank != 1 && got.Rank != 5000) {
		t.Errorf("got %+v, want substitution to 1 or 5000", got)
	}
	if got.Rank != 1 {
		t.Errorf("rank 50 is nearest to 1, got %d", got.Rank)
	}
	if !strings.Contains(buf.String(), "event=rank_substituted") {
		t.Errorf("substitution not logged: %q", buf.String())
	}
	if len(subs) != 1 || subs[0] != [2]int{50, 1} {
		t.Errorf("OnSubstitute calls = %v", subs)
	}
}

func TestResolveTarget_NoSubstitutionInsideWindow(t *testing.T) {
	c := newController(t, nil, Options{})
	got, err := c.ResolveTarget(context.Background(), 1110)
	if err != nil {
		t.Fatalf("ResolveTarget: %v", err)
	}
	if got.Substituted || got.Rank != 1110 {
		t.Errorf("got %+v", got)
	}
}

func TestResolveTarget_EmptyRepository(t *testing.T) {
	c := newController(t, itembank.MustMemory(nil), Options{})
	_, err := c.ResolveTarget(context.Background(), 10)
	if !errors.Is(err, itembank.ErrItemNotFound) {
		t.Errorf("got %v, want ErrItemNotFound", err)
	}
}

func TestNewController_RejectsBadSchedule(t *testing.T) {
	bad := Schedule{
		{Phase: PhaseCoarse, Questions: 5, StepBound: 200},
		{Phase: PhaseFine, Questions: 7, StepBound: 200},
	}
	if _, err := NewController(itembank.Seed(), Options{Schedule: bad}); err == nil {
		t.Error("expected error for non-decreasing bounds")
	}
}
