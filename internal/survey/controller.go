package survey

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lexiworks/lexisurvey/internal/itembank"
)

const (
	// DefaultStartRank is used when the learner gives no rank hint.
	DefaultStartRank = 2000

	// DefaultWindow is the half-width searched around a target rank.
	DefaultWindow = 20
)

// Options configures a Controller.
type Options struct {
	Schedule  Schedule
	StartRank int
	Window    int
	Logger    *slog.Logger

	// OnSubstitute is called when a requested rank has no items nearby.
	OnSubstitute func(requested, substituted int)
}

// Controller drives the phase schedule and the rank estimate.
type Controller struct {
	repo      itembank.Repository
	schedule  Schedule
	startRank int
	window    int
	logger    *slog.Logger
	onSub     func(requested, substituted int)
}

// NewController creates a Controller. Zero options take defaults.
func NewController(repo itembank.Repository, opts Options) (*Controller, error) {
	if opts.Schedule == nil {
		opts.Schedule = DefaultSchedule()
	}
	if err := opts.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	if opts.StartRank <= 0 {
		opts.StartRank = DefaultStartRank
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		repo:      repo,
		schedule:  opts.Schedule,
		startRank: opts.StartRank,
		window:    opts.Window,
		logger:    opts.Logger,
		onSub:     opts.OnSubstitute,
	}, nil
}

// Schedule returns the controller's schedule.
func (c *Controller) Schedule() Schedule { return c.schedule }

// Window returns the half-width searched around target ranks.
func (c *Controller) Window() int { return c.window }

// Start returns a fresh in-progress session. hint, when set, replaces the
// default start rank; either is clamped to bounds.
func (c *Controller) Start(id string, hint *int, bounds itembank.Bounds) Session {
	rank := c.startRank
	if hint != nil {
		rank = *hint
	}
	first := c.schedule[0]
	rank = bounds.Clamp(rank)
	return Session{
		ID:           id,
		Status:       StatusInProgress,
		Phase:        first.Phase,
		RankEstimate: rank,
		StepBound:    first.StepBound,
		StartRank:    rank,
		MinRank:      max(bounds.MinRank, 1),
		MaxRank:      bounds.MaxRank,
	}
}

// Advance applies one answer and returns the updated session. s is not
// modified. The step used is the bound of the phase the question was
// asked in; the next phase and bound are derived only from the new
// question count.
func (c *Controller) Advance(s Session, rec AnswerRecord) (Session, error) {
	if s.Status.Closed() {
		return s, ErrSessionClosed
	}
	total := c.schedule.Total()
	if s.QuestionCount >= total {
		return s, ErrSessionClosed
	}

	next := s.Clone()
	asked := c.schedule.StageAt(s.QuestionCount)
	if rec.Phase == "" {
		rec.Phase = asked.Phase
	}

	if rec.Correct {
		next.RankEstimate += asked.StepBound
	} else {
		next.RankEstimate -= asked.StepBound
	}
	next.RankEstimate = c.clamp(next, next.RankEstimate)

	next.History = append(next.History, rec)
	next.QuestionCount++

	if next.QuestionCount >= total {
		next.Status = StatusComplete
		next.Phase = asked.Phase
		next.StepBound = asked.StepBound
		return next, nil
	}

	stage := c.schedule.StageAt(next.QuestionCount)
	next.Status = StatusInProgress
	next.Phase = stage.Phase
	next.StepBound = stage.StepBound
	return next, nil
}

func (c *Controller) clamp(s Session, rank int) int {
	return itembank.Bounds{MinRank: s.MinRank, MaxRank: s.MaxRank}.Clamp(rank)
}

// Target is the rank a question should be drawn from.
type Target struct {
	Requested   int
	Rank        int
	Substituted bool
}

// ResolveTarget maps the requested rank onto the repository. When no
// item lies within the window it substitutes the nearest available rank
// and logs the substitution. The session estimate is left alone.
// itembank.ErrItemNotFound means the repository is empty and is fatal.
func (c *Controller) ResolveTarget(ctx context.Context, rank int) (Target, error) {
	near, err := c.repo.FindNearRank(ctx, rank, c.window)
	if err != nil {
		return Target{}, fmt.Errorf("find near rank %d: %w", rank, err)
	}
	if len(near) > 0 {
		return Target{Requested: rank, Rank: rank}, nil
	}

	it, err := c.repo.Nearest(ctx, rank)
	if err != nil {
		return Target{}, fmt.Errorf("nearest to rank %d: %w", rank, err)
	}
	c.logger.WarnContext(ctx, "no items near requested rank, substituting nearest",
		"event", "rank_substituted",
		"requested_rank", rank,
		"substituted_rank", it.Rank,
		"window", c.window,
	)
	if c.onSub != nil {
		c.onSub(rank, it.Rank)
	}
	return Target{Requested: rank, Rank: it.Rank, Substituted: true}, nil
}
