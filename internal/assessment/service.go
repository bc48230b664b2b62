package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lexiworks/lexisurvey/internal/itembank"
	"github.com/lexiworks/lexisurvey/internal/questiongen"
	"github.com/lexiworks/lexisurvey/internal/scoring"
	"github.com/lexiworks/lexisurvey/internal/store"
	"github.com/lexiworks/lexisurvey/internal/survey"
	"github.com/lexiworks/lexisurvey/internal/telemetry"
)

// Deps are the collaborators of a Service. Repo and Store are required;
// a nil Controller or Generator is built with defaults over Repo.
type Deps struct {
	Repo       itembank.Repository
	Store      store.SessionStore
	Events     store.EventLog
	Controller *survey.Controller
	Generator  *questiongen.Generator
	Scoring    []scoring.Option
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger
}

// Service runs assessment sessions one synchronous step at a time.
// It is safe for concurrent use; steps of one session are serialized.
type Service struct {
	repo       itembank.Repository
	store      store.SessionStore
	events     store.EventLog
	controller *survey.Controller
	generator  *questiongen.Generator
	scoring    []scoring.Option
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	locks      *keyedMutex

	now   func() time.Time
	newID func() string
}

// New creates a Service.
func New(d Deps) (*Service, error) {
	if d.Repo == nil {
		return nil, errors.New("assessment: item repository is required")
	}
	if d.Store == nil {
		return nil, errors.New("assessment: session store is required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Controller == nil {
		c, err := survey.NewController(d.Repo, survey.Options{
			Logger:       d.Logger,
			OnSubstitute: d.Metrics.Substituted,
		})
		if err != nil {
			return nil, err
		}
		d.Controller = c
	}
	if d.Generator == nil {
		cfg := questiongen.DefaultConfig()
		cfg.Window = d.Controller.Window()
		d.Generator = questiongen.New(d.Repo, nil, cfg,
			questiongen.WithLogger(d.Logger),
			questiongen.WithHooks(d.Metrics.Degraded, d.Metrics.Rejected),
		)
	}
	if gw, cw := d.Generator.Window(), d.Controller.Window(); gw != cw {
		return nil, fmt.Errorf("assessment: generator window %d differs from controller window %d", gw, cw)
	}
	return &Service{
		repo:       d.Repo,
		store:      d.Store,
		events:     d.Events,
		controller: d.Controller,
		generator:  d.Generator,
		scoring:    d.Scoring,
		metrics:    d.Metrics,
		logger:     d.Logger,
		locks:      newKeyedMutex(),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}, nil
}

// StartResult is the outcome of StartSession.
type StartResult struct {
	SessionID string
	Session   survey.Session
	Question  *questiongen.Question

	// Total is the number of questions the session will ask.
	Total int
}

// SubmitRequest is one answer to a pending question.
type SubmitRequest struct {
	SessionID         string
	QuestionRef       string
	SelectedOptionIDs []string
	TimeTaken         time.Duration
}

// StepResult is the outcome of SubmitAnswer: the next question, or the
// report once the session is complete.
type StepResult struct {
	SessionID     string
	Status        survey.Status
	Phase         survey.Phase
	QuestionCount int
	Total         int

	// Correct is the score of the answer this step recorded.
	Correct bool

	// Duplicate is set when the answer had already been recorded and
	// the stored step was returned unchanged.
	Duplicate bool

	Question *questiongen.Question
	Report   *scoring.Report
}

// StatusResult describes a session without advancing it.
type StatusResult struct {
	SessionID     string
	Status        survey.Status
	Phase         survey.Phase
	QuestionCount int
	Total         int
	RankEstimate  int
	StepBound     int
	AbortReason   string

	// Question is the pending question, for clients resuming a session.
	Question *questiongen.Question
}

// StartSession creates a session and its first question. hint, when set,
// is the starting rank estimate.
func (s *Service) StartSession(ctx context.Context, hint *int) (*StartResult, error) {
	defer s.metrics.ObserveStep("start", time.Now())

	bounds, err := s.repo.Bounds(ctx)
	if err != nil {
		if errors.Is(err, itembank.ErrItemNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrAssessmentAborted, err)
		}
		return nil, fmt.Errorf("repository bounds: %w", err)
	}

	sess := s.controller.Start(s.newID(), hint, bounds)
	now := s.now()
	sess.CreatedAt, sess.UpdatedAt = now, now

	q, err := s.nextQuestion(ctx, sess)
	if err != nil {
		if errors.Is(err, itembank.ErrItemNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrAssessmentAborted, err)
		}
		return nil, err
	}

	rec := &store.Record{Session: sess, Pending: q}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.metrics.SessionOutcome(telemetry.OutcomeStarted)
	s.logger.InfoContext(ctx, "session started",
		"event", "session_started",
		"session_id", sess.ID,
		"start_rank", sess.StartRank,
	)
	payload := map[string]any{"start_rank": sess.StartRank, "min_rank": sess.MinRank, "max_rank": sess.MaxRank}
	if hint != nil {
		payload["rank_hint"] = *hint
	}
	s.appendEvent(ctx, sess.ID, store.EventSessionStarted, payload)

	return &StartResult{
		SessionID: sess.ID,
		Session:   sess,
		Question:  q,
		Total:     s.controller.Schedule().Total(),
	}, nil
}

// SubmitAnswer scores the answer to the pending question and returns the
// next step. Resubmitting the last answered question returns the stored
// step without recording anything.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitRequest) (*StepResult, error) {
	defer s.metrics.ObserveStep("answer", time.Now())

	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	res, err := s.submit(ctx, req)
	if errors.Is(err, store.ErrConflict) {
		// Another process wrote this session since we read it. Reload
		// once; a replay of the same answer then resolves as a duplicate.
		s.logger.WarnContext(ctx, "session changed concurrently, reloading",
			"event", "session_conflict",
			"session_id", req.SessionID,
		)
		res, err = s.submit(ctx, req)
	}
	return res, err
}

func (s *Service) submit(ctx context.Context, req SubmitRequest) (*StepResult, error) {
	rec, err := s.load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	switch {
	case rec.Session.Status == survey.StatusAborted:
		return nil, fmt.Errorf("session %s: %w", req.SessionID, ErrAssessmentAborted)
	case rec.LastAnsweredRef != "" && req.QuestionRef == rec.LastAnsweredRef:
		s.metrics.Duplicate()
		s.logger.InfoContext(ctx, "duplicate submission, returning stored step",
			"event", "duplicate_submission",
			"session_id", req.SessionID,
			"question_ref", req.QuestionRef,
		)
		return s.stepResult(rec, true), nil
	case rec.Session.Status.Closed():
		return nil, fmt.Errorf("session %s is %s: %w", req.SessionID, rec.Session.Status, ErrNoActiveSession)
	case rec.Pending == nil || rec.Pending.Ref != req.QuestionRef:
		return nil, fmt.Errorf("question %q: %w", req.QuestionRef, ErrStaleQuestion)
	}

	q := rec.Pending
	correct, err := score(q, req.SelectedOptionIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next, err := s.controller.Advance(rec.Session, survey.AnswerRecord{
		QuestionRef: q.Ref,
		ItemID:      q.ItemID,
		TargetRank:  q.TargetRank,
		ItemRank:    q.ItemRank,
		Correct:     correct,
		TimeTaken:   req.TimeTaken,
		Phase:       q.Phase,
		AnsweredAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("session %s: %w: %w", req.SessionID, ErrNoActiveSession, err)
	}
	next.UpdatedAt = now

	updated := *rec
	updated.Session = next
	updated.LastAnsweredRef = q.Ref
	updated.Pending = nil

	if next.Status == survey.StatusComplete {
		report, err := scoring.Summarize(next.History,
			scoring.Domain{MinRank: next.MinRank, MaxRank: next.MaxRank}, s.scoring...)
		if err != nil {
			return nil, s.abort(ctx, &updated, fmt.Errorf("summarize: %w", err))
		}
		updated.Report = &report
	} else {
		nq, err := s.nextQuestion(ctx, next)
		if errors.Is(err, itembank.ErrItemNotFound) {
			return nil, s.abort(ctx, &updated, err)
		}
		if err != nil {
			// Nothing is saved, so the estimate is untouched and the
			// same answer can be resubmitted.
			return nil, err
		}
		updated.Pending = nq
	}

	if err := s.store.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.metrics.Answer(string(q.Phase), correct)
	s.appendEvent(ctx, next.ID, store.EventAnswerRecorded, map[string]any{
		"question_ref":  q.Ref,
		"item_id":       q.ItemID,
		"item_rank":     q.ItemRank,
		"target_rank":   q.TargetRank,
		"phase":         string(q.Phase),
		"correct":       correct,
		"time_taken_ms": req.TimeTaken.Milliseconds(),
		"rank_estimate": next.RankEstimate,
		"low_quality":   q.LowQuality,
	})
	if updated.Report != nil {
		s.metrics.SessionOutcome(telemetry.OutcomeCompleted)
		s.logger.InfoContext(ctx, "session complete",
			"event", "session_completed",
			"session_id", next.ID,
			"volume", updated.Report.Volume,
			"reach", updated.Report.Reach,
		)
		payload := map[string]any{
			"volume":  updated.Report.Volume,
			"reach":   updated.Report.Reach,
			"density": nil,
		}
		if updated.Report.Density != nil {
			payload["density"] = *updated.Report.Density
		}
		s.appendEvent(ctx, next.ID, store.EventSessionCompleted, payload)
	}

	return s.stepResult(&updated, false), nil
}

// abort persists rec as aborted and returns the error for the caller.
func (s *Service) abort(ctx context.Context, rec *store.Record, cause error) error {
	rec.Session.Status = survey.StatusAborted
	rec.Pending = nil
	rec.Report = nil
	rec.AbortReason = cause.Error()

	s.logger.ErrorContext(ctx, "assessment aborted",
		"event", "session_aborted",
		"session_id", rec.Session.ID,
		"question_count", rec.Session.QuestionCount,
		"error", cause,
	)
	if err := s.store.Update(ctx, rec); err != nil {
		return fmt.Errorf("save aborted session: %w", err)
	}
	s.metrics.SessionOutcome(telemetry.OutcomeAborted)
	s.appendEvent(ctx, rec.Session.ID, store.EventSessionAborted, map[string]any{
		"reason":         rec.AbortReason,
		"question_count": rec.Session.QuestionCount,
	})
	return fmt.Errorf("session %s: %w: %w", rec.Session.ID, ErrAssessmentAborted, cause)
}

// Status reports the session's progress.
func (s *Service) Status(ctx context.Context, id string) (*StatusResult, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		SessionID:     id,
		Status:        rec.Session.Status,
		Phase:         rec.Session.Phase,
		QuestionCount: rec.Session.QuestionCount,
		Total:         s.controller.Schedule().Total(),
		RankEstimate:  rec.Session.RankEstimate,
		StepBound:     rec.Session.StepBound,
		AbortReason:   rec.AbortReason,
		Question:      rec.Pending,
	}, nil
}

// Results returns the report of a completed session. It may be called
// any number of times.
func (s *Service) Results(ctx context.Context, id string) (*scoring.Report, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case rec.Session.Status == survey.StatusAborted:
		return nil, fmt.Errorf("session %s: %w", id, ErrAssessmentAborted)
	case rec.Session.Status != survey.StatusComplete || rec.Report == nil:
		return nil, fmt.Errorf("session %s after %d answers: %w", id, rec.Session.QuestionCount, ErrNotComplete)
	}
	return rec.Report, nil
}

// Record returns the stored record of a session.
func (s *Service) Record(ctx context.Context, id string) (*store.Record, error) {
	return s.load(ctx, id)
}

// Events returns the session's lifecycle events, or nil without an
// event log.
func (s *Service) Events(ctx context.Context, id string) ([]store.Event, error) {
	if s.events == nil {
		return nil, nil
	}
	return s.events.Events(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (*store.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNoActiveSession)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return rec, nil
}

// nextQuestion builds the question for the session's current estimate.
func (s *Service) nextQuestion(ctx context.Context, sess survey.Session) (*questiongen.Question, error) {
	target, err := s.controller.ResolveTarget(ctx, sess.RankEstimate)
	if err != nil {
		return nil, err
	}

	exclude := make(map[string]bool, len(sess.History))
	for _, h := range sess.History {
		exclude[h.ItemID] = true
	}
	q, err := s.generator.Generate(ctx, questiongen.Request{
		SessionID:  sess.ID,
		TargetRank: target.Rank,
		Phase:      sess.Phase,
		Exclude:    exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("generate question at rank %d: %w", target.Rank, err)
	}
	if target.Substituted {
		q.TargetRank = target.Requested
	}
	return q, nil
}

func (s *Service) stepResult(rec *store.Record, duplicate bool) *StepResult {
	res := &StepResult{
		SessionID:     rec.Session.ID,
		Status:        rec.Session.Status,
		Phase:         rec.Session.Phase,
		QuestionCount: rec.Session.QuestionCount,
		Total:         s.controller.Schedule().Total(),
		Duplicate:     duplicate,
		Question:      rec.Pending,
		Report:        rec.Report,
	}
	if n := len(rec.Session.History); n > 0 {
		res.Correct = rec.Session.History[n-1].Correct
	}
	return res
}

func (s *Service) appendEvent(ctx context.Context, sessionID string, kind store.EventKind, payload map[string]any) {
	if s.events == nil {
		return
	}
	err := s.events.Append(ctx, store.Event{
		SessionID: sessionID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to append event",
			"event", "event_append_failed",
			"session_id", sessionID,
			"kind", kind,
			"error", err,
		)
	}
}

// score reports whether selected is exactly the correct option. Every
// selected id must belong to q.
func score(q *questiongen.Question, selected []string) (bool, error) {
	valid := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		valid[o.ID] = true
	}
	set := make(map[string]bool, len(selected))
	for _, id := range selected {
		if !valid[id] {
			return false, fmt.Errorf("option %q: %w", id, ErrInvalidAnswer)
		}
		set[id] = true
	}
	return len(set) == 1 && set[q.CorrectOptionID], nil
}
