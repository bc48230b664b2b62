package quiz

import (
	"context"
	"errors"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/lexiworks/lexisurvey/internal/assessment"
	"github.com/lexiworks/lexisurvey/internal/questiongen"
	"github.com/lexiworks/lexisurvey/internal/router"
	"github.com/lexiworks/lexisurvey/internal/screen"
	"github.com/lexiworks/lexisurvey/internal/ui/components"
	"github.com/lexiworks/lexisurvey/internal/ui/layout"
)

// QuestionTime is how long the learner has for each question. When it
// runs out an empty selection is submitted, which scores as incorrect.
const QuestionTime = 12 * time.Second

const tickInterval = time.Second

// Client is the part of assessment.Service the screens drive.
type Client interface {
	StartSession(ctx context.Context, hint *int) (*assessment.StartResult, error)
	SubmitAnswer(ctx context.Context, req assessment.SubmitRequest) (*assessment.StepResult, error)
}

// tickMsg is tagged with the question it was scheduled for so that ticks
// from an earlier question are dropped.
type tickMsg struct {
	ref string
}

type answerResultMsg struct {
	step *assessment.StepResult
	err  error
}

// QuizScreen presents questions one at a time and submits answers.
type QuizScreen struct {
	client Client
	finish func(*assessment.StepResult) screen.Screen
	now    func() time.Time

	sessionID string
	question  *questiongen.Question
	mc        components.MultiChoice
	shownAt   time.Time
	remaining time.Duration

	answered int
	total    int

	submitting bool
	pending    *assessment.SubmitRequest
	errMsg     string
	aborted    bool
}

var _ screen.Screen = (*QuizScreen)(nil)
var _ screen.KeyHintProvider = (*QuizScreen)(nil)
var _ screen.ProgressProvider = (*QuizScreen)(nil)

// New creates a QuizScreen for a started session. finish builds the
// screen shown once the session is complete.
func New(client Client, start *assessment.StartResult, finish func(*assessment.StepResult) screen.Screen) *QuizScreen {
	q := &QuizScreen{
		client:    client,
		finish:    finish,
		now:       time.Now,
		sessionID: start.SessionID,
		total:     start.Total,
	}
	q.show(start.Question)
	return q
}

func (q *QuizScreen) Title() string {
	return "Vocabulary Survey"
}

func (q *QuizScreen) Init() tea.Cmd {
	return q.tick()
}

func (q *QuizScreen) Progress() layout.Progress {
	p := layout.Progress{Answered: q.answered, Total: q.total}
	if q.question != nil {
		p.Phase = string(q.question.Phase)
	}
	return p
}

func (q *QuizScreen) KeyHints() []layout.KeyHint {
	switch {
	case q.aborted:
		return []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	case q.errMsg != "":
		return []layout.KeyHint{{Key: "R", Description: "Retry"}, {Key: "Ctrl+C", Description: "Quit"}}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Move"},
		{Key: "A-" + components.Label(max(len(q.mc.Choices)-1, 0)), Description: "Pick"},
		{Key: "Enter", Description: "Submit"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (q *QuizScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return q, q.handleTick(msg)

	case answerResultMsg:
		return q, q.handleResult(msg)

	case tea.KeyPressMsg:
		return q, q.handleKey(msg)
	}
	return q, nil
}

func (q *QuizScreen) handleTick(msg tickMsg) tea.Cmd {
	if q.question == nil || msg.ref != q.question.Ref || q.submitting || q.errMsg != "" {
		return nil
	}
	q.remaining -= tickInterval
	if q.remaining <= 0 {
		q.remaining = 0
		return q.submit(nil)
	}
	return q.tick()
}

func (q *QuizScreen) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	if q.aborted || q.submitting {
		return nil
	}
	if q.errMsg != "" {
		if msg.String() == "r" && q.pending != nil {
			q.errMsg = ""
			return q.send(*q.pending)
		}
		return nil
	}

	q.mc, _ = q.mc.Update(msg)
	if id := q.mc.SelectedID(); id != "" {
		return q.submit([]string{id})
	}
	return nil
}

func (q *QuizScreen) submit(selected []string) tea.Cmd {
	req := assessment.SubmitRequest{
		SessionID:         q.sessionID,
		QuestionRef:       q.question.Ref,
		SelectedOptionIDs: selected,
		TimeTaken:         min(q.now().Sub(q.shownAt), QuestionTime),
	}
	q.pending = &req
	return q.send(req)
}

func (q *QuizScreen) send(req assessment.SubmitRequest) tea.Cmd {
	q.submitting = true
	client := q.client
	return func() tea.Msg {
		step, err := client.SubmitAnswer(context.Background(), req)
		return answerResultMsg{step: step, err: err}
	}
}

func (q *QuizScreen) handleResult(msg answerResultMsg) tea.Cmd {
	q.submitting = false
	if msg.err != nil {
		if errors.Is(msg.err, assessment.ErrAssessmentAborted) {
			q.aborted = true
		}
		q.errMsg = msg.err.Error()
		return nil
	}

	step := msg.step
	q.pending = nil
	q.answered = step.QuestionCount
	q.total = step.Total
	if step.Report != nil || step.Question == nil {
		next := q.finish(step)
		return func() tea.Msg { return router.ReplaceScreenMsg{Screen: next} }
	}
	q.show(step.Question)
	return q.tick()
}

func (q *QuizScreen) show(question *questiongen.Question) {
	q.question = question
	q.remaining = QuestionTime
	q.shownAt = q.now()
	if question == nil {
		q.mc = components.MultiChoice{}
		return
	}
	choices := make([]components.Choice, 0, len(question.Options))
	for _, o := range question.Options {
		choices = append(choices, components.Choice{ID: o.ID, Text: o.Text})
	}
	q.mc = components.NewMultiChoice(question.Word, choices)
}

func (q *QuizScreen) tick() tea.Cmd {
	if q.question == nil {
		return nil
	}
	ref := q.question.Ref
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg{ref: ref}
	})
}
