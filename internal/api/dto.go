package api

import (
	"time"

	"github.com/lexiworks/lexisurvey/internal/assessment"
	"github.com/lexiworks/lexisurvey/internal/questiongen"
	"github.com/lexiworks/lexisurvey/internal/scoring"
	"github.com/lexiworks/lexisurvey/internal/survey"
)

type startRequest struct {
	RankHint *int `json:"rank_hint" validate:"omitempty,gte=1"`
}

type answerRequest struct {
	QuestionRef       string   `json:"question_ref" validate:"required,max=64"`
	SelectedOptionIDs []string `json:"selected_option_ids" validate:"max=16,dive,required,max=16"`
	TimeTakenMS       int64    `json:"time_taken_ms" validate:"gte=0"`
}

// OptionView is an answer option as shown to the learner.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is a question without its answer key.
type QuestionView struct {
	Ref     string       `json:"ref"`
	Word    string       `json:"word"`
	Phase   survey.Phase `json:"phase"`
	Options []OptionView `json:"options"`
}

func questionView(q *questiongen.Question) *QuestionView {
	if q == nil {
		return nil
	}
	v := &QuestionView{Ref: q.Ref, Word: q.Word, Phase: q.Phase}
	for _, o := range q.Options {
		v.Options = append(v.Options, OptionView{ID: o.ID, Text: o.Text})
	}
	return v
}

// StartResponse is returned by POST /v1/sessions.
type StartResponse struct {
	SessionID string        `json:"session_id"`
	Total     int           `json:"total"`
	Question  *QuestionView `json:"question"`
}

// StepResponse is returned by POST /v1/sessions/{id}/answers.
type StepResponse struct {
	SessionID     string          `json:"session_id"`
	Status        survey.Status   `json:"status"`
	Phase         survey.Phase    `json:"phase"`
	QuestionCount int             `json:"question_count"`
	Total         int             `json:"total"`
	Correct       bool            `json:"correct"`
	Duplicate     bool            `json:"duplicate"`
	Question      *QuestionView   `json:"question,omitempty"`
	Report        *scoring.Report `json:"report,omitempty"`
}

func stepResponse(r *assessment.StepResult) StepResponse {
	return StepResponse{
		SessionID:     r.SessionID,
		Status:        r.Status,
		Phase:         r.Phase,
		QuestionCount: r.QuestionCount,
		Total:         r.Total,
		Correct:       r.Correct,
		Duplicate:     r.Duplicate,
		Question:      questionView(r.Question),
		Report:        r.Report,
	}
}

// StatusResponse is returned by GET /v1/sessions/{id}.
type StatusResponse struct {
	SessionID     string        `json:"session_id"`
	Status        survey.Status `json:"status"`
	Phase         survey.Phase  `json:"phase"`
	QuestionCount int           `json:"question_count"`
	Total         int           `json:"total"`
	AbortReason   string        `json:"abort_reason,omitempty"`
	Question      *QuestionView `json:"question,omitempty"`
}

func statusResponse(s *assessment.StatusResult) StatusResponse {
	return StatusResponse{
		SessionID:     s.SessionID,
		Status:        s.Status,
		Phase:         s.Phase,
		QuestionCount: s.QuestionCount,
		Total:         s.Total,
		AbortReason:   s.AbortReason,
		Question:      questionView(s.Question),
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (r answerRequest) toSubmit(sessionID string) assessment.SubmitRequest {
	return assessment.SubmitRequest{
		SessionID:         sessionID,
		QuestionRef:       r.QuestionRef,
		SelectedOptionIDs: r.SelectedOptionIDs,
		TimeTaken:         time.Duration(r.TimeTakenMS) * time.Millisecond,
	}
}
