package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiworks/lexisurvey/internal/assessment"
	"github.com/lexiworks/lexisurvey/internal/itembank"
	"github.com/lexiworks/lexisurvey/internal/questiongen"
	"github.com/lexiworks/lexisurvey/internal/scoring"
	"github.com/lexiworks/lexisurvey/internal/store"
	"github.com/lexiworks/lexisurvey/internal/survey"
	"github.com/lexiworks/lexisurvey/internal/telemetry"
)

type testServer struct {
	*httptest.Server
	svc *assessment.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := itembank.Seed(itembank.WithSeed(3))
	reg := prometheus.NewRegistry()
	mem := store.NewMemoryStore()
	svc, err := assessment.New(assessment.Deps{
		Repo:      repo,
		Store:     mem,
		Events:    mem,
		Generator: questiongen.New(repo, nil, questiongen.DefaultConfig(), questiongen.WithSeed(3)),
		Metrics:   telemetry.New(reg),
	})
	require.NoError(t, err)

	srv := New(svc, Options{Gatherer: reg, CORSOrigins: []string{"http://localhost:3000"}})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, svc: svc}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeAs[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

// start opens a session and returns it with the server-side answer key
// of its first question.
func (ts *testServer) start(t *testing.T) (StartResponse, string) {
	t.Helper()
	resp, data := ts.do(t, http.MethodPost, "/v1/sessions", map[string]any{"rank_hint": 2000})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	sr := decodeAs[StartResponse](t, data)
	return sr, ts.correctOption(t, sr.SessionID)
}

func (ts *testServer) correctOption(t *testing.T, sessionID string) string {
	t.Helper()
	rec, err := ts.svc.Record(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, rec.Pending)
	return rec.Pending.CorrectOptionID
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, data := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
}

func TestStartSession_HidesAnswerKey(t *testing.T) {
	ts := newTestServer(t)
	resp, data := ts.do(t, http.MethodPost, "/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	assert.NotContains(t, string(data), "correct_option_id")
	assert.NotContains(t, string(data), `"kind"`)
	assert.NotContains(t, string(data), "item_id")

	sr := decodeAs[StartResponse](t, data)
	assert.NotEmpty(t, sr.SessionID)
	require.NotNil(t, sr.Question)
	assert.NotEmpty(t, sr.Question.Word)
	assert.Len(t, sr.Question.Options, 6)
	assert.Equal(t, survey.PhaseCoarse, sr.Question.Phase)
}

func TestFullSessionOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	sr, correct := ts.start(t)

	q := sr.Question
	var last StepResponse
	for i := 0; q != nil; i++ {
		require.Less(t, i, 15)
		resp, data := ts.do(t, http.MethodPost, "/v1/sessions/"+sr.SessionID+"/answers", map[string]any{
			"question_ref":        q.Ref,
			"selected_option_ids": []string{correct},
			"time_taken_ms":       1500,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		last = decodeAs[StepResponse](t, data)
		assert.True(t, last.Correct)
		assert.Equal(t, i+1, last.QuestionCount)
		q = last.Question
		if q != nil {
			correct = ts.correctOption(t, sr.SessionID)
		}
	}

	assert.Equal(t, survey.StatusComplete, last.Status)
	require.NotNil(t, last.Report)

	resp, data := ts.do(t, http.MethodGet, "/v1/sessions/"+sr.SessionID+"/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep := decodeAs[scoring.Report](t, data)
	assert.Equal(t, 15, rep.Answers)
	assert.Equal(t, last.Report.Volume, rep.Volume)

	resp, data = ts.do(t, http.MethodGet, "/v1/sessions/"+sr.SessionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeAs[StatusResponse](t, data)
	assert.Equal(t, 15, st.QuestionCount)
	assert.Equal(t, survey.StatusComplete, st.Status)
	assert.Nil(t, st.Question)
}

func TestSubmitAnswer_DuplicateIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	sr, correct := ts.start(t)

	body := map[string]any{"question_ref": sr.Question.Ref, "selected_option_ids": []string{correct}}
	path := "/v1/sessions/" + sr.SessionID + "/answers"
	_, first := ts.do(t, http.MethodPost, path, body)
	resp, second := ts.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	a := decodeAs[StepResponse](t, first)
	b := decodeAs[StepResponse](t, second)
	assert.False(t, a.Duplicate)
	assert.True(t, b.Duplicate)
	assert.Equal(t, a.Question, b.Question)
	assert.Equal(t, 1, b.QuestionCount)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	sr, _ := ts.start(t)
	answers := "/v1/sessions/" + sr.SessionID + "/answers"

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown session status", http.MethodGet, "/v1/sessions/nope", nil, http.StatusNotFound, "no_active_session"},
		{"unknown session answer", http.MethodPost, "/v1/sessions/nope/answers", map[string]any{"question_ref": "x"}, http.StatusNotFound, "no_active_session"},
		{"stale question", http.MethodPost, answers, map[string]any{"question_ref": "old"}, http.StatusBadRequest, "stale_question"},
		{"missing ref", http.MethodPost, answers, map[string]any{"selected_option_ids": []string{"a"}}, http.StatusUnprocessableEntity, "invalid_request"},
		{"negative time", http.MethodPost, answers, map[string]any{"question_ref": sr.Question.Ref, "time_taken_ms": -1}, http.StatusUnprocessableEntity, "invalid_request"},
		{"malformed json", http.MethodPost, answers, "{", http.StatusUnprocessableEntity, "invalid_request"},
		{"unknown field", http.MethodPost, answers, map[string]any{"question_ref": sr.Question.Ref, "answer": "a"}, http.StatusUnprocessableEntity, "invalid_request"},
		{"foreign option", http.MethodPost, answers, map[string]any{"question_ref": sr.Question.Ref, "selected_option_ids": []string{"zz"}}, http.StatusUnprocessableEntity, "invalid_answer"},
		{"bad hint", http.MethodPost, "/v1/sessions", map[string]any{"rank_hint": 0}, http.StatusUnprocessableEntity, "invalid_request"},
		{"results too early", http.MethodGet, "/v1/sessions/" + sr.SessionID + "/results", nil, http.StatusConflict, "not_complete"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, data := ts.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode, string(data))
			er := decodeAs[ErrorResponse](t, data)
			assert.Equal(t, tc.code, er.Code)
			assert.NotEmpty(t, er.Error)
		})
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("x: %w", assessment.ErrAssessmentAborted), http.StatusGone},
		{fmt.Errorf("x: %w", store.ErrConflict), http.StatusConflict},
		{fmt.Errorf("x: %w", itembank.ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, classify(tc.err).status, tc.err.Error())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.start(t)

	resp, data := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `lexisurvey_sessions_total{outcome="started"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/v1/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
