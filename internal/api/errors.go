package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lexiworks/lexisurvey/internal/assessment"
	"github.com/lexiworks/lexisurvey/internal/itembank"
	"github.com/lexiworks/lexisurvey/internal/store"
)

// errInvalidRequest marks body decoding and validation failures.
var errInvalidRequest = errors.New("invalid request")

type statusError struct {
	status int
	code   string
}

// classify maps an error to its HTTP status and stable code.
func classify(err error) statusError {
	switch {
	case errors.Is(err, assessment.ErrNoActiveSession):
		return statusError{http.StatusNotFound, "no_active_session"}
	case errors.Is(err, assessment.ErrStaleQuestion):
		return statusError{http.StatusBadRequest, "stale_question"}
	case errors.Is(err, errInvalidRequest):
		return statusError{http.StatusUnprocessableEntity, "invalid_request"}
	case errors.Is(err, assessment.ErrInvalidAnswer):
		return statusError{http.StatusUnprocessableEntity, "invalid_answer"}
	case errors.Is(err, store.ErrConflict):
		return statusError{http.StatusConflict, "conflict"}
	case errors.Is(err, assessment.ErrNotComplete):
		return statusError{http.StatusConflict, "not_complete"}
	case errors.Is(err, assessment.ErrAssessmentAborted):
		return statusError{http.StatusGone, "assessment_aborted"}
	case errors.Is(err, itembank.ErrUnavailable):
		return statusError{http.StatusServiceUnavailable, "repository_unavailable"}
	default:
		return statusError{http.StatusInternalServerError, "internal"}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := classify(err)
	msg := err.Error()
	if se.status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"event", "http_error",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		msg = http.StatusText(se.status)
	}
	writeJSON(w, se.status, ErrorResponse{Error: msg, Code: se.code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
