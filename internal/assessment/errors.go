package assessment

import "errors"

var (
	// ErrNoActiveSession is returned for unknown sessions and for new
	// answers to a completed session. The caller must start over.
	ErrNoActiveSession = errors.New("no such active session")

	// ErrStaleQuestion is returned when the question ref is neither the
	// pending question nor the last answered one.
	ErrStaleQuestion = errors.New("question is not pending for this session")

	// ErrInvalidAnswer is returned when a selected option id does not
	// belong to the pending question.
	ErrInvalidAnswer = errors.New("selected option does not belong to the question")

	// ErrAssessmentAborted is returned once a session has ended on a
	// fatal error. No report is ever produced for it.
	ErrAssessmentAborted = errors.New("unable to complete assessment")

	// ErrNotComplete is returned when results are requested early.
	ErrNotComplete = errors.New("assessment is not complete")
)
