package scoring

import (
	"errors"
	"fmt"

	"github.com/lexiworks/lexisurvey/internal/survey"
)

var (
	// ErrEmptyHistory is returned when there are no answers to score.
	ErrEmptyHistory = errors.New("scoring: no answers to score")

	// ErrInvalidDomain is returned when the rank domain is empty.
	ErrInvalidDomain = errors.New("scoring: invalid rank domain")
)

// Domain is the rank range the curve is integrated over.
type Domain struct {
	MinRank int `json:"min_rank"`
	MaxRank int `json:"max_rank"`
}

// FitSummary describes how well the fitted curve explains the answers.
type FitSummary struct {
	Method  string  `json:"method"`
	Points  int     `json:"points"`
	Brier   float64 `json:"brier"`
	LogLoss float64 `json:"log_loss"`
}

// CurvePoint is one sample of the fitted curve.
type CurvePoint struct {
	Rank float64 `json:"rank"`
	P    float64 `json:"p"`
}

// Report is the tri-metric summary of a completed session.
type Report struct {
	// Volume is the estimated number of known items: the area under the
	// fitted curve over the domain.
	Volume float64 `json:"volume"`

	// Reach is the highest answered rank at which the fitted probability
	// is still at least 0.5. Zero when there is none.
	Reach float64 `json:"reach"`

	// Density is the share of correct answers below Reach. Nil when no
	// answer lies below Reach.
	Density *float64 `json:"density"`

	Fit    FitSummary   `json:"fit"`
	Domain Domain       `json:"domain"`
	Curve  []CurvePoint `json:"curve,omitempty"`

	Answers int `json:"answers"`
	Correct int `json:"correct"`
}

type config struct {
	fitter      Fitter
	curvePoints int
}

// Option configures Summarize.
type Option func(*config)

// WithFitter selects the curve fitter. Default: NewIsotonic(0).
func WithFitter(f Fitter) Option {
	return func(c *config) { c.fitter = f }
}

// WithCurvePoints sets how many curve samples the report carries.
// Zero omits the curve.
func WithCurvePoints(n int) Option {
	return func(c *config) { c.curvePoints = n }
}

// Summarize fits a probability-of-knowing curve to history and derives
// volume, reach and density from it. It never produces a report from an
// empty history.
func Summarize(history []survey.AnswerRecord, domain Domain, opts ...Option) (Report, error) {
	if len(history) == 0 {
		return Report{}, ErrEmptyHistory
	}
	if domain.MinRank < 1 {
		domain.MinRank = 1
	}
	if domain.MaxRank < domain.MinRank {
		return Report{}, fmt.Errorf("%w: [%d, %d]", ErrInvalidDomain, domain.MinRank, domain.MaxRank)
	}

	cfg := config{fitter: NewIsotonic(0), curvePoints: 11}
	for _, opt := range opts {
		opt(&cfg)
	}

	points := pointsOf(history)
	curve, err := cfg.fitter.Fit(points)
	if err != nil {
		return Report{}, fmt.Errorf("fit %s: %w", cfg.fitter.Name(), err)
	}

	r := Report{
		Volume:  curve.Integrate(float64(domain.MinRank), float64(domain.MaxRank)),
		Fit:     summarizeFit(cfg.fitter.Name(), curve, points),
		Domain:  domain,
		Answers: len(points),
	}

	for _, p := range points {
		if p.Correct {
			r.Correct++
		}
		if curve.P(p.Rank) >= 0.5 && p.Rank > r.Reach {
			r.Reach = p.Rank
		}
	}

	below, correct := 0, 0
	for _, p := range points {
		if p.Rank < r.Reach {
			below++
			if p.Correct {
				correct++
			}
		}
	}
	if below > 0 {
		d := float64(correct) / float64(below)
		r.Density = &d
	}

	if cfg.curvePoints > 1 {
		span := float64(domain.MaxRank - domain.MinRank)
		for i := range cfg.curvePoints {
			rank := float64(domain.MinRank) + span*float64(i)/float64(cfg.curvePoints-1)
			r.Curve = append(r.Curve, CurvePoint{Rank: rank, P: curve.P(rank)})
		}
	}
	return r, nil
}

func pointsOf(history []survey.AnswerRecord) []Point {
	out := make([]Point, len(history))
	for i, h := range history {
		rank := h.ItemRank
		if rank == 0 {
			rank = h.TargetRank
		}
		out[i] = Point{Rank: float64(rank), Correct: h.Correct}
	}
	return out
}
