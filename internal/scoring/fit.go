package scoring

import (
	"fmt"
	"math"
)

// Point is one calibration observation.
type Point struct {
	Rank    float64
	Correct bool
}

func (p Point) y() float64 {
	if p.Correct {
		return 1
	}
	return 0
}

// Curve is a fitted probability of recognizing an item of a given rank.
type Curve interface {
	P(rank float64) float64

	// Integrate returns the area under the curve over [lo, hi].
	Integrate(lo, hi float64) float64
}

// Fitter fits a non-increasing curve to calibration points.
type Fitter interface {
	Name() string
	Fit(points []Point) (Curve, error)
}

// Config selects and tunes the fitter.
type Config struct {
	// Method is "isotonic" (default) or "logistic".
	Method string `yaml:"method"`

	// TailWidth is the rank distance over which the isotonic curve decays
	// to zero after its last observation.
	TailWidth float64 `yaml:"tail_width"`

	Logistic LogisticConfig `yaml:"logistic"`
}

// DefaultConfig returns the isotonic fitter configuration.
func DefaultConfig() Config {
	return Config{Method: MethodIsotonic, TailWidth: DefaultTailWidth}
}

// NewFitter builds the fitter described by cfg.
func NewFitter(cfg Config) (Fitter, error) {
	switch cfg.Method {
	case "", MethodIsotonic:
		return NewIsotonic(cfg.TailWidth), nil
	case MethodLogistic:
		return NewLogistic(cfg.Logistic), nil
	default:
		return nil, fmt.Errorf("unknown scoring method %q", cfg.Method)
	}
}

const probEps = 1e-6

func summarizeFit(method string, c Curve, points []Point) FitSummary {
	s := FitSummary{Method: method, Points: len(points)}
	if len(points) == 0 {
		return s
	}
	for _, pt := range points {
		p := c.P(pt.Rank)
		y := pt.y()
		s.Brier += (p - y) * (p - y)
		pc := math.Min(math.Max(p, probEps), 1-probEps)
		s.LogLoss -= y*math.Log(pc) + (1-y)*math.Log(1-pc)
	}
	n := float64(len(points))
	s.Brier /= n
	s.LogLoss /= n
	return s
}
