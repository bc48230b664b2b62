package scoring

import (
	"math"
)

const MethodLogistic = "logistic"

// rankScale keeps the logistic parameters near unit magnitude.
const rankScale = 1000.0

// LogisticConfig configures the logistic fitter.
// Zero values are replaced with sensible defaults.
type LogisticConfig struct {
	Epochs       int     `yaml:"epochs"`        // default 2000
	LearningRate float64 `yaml:"learning_rate"` // default 0.05
	Steps        int     `yaml:"steps"`         // integration steps, default 512
}

// Logistic fits p(r) = 1 / (1 + exp((r-m)/s)) by minimizing binary
// cross-entropy with Adam.
type Logistic struct {
	epochs int
	lr     float64
	steps  int
}

// NewLogistic creates a logistic fitter.
func NewLogistic(cfg LogisticConfig) *Logistic {
	l := &Logistic{epochs: cfg.Epochs, lr: cfg.LearningRate, steps: cfg.Steps}
	if l.epochs == 0 {
		l.epochs = 2000
	}
	if l.lr == 0 {
		l.lr = 0.05
	}
	if l.steps == 0 {
		l.steps = 512
	}
	return l
}

func (*Logistic) Name() string { return MethodLogistic }

// minLogS bounds the slope so separable data cannot collapse the curve
// into a step.
var minLogS = math.Log(0.05)

func (l *Logistic) Fit(points []Point) (Curve, error) {
	if len(points) == 0 {
		return nil, ErrEmptyHistory
	}

	// params[0] = m (thousands of ranks), params[1] = log s.
	var params [2]float64
	for _, p := range points {
		params[0] += p.Rank / rankScale
	}
	params[0] /= float64(len(points))

	adam := newAdam(l.lr)
	n := float64(len(points))
	for range l.epochs {
		s := math.Exp(params[1])
		var grads [2]float64
		for _, pt := range points {
			z := (pt.Rank/rankScale - params[0]) / s
			p := sigmoid(-z)
			d := p - pt.y()
			grads[0] += d / s
			grads[1] += d * z
		}
		grads[0] /= n
		grads[1] /= n
		params = adam.update(params, grads)
		if params[1] < minLogS {
			params[1] = minLogS
		}
	}

	return &logisticCurve{
		m:     params[0] * rankScale,
		s:     math.Exp(params[1]) * rankScale,
		steps: l.steps,
	}, nil
}

type logisticCurve struct {
	m, s  float64
	steps int
}

func (c *logisticCurve) P(rank float64) float64 {
	return sigmoid(-(rank - c.m) / c.s)
}

// Integrate uses the trapezoid rule.
func (c *logisticCurve) Integrate(lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	h := (hi - lo) / float64(c.steps)
	area := (c.P(lo) + c.P(hi)) / 2
	for i := 1; i < c.steps; i++ {
		area += c.P(lo + float64(i)*h)
	}
	return area * h
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// adam implements the Adam optimizer with bias correction over two
// parameters.
type adam struct {
	lr           float64
	beta1, beta2 float64
	eps          float64
	m, v         [2]float64
	step         int
}

func newAdam(lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
}

func (a *adam) update(params, grads [2]float64) [2]float64 {
	a.step++
	for i := range params {
		g := grads[i]
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g

		mHat := a.m[i] / (1 - math.Pow(a.beta1, float64(a.step)))
		vHat := a.v[i] / (1 - math.Pow(a.beta2, float64(a.step)))

		params[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
	return params
}
