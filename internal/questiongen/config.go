package questiongen

import (
	"time"

	"github.com/lexiworks/lexisurvey/internal/survey"
)

// Config controls the behavior of the Generator.
type Config struct {
	// Window is the half-width around the target rank searched for the
	// target item. It must match the phase controller's window, so it is
	// set from survey.window rather than read from yaml.
	Window int `yaml:"-"`

	// FarDistance is the minimum rank distance of "far" distractors.
	FarDistance int `yaml:"far_distance"`

	// Options is the number of answer options, including the correct
	// answer and "I don't know".
	Options int `yaml:"options"`

	// MaxRelated caps related/opposite distractors per question.
	MaxRelated int `yaml:"max_related"`

	Retry RetryConfig `yaml:"retry"`

	// Validators run, in order, on every built question.
	Validators []Validator `yaml:"-"`
}

// RetryConfig configures retries of transient repository failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

// DefaultConfig returns a Config with the standard validator chain and
// recommended defaults.
func DefaultConfig() Config {
	return Config{
		Window:      survey.DefaultWindow,
		FarDistance: 1000,
		Options:     6,
		MaxRelated:  2,
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 50 * time.Millisecond,
			MaxWait:     1 * time.Second,
			Multiplier:  2.0,
		},
		Validators: []Validator{
			&StructuralValidator{},
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.FarDistance <= 0 {
		c.FarDistance = d.FarDistance
	}
	if c.Options < 3 {
		c.Options = d.Options
	}
	if c.MaxRelated <= 0 {
		c.MaxRelated = d.MaxRelated
	}
	if c.Retry.MaxAttempts < 1 {
		c.Retry = d.Retry
	}
	if c.Validators == nil {
		c.Validators = d.Validators
	}
	return c
}
