package detest

import (
	"godex/domain/core"
	"godex/domain/detest"
	"godex/internal/correction"

	"go.uber.org/zap"
)

// Options configures test construction and the drivers.
type Options struct {
	Method           string
	Policy           detest.CorrectionPolicy
	Logger           *zap.Logger
	Workers          int
	KeepTests        bool
	Lazy             bool
	Logged           bool
	Fitter           detest.Fitter
	NoiseModel       string
	SizeFactors      []float64
	Init             string
	TrainingStrategy string
	Description      detest.SampleDescription
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithCorrection sets the multiple testing correction method.
func WithCorrection(method string) Option {
	return func(o *Options) {
		o.Method = method
	}
}

// WithPolicy sets how multi-test tensors are corrected.
func WithPolicy(p detest.CorrectionPolicy) Option {
	return func(o *Options) {
		o.Policy = p
	}
}

// WithLogger sets the logger used for non-fatal anomalies.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithWorkers bounds how many sub-tests run at once.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithKeepTests retains the individual sub-tests of multi-test results.
func WithKeepTests(keep bool) Option {
	return func(o *Options) {
		o.KeepTests = keep
	}
}

// WithLazy selects on-demand evaluation of pairwise z-tests.
func WithLazy(lazy bool) Option {
	return func(o *Options) {
		o.Lazy = lazy
	}
}

// WithLogged marks the data as already log transformed, so fold changes of
// raw-data tests are mean differences.
func WithLogged(logged bool) Option {
	return func(o *Options) {
		o.Logged = logged
	}
}

// WithFitter sets the GLM fitting collaborator for model-based tests.
func WithFitter(f detest.Fitter) Option {
	return func(o *Options) {
		o.Fitter = f
	}
}

// WithNoiseModel sets the noise model passed to the fitter.
func WithNoiseModel(name string) Option {
	return func(o *Options) {
		o.NoiseModel = name
	}
}

// WithSizeFactors sets per-observation size factors.
func WithSizeFactors(sf []float64) Option {
	return func(o *Options) {
		o.SizeFactors = sf
	}
}

// WithTraining sets the fitter initialization and training strategy.
func WithTraining(init, strategy string) Option {
	return func(o *Options) {
		o.Init = init
		o.TrainingStrategy = strategy
	}
}

// WithSampleDescription attaches annotation columns used to label fold-change
// matrices.
func WithSampleDescription(sd detest.SampleDescription) Option {
	return func(o *Options) {
		o.Description = sd
	}
}

// resolve applies opts over the defaults. policy is the default correction
// policy of the result being built.
func resolve(policy detest.CorrectionPolicy, opts []Option) (Options, error) {
	o := Options{
		Method:  correction.DefaultMethod,
		Policy:  policy,
		Workers: 1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Workers < 1 {
		return o, core.NewConfigError("workers", "must be at least 1")
	}
	if _, err := correction.Lookup(o.Method); err != nil {
		return o, err
	}
	if o.Policy == "" {
		o.Policy = detest.CorrectGlobal
	}
	if _, err := detest.ParseCorrectionPolicy(string(o.Policy)); err != nil {
		return o, err
	}
	if o.NoiseModel != "" {
		if err := detest.ValidNoiseModel(o.NoiseModel); err != nil {
			return o, err
		}
	}
	return o, nil
}

// forward turns resolved options back into a list for nested constructors.
func (o Options) forward() []Option {
	return []Option{func(dst *Options) { *dst = o }}
}
