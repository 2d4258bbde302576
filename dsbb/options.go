package dsbb

type Option func(*options) error

type options struct {
	strategy Strategy
	tracer   Tracer
}

func newOptions(o ...Option) (*options, error) {
	var opts options
	for _, apply := range o {
		if err := apply(&opts); err != nil {
			return nil, err
		}
	}
	if opts.strategy == nil {
		opts.strategy = defaultStrategy{}
	}
	return &opts, nil
}

// WithStrategy sets the adversary strategy governing Byzantine parties.
// Defaults to the engine's reference strategy: minimal sender equivocation,
// echo-all-convinced propagation, honest-like decisions.
func WithStrategy(s Strategy) Option {
	return func(o *options) error {
		o.strategy = s
		return nil
	}
}

// WithTracer sets the tracer receiving diagnostic events from the engine.
// Defaults to none.
func WithTracer(t Tracer) Option {
	return func(o *options) error {
		o.tracer = t
		return nil
	}
}
