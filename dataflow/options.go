package dataflow

import "github.com/rs/zerolog"

// graphOptions holds configuration resolved at construction time.
type graphOptions struct {
	log zerolog.Logger
}

// Option configures a Graph.
type Option interface {
	apply(*graphOptions)
}

type optionFunc func(*graphOptions)

func (f optionFunc) apply(o *graphOptions) { f(o) }

// WithLogger attaches a logger the graph uses to report handler panics and
// handler errors. Without this option, logging is disabled.
func WithLogger(log zerolog.Logger) Option {
	return optionFunc(func(o *graphOptions) { o.log = log })
}

func resolveOptions(opts []Option) *graphOptions {
	cfg := &graphOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	return cfg
}
