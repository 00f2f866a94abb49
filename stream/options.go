package stream

import "github.com/rs/zerolog"

// streamOptions holds configuration resolved at construction time.
type streamOptions struct {
	log zerolog.Logger
}

// Option configures a Stream at New time.
type Option interface {
	apply(*streamOptions)
}

type optionFunc func(*streamOptions)

func (f optionFunc) apply(o *streamOptions) { f(o) }

// WithLogger attaches a logger the stream uses to report emissions
// rejected by an already-terminal state. Without this option, logging is
// disabled.
func WithLogger(log zerolog.Logger) Option {
	return optionFunc(func(o *streamOptions) { o.log = log })
}

func resolveOptions(opts []Option) *streamOptions {
	cfg := &streamOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	return cfg
}
