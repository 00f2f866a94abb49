package coroutine

import "github.com/rs/zerolog"

// spawnOptions holds configuration resolved at construction time.
type spawnOptions struct {
	log zerolog.Logger
}

// Option configures a Co at Spawn time.
type Option interface {
	apply(*spawnOptions)
}

type optionFunc func(*spawnOptions)

func (f optionFunc) apply(o *spawnOptions) { f(o) }

// WithLogger attaches a logger used to report a recovered entry panic.
// Without this option, logging is disabled.
func WithLogger(log zerolog.Logger) Option {
	return optionFunc(func(o *spawnOptions) { o.log = log })
}

func resolveOptions(opts []Option) *spawnOptions {
	cfg := &spawnOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	return cfg
}
