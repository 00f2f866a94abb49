package supervisor

import "github.com/rs/zerolog"

// supervisorOptions holds configuration resolved at construction time.
type supervisorOptions struct {
	log zerolog.Logger
}

// Option configures a Supervisor.
type Option interface {
	apply(*supervisorOptions)
}

type optionFunc func(*supervisorOptions)

func (f optionFunc) apply(o *supervisorOptions) { f(o) }

// WithLogger attaches a logger used to report escalation and monitor-loop
// events. Without this option, logging is disabled.
func WithLogger(log zerolog.Logger) Option {
	return optionFunc(func(o *supervisorOptions) { o.log = log })
}

func resolveOptions(opts []Option) *supervisorOptions {
	cfg := &supervisorOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	return cfg
}
