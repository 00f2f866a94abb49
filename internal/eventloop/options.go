package eventloop

// loopOptions holds configuration resolved at construction time.
type loopOptions struct {
	tickBudget int
}

// Option configures a Loop.
type Option interface {
	apply(*loopOptions)
}

type optionFunc func(*loopOptions)

func (f optionFunc) apply(o *loopOptions) { f(o) }

// WithTickBudget bounds how many due timers fire per wake before the loop
// goes back to select and re-checks for shutdown; any timers still due are
// left in the heap and picked up on the very next wake. I/O callbacks
// already run one per wake regardless, so the budget has no separate
// effect on them. Non-positive values disable the budget (drain every due
// timer each wake).
func WithTickBudget(n int) Option {
	return optionFunc(func(o *loopOptions) { o.tickBudget = n })
}

func resolveOptions(opts []Option) *loopOptions {
	cfg := &loopOptions{tickBudget: 0}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	return cfg
}
