package scriptload

import "sync"

// OptimizeObserver is notified each time a load changes the optimize flag.
type OptimizeObserver func(enabled bool)

// WithOptimizeObserver registers observer on the load's execution state.
func WithOptimizeObserver(observer OptimizeObserver) Option {
	return func(cfg *loadConfig) {
		cfg.optimizeObserver = observer
	}
}

// ExecutionState holds the optimize flag consulted by method engines. It
// belongs to a single load.
type ExecutionState struct {
	mu       sync.Mutex
	optimize bool
	observer OptimizeObserver
}

func newExecutionState(optimize bool, observer OptimizeObserver) *ExecutionState {
	return &ExecutionState{optimize: optimize, observer: observer}
}

// Optimize reports the current flag.
func (s *ExecutionState) Optimize() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.optimize
}

// Override sets the flag and returns a func restoring the previous value.
// Callers defer the restore so it also runs when the body fails or panics.
func (s *ExecutionState) Override(enabled bool) (restore func()) {
	previous := s.set(enabled)
	return func() {
		s.set(previous)
	}
}

func (s *ExecutionState) set(enabled bool) (previous bool) {
	s.mu.Lock()
	previous = s.optimize
	s.optimize = enabled
	observer := s.observer
	s.mu.Unlock()
	if observer != nil {
		observer(enabled)
	}
	return previous
}
