package status

import "time"

// StatusService wraps Registry as a Service so dependents can resolve it through the hub
type StatusService struct {
	registry *Registry
	started  time.Time
}

// NewService creates a new status service with initialized registry
func NewService() *StatusService {
	return &StatusService{
		registry: NewRegistry(),
	}
}

// Name implements Service
func (s *StatusService) Name() string {
	return "status"
}

// Dependencies implements Service
func (s *StatusService) Dependencies() []string {
	return nil
}

// Init implements Service
// args[0]: *Registry - adopt an existing registry instead of the fresh one
func (s *StatusService) Init(args ...any) error {
	if len(args) > 0 {
		if reg, ok := args[0].(*Registry); ok && reg != nil {
			s.registry = reg
		}
	}
	return nil
}

// Start implements Service
func (s *StatusService) Start() error {
	s.started = time.Now()
	s.registry.Bools.Get("status.running").Store(true)
	return nil
}

// Stop implements Service
func (s *StatusService) Stop() error {
	s.registry.Bools.Get("status.running").Store(false)
	return nil
}

// Registry returns the underlying metrics registry
func (s *StatusService) Registry() *Registry {
	return s.registry
}

// Uptime returns time since Start, zero before it
func (s *StatusService) Uptime() time.Duration {
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}
