package recovery

import "icopdf/observability"

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(err error, location Location) Action {
	return ActionFail
}

// LenientStrategy logs anomalies and lets validation continue.
type LenientStrategy struct {
	log observability.Logger
}

func NewLenientStrategy(log observability.Logger) *LenientStrategy {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &LenientStrategy{log: log}
}

func (s *LenientStrategy) OnError(err error, location Location) Action {
	s.log.Warn(err.Error(),
		observability.String("component", location.Component),
		observability.Int("image", location.ImageIndex))
	return ActionWarn
}
