package csrf

import "sync/atomic"

// Metrics tracks token subsystem counters.
type Metrics struct {
	TokenGenerated    atomic.Int64
	ValidationSuccess atomic.Int64
	ValidationFailed  atomic.Int64
}

// Stats returns a snapshot of the protector's counters.
func (p *Protector) Stats() (generated, ok, failed int64) {
	return p.metrics.TokenGenerated.Load(),
		p.metrics.ValidationSuccess.Load(),
		p.metrics.ValidationFailed.Load()
}
