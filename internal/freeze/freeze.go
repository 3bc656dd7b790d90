// Package freeze implements the one-way configuration freeze protocol.
// A Guard starts configurable; the first serviced request flips it to
// frozen, and every registered mutator checks the guard before touching
// shared state. After the flip the pipeline's shared structures are
// read-only and all reads are lock-free.
package freeze

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrFrozen is the panic value raised by mutators after freeze.
var ErrFrozen = errors.New("configuration is frozen: mutation attempted after first request")

// Guard is a one-way configurable -> frozen state machine.
// The zero value is configurable.
type Guard struct {
	frozen atomic.Bool
	once   sync.Once
	mu     sync.Mutex
}

// Freeze transitions the guard to frozen exactly once, running the given
// hooks under the guard's mutex. Concurrent callers block until the first
// caller's hooks complete; hooks never run twice.
func (g *Guard) Freeze(hooks ...func()) {
	g.once.Do(func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for _, h := range hooks {
			h()
		}
		g.frozen.Store(true)
	})
}

// Frozen reports whether the guard has been frozen.
func (g *Guard) Frozen() bool {
	return g.frozen.Load()
}

// MustBeConfigurable panics with ErrFrozen if the guard is frozen.
// Mutators call this as their first statement.
func (g *Guard) MustBeConfigurable() {
	if g.frozen.Load() {
		panic(ErrFrozen)
	}
}
