package sim

import (
	"log"
	"sync"

	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

// Actuator is the bench stand-in for the hardware safety relay. It logs
// edges only, not every cycle.
type Actuator struct {
	mu      sync.Mutex
	tripped bool
}

func NewActuator() *Actuator { return &Actuator{} }

func (a *Actuator) Apply(tripped bool) error {
	a.mu.Lock()
	changed := a.tripped != tripped
	a.tripped = tripped
	a.mu.Unlock()
	if changed {
		if tripped {
			log.Printf("safety: local action engaged")
		} else {
			log.Printf("safety: local action released")
		}
	}
	return nil
}

// Tripped reports the last applied verdict.
func (a *Actuator) Tripped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tripped
}

var _ ports.Actuator = (*Actuator)(nil)
