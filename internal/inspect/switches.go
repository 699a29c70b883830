// Package inspect logs request and session metadata while a runtime
// switch is on.
package inspect

import (
	"errors"
	"sync"
)

const EnableSessionInspect = "enable_session_inspect"

var ErrUnknownSwitch = errors.New("unknown switch")

// Switches are named runtime flags that can be flipped without a restart.
type Switches struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewSwitches registers the known switches with their initial values.
func NewSwitches(initial map[string]bool) *Switches {
	flags := make(map[string]bool, len(initial))
	for name, on := range initial {
		flags[name] = on
	}
	return &Switches{flags: flags}
}

func (s *Switches) Active(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[name]
}

func (s *Switches) Set(name string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[name]; !ok {
		return ErrUnknownSwitch
	}
	s.flags[name] = on
	return nil
}

// Snapshot returns the current values, suitable for expvar.
func (s *Switches) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(s.flags))
	for name, on := range s.flags {
		out[name] = on
	}
	return out
}
