// Package metrics is a tiny facade over an optional metrics backend.
// The rest of the application calls the package-level helpers; with no
// backend configured they are no-ops.
package metrics

import (
	"sync"
	"time"
)

// Backend receives the application's metric events.
type Backend interface {
	// IncCounter adds delta to a named counter. Tags are "key:value" pairs.
	IncCounter(name string, delta float64, tags ...string)

	// ObserveDuration records one latency sample for a named operation.
	ObserveDuration(name string, d time.Duration, tags ...string)

	// Flush pushes buffered metrics out. Called at shutdown.
	Flush() error
}

var (
	mu      sync.RWMutex
	backend Backend
)

// SetBackend installs the process-wide backend. Pass nil to disable.
func SetBackend(b Backend) {
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, tags ...string) {
	if b := current(); b != nil {
		b.IncCounter(name, delta, tags...)
	}
}

func ObserveDuration(name string, d time.Duration, tags ...string) {
	if b := current(); b != nil {
		b.ObserveDuration(name, d, tags...)
	}
}

// Flush flushes the configured backend, if any.
func Flush() error {
	if b := current(); b != nil {
		return b.Flush()
	}
	return nil
}
