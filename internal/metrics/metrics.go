// Package metrics is a small facade the pipeline emits operational metrics
// through. The core code depends only on this package; concrete backends
// (Datadog) live in subpackages and are installed at startup.
package metrics

import "sync"

// Labels are metric dimensions, e.g. {"step": "normalize", "status": "ok"}.
type Labels map[string]string

// Backend receives metric updates. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush submits buffered metrics. Close flushes once more and releases
	// backend resources.
	Flush() error
	Close() error
}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Passing nil restores the
// default no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter increments a counter by one.
func IncCounter(name string, labels Labels) {
	current().IncCounter(name, 1, labels)
}

// AddCounter increments a counter by delta.
func AddCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of a distribution.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush submits buffered metrics on the installed backend.
func Flush() error { return current().Flush() }

// Close flushes and shuts down the installed backend.
func Close() error { return current().Close() }

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels) {}

func (nopBackend) ObserveHistogram(string, float64, Labels) {}

func (nopBackend) Flush() error { return nil }

func (nopBackend) Close() error { return nil }
