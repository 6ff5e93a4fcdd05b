// Package errors defines the packaging error taxonomy and the collector that
// aggregates non-fatal errors for the run report.
package errors

import (
	"sort"
	"sync"
)

// ErrorCollector collects non-fatal errors from concurrent workers.
type ErrorCollector struct {
	errors []error
	mutex  sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors: make([]error, 0),
	}
}

// AddError adds an error to the collector
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// GetAllErrors returns a copy of every collected error.
func (ec *ErrorCollector) GetAllErrors() []error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	result := make([]error, len(ec.errors))
	copy(result, ec.errors)
	return result
}

// GetErrorsByKind returns the collected errors of one kind.
func (ec *ErrorCollector) GetErrorsByKind(kind Kind) []error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	var out []error
	for _, err := range ec.errors {
		if IsKind(err, kind) {
			out = append(out, err)
		}
	}
	return out
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors) > 0
}

// Len returns the number of collected errors.
func (ec *ErrorCollector) Len() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors)
}

// Sorted returns the collected errors ordered by message. Workers append in
// completion order, which is not stable across runs.
func (ec *ErrorCollector) Sorted() []error {
	out := ec.GetAllErrors()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Error() < out[j].Error() })
	return out
}
