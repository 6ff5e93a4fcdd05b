package build

import (
	"sync"
	"time"
)

// RunMetrics tracks packaging runs across the lifetime of a Packager.
// Watch mode reports it after each rebuild.
type RunMetrics struct {
	TotalRuns       int64
	SuccessfulRuns  int64
	FailedRuns      int64
	AssetsCopied    int64
	FilesRemoved    int64
	AverageDuration time.Duration
	TotalDuration   time.Duration
	LastRun         time.Time
	mutex           sync.RWMutex
}

// NewRunMetrics creates a new run metrics tracker.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{}
}

// RecordRun records one run. report may be nil when the run failed before
// producing one.
func (rm *RunMetrics) RecordRun(report *Report, duration time.Duration, err error) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	rm.TotalRuns++
	rm.TotalDuration += duration
	rm.LastRun = time.Now()

	if err != nil {
		rm.FailedRuns++
	} else {
		rm.SuccessfulRuns++
	}
	if report != nil {
		rm.AssetsCopied += int64(report.AssetsCopied)
		rm.FilesRemoved += int64(report.FilesRemoved)
	}

	rm.AverageDuration = rm.TotalDuration / time.Duration(rm.TotalRuns)
}

// GetSnapshot returns a copy of the current metrics.
func (rm *RunMetrics) GetSnapshot() RunMetrics {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()
	return RunMetrics{
		TotalRuns:       rm.TotalRuns,
		SuccessfulRuns:  rm.SuccessfulRuns,
		FailedRuns:      rm.FailedRuns,
		AssetsCopied:    rm.AssetsCopied,
		FilesRemoved:    rm.FilesRemoved,
		AverageDuration: rm.AverageDuration,
		TotalDuration:   rm.TotalDuration,
		LastRun:         rm.LastRun,
	}
}

// GetSuccessRate returns the success rate as a percentage.
func (rm *RunMetrics) GetSuccessRate() float64 {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	if rm.TotalRuns == 0 {
		return 0.0
	}
	return float64(rm.SuccessfulRuns) / float64(rm.TotalRuns) * 100.0
}
