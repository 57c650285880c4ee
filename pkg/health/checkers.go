package health

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// GoroutineCountCheck fails when the number of goroutines exceeds the given
// threshold, a cheap proxy for goroutine leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		count := runtime.NumGoroutine()
		if count > threshold {
			return fmt.Errorf("too many goroutines: %d > %d", count, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when the most recent garbage collection pause
// exceeded the given threshold.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	thresholdNs := uint64(threshold.Nanoseconds())
	return func(context.Context) error {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		recent := stats.PauseNs[(stats.NumGC+255)%256]
		if recent > thresholdNs {
			return fmt.Errorf("recent GC pause too long: %s > %s",
				time.Duration(recent), threshold)
		}
		return nil
	}
}
