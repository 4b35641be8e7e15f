// Package resource bounds the memory held by in-flight chunks and the rate
// at which input is scanned.
//
// Memory tracking uses a weighted semaphore for the hard limit and atomic
// counters for usage and peak tracking. ReserveMemory blocks until the
// reservation fits; AcquireMemory is the non-blocking variant:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 64 << 20,
//	})
//
//	if err := rc.ReserveMemory(ctx, int64(len(chunk))); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(int64(len(chunk)))
//
// A nil *Controller is valid and imposes no limits.
package resource
