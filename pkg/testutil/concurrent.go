// Package testutil holds helpers shared by package tests.
package testutil

import (
	"sync"
	"sync/atomic"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Accepted int32
	Rejected int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Accepted + r.Rejected
}

// RunConcurrent executes fn in parallel goroutines, released together, and
// counts how many reported acceptance.
func RunConcurrent(goroutines int, fn func(idx int) bool) *ConcurrentResult {
	var (
		wg                 sync.WaitGroup
		start              = make(chan struct{})
		accepted, rejected atomic.Int32
	)

	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			if fn(idx) {
				accepted.Add(1)
			} else {
				rejected.Add(1)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Accepted: accepted.Load(),
		Rejected: rejected.Load(),
	}
}
