package util

import "runtime"

// ReasonableWorkerCount picks a default number of simulation workers:
// one per GOMAXPROCS, clamped to [1..jobs]. Simulations are CPU bound, so
// more workers than processors only adds scheduling overhead.
func ReasonableWorkerCount(jobs int) int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	if jobs > 0 && n > jobs {
		n = jobs
	}
	return n
}
