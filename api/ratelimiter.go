package api

import (
	"sync"
	"time"
)

const (
	// How many requests a single host may make within one window.
	requestsPerWindow = 30
	windowLength      = time.Minute
)

// ratelimiter throttles API calls per remote host.
type ratelimiter struct {
	mu       sync.Mutex
	requests map[string]int
}

// newRatelimiter starts a ratelimiter that resets its counters every window
// until the stop channel is closed.
func newRatelimiter(stopChan chan struct{}) *ratelimiter {
	rl := &ratelimiter{
		requests: make(map[string]int),
	}

	go func() {
		for {
			select {
			case <-stopChan:
				return
			case <-time.After(windowLength):
				rl.mu.Lock()
				rl.requests = make(map[string]int)
				rl.mu.Unlock()
			}
		}
	}()

	return rl
}

// allow reports whether the host may make another request in the current
// window and counts it.
func (rl *ratelimiter) allow(host string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.requests[host]++
	return rl.requests[host] <= requestsPerWindow
}
