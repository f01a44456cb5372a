package search

import (
	"sync"
	"sync/atomic"

	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
)

// run is the state shared by the workers of one search. It implements worker.Coordinator.
type run struct {
	stop      atomic.Bool
	claimed   atomic.Bool
	result    atomic.Pointer[types.MatchResult]
	attempts  atomic.Uint64
	cancelled atomic.Int32

	mu      sync.Mutex
	closest *types.Candidate

	failOnce sync.Once
	failErr  error
}

func newRun() *run {
	return &run{}
}

func (r *run) Stopped() bool {
	return r.stop.Load()
}

// Claim publishes the first match; later claims are discarded.
func (r *run) Claim(result *types.MatchResult) bool {
	if !r.claimed.CompareAndSwap(false, true) {
		return false
	}
	r.result.Store(result)
	r.stop.Store(true)
	return true
}

func (r *run) AddAttempts(n uint64) {
	r.attempts.Add(n)
}

func (r *run) Offer(c types.Candidate) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closest == nil || c.MatchedNibbles > r.closest.MatchedNibbles {
		r.closest = &c
	}
	return r.closest.MatchedNibbles
}

func (r *run) bestCandidate() *types.Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closest == nil {
		return nil
	}
	c := *r.closest
	return &c
}

// fail records the first fatal error and stops every worker.
func (r *run) fail(err error) {
	r.failOnce.Do(func() {
		r.failErr = err
	})
	r.stop.Store(true)
}
