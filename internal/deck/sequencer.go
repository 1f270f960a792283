package deck

import (
	"context"
	"sync"
)

// sequencer admits work per key in issue order. Callers holding different
// keys never wait on each other.
type sequencer struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
	depth map[string]int
}

func newSequencer() *sequencer {
	return &sequencer{
		tails: make(map[string]chan struct{}),
		depth: make(map[string]int),
	}
}

// enter queues behind every earlier caller for key and blocks until they all
// released. The returned release must be called exactly once. When ctx ends
// first the caller leaves the queue without breaking it for later callers.
func (s *sequencer) enter(ctx context.Context, key string) (func(), error) {
	s.mu.Lock()
	prev := s.tails[key]
	done := make(chan struct{})
	s.tails[key] = done
	s.depth[key]++
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		if s.tails[key] == done {
			delete(s.tails, key)
		}
		if s.depth[key]--; s.depth[key] <= 0 {
			delete(s.depth, key)
		}
		s.mu.Unlock()
		close(done)
	}

	if prev == nil {
		return release, nil
	}

	select {
	case <-prev:
		return release, nil
	case <-ctx.Done():
		// Hand our slot forward only once the predecessor finished.
		go func() {
			<-prev
			release()
		}()
		return nil, ctx.Err()
	}
}

// pending reports how many callers are queued or running for key.
func (s *sequencer) pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth[key]
}
