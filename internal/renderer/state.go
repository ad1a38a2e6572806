package renderer

import (
	"fmt"
	"sync"
)

// sharedState is everything the render loop shares with other goroutines.
// content and layoutDirty are always updated together.
type sharedState struct {
	mu sync.Mutex

	layoutDirty bool
	content     Content
	terminate   bool

	// poisoned holds the reason the state became inconsistent. Once set,
	// every access fails with ErrSynchronization.
	poisoned string
}

func newSharedState() *sharedState {
	return &sharedState{layoutDirty: true}
}

// with runs fn under the lock. A panic inside fn poisons the state and is
// reported as a synchronization failure instead of unwinding the caller.
func (s *sharedState) with(op string, fn func()) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned != "" {
		return syncError(op, s.poisoned)
	}

	defer func() {
		if r := recover(); r != nil {
			s.poisoned = fmt.Sprintf("panic while render state was locked: %v", r)
			err = syncError(op, s.poisoned)
		}
	}()

	fn()
	return nil
}

// replace swaps in new content and marks the layout dirty.
func (s *sharedState) replace(c Content) error {
	return s.with("replace-content", func() {
		s.content = c
		s.layoutDirty = true
	})
}

// markDirty forces a relayout on the next frame.
func (s *sharedState) markDirty(op string) error {
	return s.with(op, func() {
		s.layoutDirty = true
	})
}

// takeDirty reports and clears the layout dirty flag.
func (s *sharedState) takeDirty() (bool, error) {
	var dirty bool
	err := s.with("relayout", func() {
		dirty = s.layoutDirty
		s.layoutDirty = false
	})
	return dirty, err
}

// requestTermination sets the terminate flag. It never fails: termination
// must remain possible after the state has been poisoned.
func (s *sharedState) requestTermination() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminate = true
}

// terminating reports whether termination was requested.
func (s *sharedState) terminating() (bool, error) {
	var stop bool
	err := s.with("check-terminate", func() {
		stop = s.terminate
	})
	return stop, err
}
