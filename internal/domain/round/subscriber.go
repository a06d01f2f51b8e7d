package round

import (
	"sync"

	"github.com/okian/breedquiz/internal/domain/model"
)

// subscriber buffers states without bound so publishing never blocks, and
// delivers them in order on out.
type subscriber struct {
	mu      sync.Mutex
	pending []model.RoundState
	closed  bool

	wake chan struct{}
	quit chan struct{}
	out  chan model.RoundState
}

func newSubscriber() *subscriber {
	return &subscriber{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		out:  make(chan model.RoundState),
	}
}

func (s *subscriber) push(st model.RoundState) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, st)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// close stops delivery; it reports whether this call did the closing.
func (s *subscriber) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.pending = nil
	close(s.quit)
	return true
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, st := range batch {
			select {
			case s.out <- st:
			case <-s.quit:
				return
			}
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-s.wake:
		case <-s.quit:
			return
		}
	}
}
