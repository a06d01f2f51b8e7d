// Package picker selects the target breed and the multiple-choice options of a round.
package picker

import (
	"math/rand"
	"sync"
	"time"

	"github.com/okian/breedquiz/internal/domain/model"
)

// MaxDistractors is the number of wrong answers offered next to the target.
const MaxDistractors = 2

// Option applies a configuration option to the Picker.
type Option func(*Picker)

// WithSeed makes selection reproducible.
func WithSeed(seed int64) Option {
	return func(p *Picker) {
		p.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // quiz selection, not security sensitive
	}
}

// WithSource drives selection from an arbitrary random source.
func WithSource(src rand.Source) Option {
	return func(p *Picker) {
		if src != nil {
			p.rng = rand.New(src) //nolint:gosec // quiz selection, not security sensitive
		}
	}
}

// Round is the outcome of a pick.
type Round struct {
	Target  string
	Options []string // target plus distractors, shuffled
}

// Picker draws rounds from a breed list. It is safe for concurrent use; the
// output is a pure function of the random sequence.
type Picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Picker seeded from the clock unless an option says otherwise.
func New(opts ...Option) *Picker {
	p := &Picker{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // quiz selection, not security sensitive
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pick selects a target uniformly from breeds, up to MaxDistractors distinct
// other breeds without replacement, and returns them in shuffled order.
func (p *Picker) Pick(breeds []string) (Round, error) {
	pool := unique(breeds)
	if len(pool) == 0 {
		return Round{}, model.InvalidInputError("cannot pick a round from an empty breed list")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ti := p.rng.Intn(len(pool))
	target := pool[ti]
	pool[ti] = pool[len(pool)-1]
	pool = pool[:len(pool)-1]

	options := make([]string, 0, MaxDistractors+1)
	options = append(options, target)
	for len(options) <= MaxDistractors && len(pool) > 0 {
		i := p.rng.Intn(len(pool))
		options = append(options, pool[i])
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}

	p.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return Round{Target: target, Options: options}, nil
}

// unique copies breeds dropping empty and repeated names, keeping first-seen order.
func unique(breeds []string) []string {
	seen := make(map[string]struct{}, len(breeds))
	out := make([]string, 0, len(breeds))
	for _, b := range breeds {
		if b == "" {
			continue
		}
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}
