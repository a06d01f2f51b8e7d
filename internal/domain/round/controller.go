// Package round drives quiz rounds: breed catalog, option picking, image
// fetch, and the single observable RoundState.
package round

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/breedquiz/internal/domain/model"
	"github.com/okian/breedquiz/internal/domain/picker"
	"github.com/okian/breedquiz/pkg/logger"
	"github.com/okian/breedquiz/pkg/metrics"
)

// BreedSource yields the breed names a round is drawn from.
type BreedSource interface {
	Get(ctx context.Context) ([]string, error)
}

// Picker chooses a target and its options.
type Picker interface {
	Pick(breeds []string) (picker.Round, error)
}

// ImageFetcher resolves a random image URL for a breed.
type ImageFetcher interface {
	ImageFor(ctx context.Context, breed string) (string, error)
}

// errStalled marks a round that ends without publishing anything.
var errStalled = errors.New("round stalled on empty catalog")

// Controller owns one RoundState. Only the most recently started round may
// publish a terminal state; results of superseded rounds are dropped.
type Controller struct {
	breeds BreedSource
	picker Picker
	images ImageFetcher
	logger logger.Logger

	roundTimeout time.Duration
	stallOnEmpty bool

	base context.Context
	stop context.CancelFunc

	mu          sync.Mutex
	state       model.RoundState
	generation  uint64
	cancelRound context.CancelFunc
	closed      bool

	active int           // round goroutines still running
	idle   chan struct{} // closed when active drops to zero

	subs    map[uint64]*subscriber
	nextSub uint64
}

// New creates a controller in the idle state. No round is started.
func New(breeds BreedSource, p Picker, images ImageFetcher, opts ...Option) *Controller {
	base, stop := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		breeds: breeds,
		picker: p,
		images: images,
		logger: logger.NamedOrNop("round"),
		base:   base,
		stop:   stop,
		state:  model.RoundState{Options: []string{}},
		idle:   idle,
		subs:   make(map[uint64]*subscriber),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartRound is an alias of NextRound.
func (c *Controller) StartRound() uint64 {
	return c.NextRound()
}

// NextRound publishes a loading state immediately, supersedes any round in
// flight and loads a new one in the background. It returns the new round
// number, or zero once the controller is closed.
func (c *Controller) NextRound() uint64 {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	if c.cancelRound != nil {
		c.cancelRound()
	}
	c.generation++
	gen := c.generation

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.roundTimeout > 0 {
		ctx, cancel = context.WithTimeout(c.base, c.roundTimeout)
	} else {
		ctx, cancel = context.WithCancel(c.base)
	}
	c.cancelRound = cancel

	if c.active == 0 {
		c.idle = make(chan struct{})
	}
	c.active++

	c.publishLocked(model.RoundState{Round: gen, Loading: true, Options: []string{}})
	c.mu.Unlock()

	metrics.RecordRoundStarted()
	c.logger.Debug(ctx, "round started", logger.Uint64("round", gen))

	go c.run(ctx, cancel, gen)
	return gen
}

// SubmitGuess reports whether guess names the current correct breed,
// ignoring case. It never changes the state.
func (c *Controller) SubmitGuess(guess string) bool {
	correct, _, _ := c.Guess(guess)
	return correct
}

// Guess checks guess against the current round and reports that round's
// number and whether it was ready, all from one snapshot of the state.
func (c *Controller) Guess(guess string) (correct bool, round uint64, ready bool) {
	c.mu.Lock()
	target := c.state.CorrectBreed
	round = c.state.Round
	c.mu.Unlock()

	if target == "" {
		return false, round, false
	}
	correct = strings.EqualFold(guess, target)
	metrics.RecordGuess(correct)
	return correct, round, true
}

// State returns a copy of the current state.
func (c *Controller) State() model.RoundState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Subscribe returns a channel that first yields the current state and then
// every transition in order. Slow readers never block the controller. The
// returned func unsubscribes; the channel is closed afterwards and on Close.
func (c *Controller) Subscribe() (<-chan model.RoundState, func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ch := make(chan model.RoundState)
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	sub := newSubscriber()
	c.subs[id] = sub
	sub.push(c.state.Clone())
	c.mu.Unlock()

	metrics.AddSubscribers(1)
	go sub.pump()

	return sub.out, func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
		if sub.close() {
			metrics.AddSubscribers(-1)
		}
	}
}

// WaitIdle blocks until no round goroutine is running or ctx ends.
func (c *Controller) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the round in flight and ends all subscriptions. Later calls
// are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancelRound != nil {
		c.cancelRound()
	}
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	c.stop()
	for _, sub := range subs {
		if sub.close() {
			metrics.AddSubscribers(-1)
		}
	}
}

type loaded struct {
	target  string
	options []string
	image   string
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer c.finish()
	defer cancel()

	start := time.Now()
	res, err := c.load(ctx)
	if errors.Is(err, errStalled) {
		c.logger.Warn(ctx, "breed catalog empty; round left loading", logger.Uint64("round", gen))
		return
	}

	next := model.RoundState{Round: gen, Options: []string{}}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		next.ErrorMessage = model.Message(err)
	} else {
		next.ImageURL = res.image
		next.CorrectBreed = res.target
		next.Options = res.options
	}

	if !next.Valid() {
		err = model.DecodeError("round produced an inconsistent state", nil)
		outcome = metrics.OutcomeError
		next = model.RoundState{Round: gen, Options: []string{}, ErrorMessage: model.Message(err)}
	}

	if !c.commit(gen, next) {
		metrics.RecordRoundSuperseded()
		c.logger.Debug(ctx, "round superseded; result dropped",
			logger.Uint64("round", gen),
			logger.Bool("failed", err != nil),
		)
		return
	}

	metrics.RecordRoundCompleted(outcome, float64(time.Since(start).Milliseconds()))
	if err != nil {
		c.logger.Warn(ctx, "round failed", logger.Uint64("round", gen), logger.Error(err))
		return
	}
	c.logger.Debug(ctx, "round ready",
		logger.Uint64("round", gen),
		logger.Int("options", len(res.options)),
		logger.Duration("took", time.Since(start)),
	)
}

func (c *Controller) load(ctx context.Context) (loaded, error) {
	names, err := c.breeds.Get(ctx)
	if err != nil {
		return loaded{}, err
	}
	if len(names) == 0 {
		if c.stallOnEmpty {
			return loaded{}, errStalled
		}
		return loaded{}, model.ErrEmptyCatalog
	}

	r, err := c.picker.Pick(names)
	if err != nil {
		return loaded{}, err
	}

	if r.Target == "" || !slices.Contains(r.Options, r.Target) {
		return loaded{}, model.InvalidInputError("picked breed is not among the options")
	}

	url, err := c.images.ImageFor(ctx, r.Target)
	if err != nil {
		return loaded{}, err
	}
	if url == "" {
		return loaded{}, model.DecodeError("dog api returned no image", nil)
	}
	return loaded{target: r.Target, options: r.Options, image: url}, nil
}

// commit publishes next only if gen is still the newest round.
func (c *Controller) commit(gen uint64, next model.RoundState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		return false
	}
	c.publishLocked(next)
	return true
}

func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active--
	if c.active == 0 {
		close(c.idle)
	}
}

// publishLocked replaces the state and fans it out. Caller holds c.mu.
func (c *Controller) publishLocked(s model.RoundState) {
	c.state = s
	for _, sub := range c.subs {
		sub.push(s.Clone())
	}
}
