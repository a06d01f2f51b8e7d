package breeds_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/breedquiz/internal/domain/breeds"
	"github.com/okian/breedquiz/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// gatedFetcher blocks every call until release is closed, then replays results in order.
type gatedFetcher struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}

	mu      sync.Mutex
	results []fetchResult
}

type fetchResult struct {
	catalog model.Catalog
	err     error
}

func newGatedFetcher(results ...fetchResult) *gatedFetcher {
	return &gatedFetcher{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
		results: results,
	}
}

func (f *gatedFetcher) Catalog(ctx context.Context) (model.Catalog, error) {
	f.calls.Add(1)
	f.entered <- struct{}{}
	<-f.release

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return nil, errors.New("no more results")
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.catalog, r.err
}

var sampleCatalog = model.Catalog{
	"bulldog": {"boston", "english", "french"},
	"poodle":  {"miniature", "standard", "toy"},
	"beagle":  {},
}

func TestCache_SingleFlight(t *testing.T) {
	Convey("Given a cache whose fetch is held open", t, func() {
		f := newGatedFetcher(fetchResult{catalog: sampleCatalog})
		c := breeds.New(f)
		ctx := context.Background()

		Convey("When many callers ask concurrently", func() {
			const callers = 20
			var wg sync.WaitGroup
			results := make([][]string, callers)
			errs := make([]error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = c.Get(ctx)
				}(i)
			}

			<-f.entered
			time.Sleep(50 * time.Millisecond)
			close(f.release)
			wg.Wait()

			Convey("Then exactly one upstream call is made", func() {
				So(f.calls.Load(), ShouldEqual, int32(1))
				So(c.Fetches(), ShouldEqual, int64(1))
			})

			Convey("And every caller gets the sorted breed names", func() {
				for i := 0; i < callers; i++ {
					So(errs[i], ShouldBeNil)
					So(results[i], ShouldResemble, []string{"beagle", "bulldog", "poodle"})
				}
			})

			Convey("And later calls are served from memory", func() {
				got, err := c.Get(ctx)
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 3)
				So(f.calls.Load(), ShouldEqual, int32(1))
				So(c.Len(), ShouldEqual, 3)
			})
		})
	})
}

func TestCache_FailureIsNotCached(t *testing.T) {
	Convey("Given a fetcher that fails once then succeeds", t, func() {
		f := newGatedFetcher(
			fetchResult{err: model.NetworkError("timeout", nil)},
			fetchResult{catalog: sampleCatalog},
		)
		close(f.release)
		c := breeds.New(f)
		ctx := context.Background()

		Convey("When the first call fails", func() {
			_, err := c.Get(ctx)

			Convey("Then the error is surfaced unchanged", func() {
				So(errors.Is(err, model.ErrNetwork), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "timeout")
				So(c.Len(), ShouldEqual, 0)
			})

			Convey("And the next call retries upstream", func() {
				got, err := c.Get(ctx)
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 3)
				So(f.calls.Load(), ShouldEqual, int32(2))

				_, err = c.Get(ctx)
				So(err, ShouldBeNil)
				So(f.calls.Load(), ShouldEqual, int32(2))
			})
		})
	})
}

func TestCache_FailureReachesAllWaiters(t *testing.T) {
	Convey("Given concurrent callers and a failing fetch", t, func() {
		f := newGatedFetcher(fetchResult{err: model.DecodeError("bad json", nil)})
		c := breeds.New(f)

		var wg sync.WaitGroup
		errs := make([]error, 5)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = c.Get(context.Background())
			}(i)
		}
		<-f.entered
		time.Sleep(30 * time.Millisecond)
		close(f.release)
		wg.Wait()

		Convey("Then every waiter sees the failure", func() {
			for _, err := range errs {
				So(errors.Is(err, model.ErrDecode), ShouldBeTrue)
			}
		})
	})
}

func TestCache_EmptyCatalog(t *testing.T) {
	Convey("Given an upstream that returns no breeds", t, func() {
		f := newGatedFetcher(fetchResult{catalog: model.Catalog{}})
		close(f.release)
		c := breeds.New(f)

		Convey("Then the empty result is returned but not kept", func() {
			got, err := c.Get(context.Background())
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)

			_, _ = c.Get(context.Background())
			So(f.calls.Load(), ShouldEqual, int32(2))
		})
	})
}

func TestCache_CallerGivesUp(t *testing.T) {
	Convey("Given a caller whose context ends mid-fetch", t, func() {
		f := newGatedFetcher(fetchResult{catalog: sampleCatalog})
		c := breeds.New(f)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			_, err := c.Get(ctx)
			done <- err
		}()
		<-f.entered
		cancel()

		Convey("Then that caller returns its context error", func() {
			So(errors.Is(<-done, context.Canceled), ShouldBeTrue)

			Convey("And the shared fetch still completes for later callers", func() {
				close(f.release)
				got, err := c.Get(context.Background())
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 3)
				So(f.calls.Load(), ShouldEqual, int32(1))
			})
		})
	})
}
