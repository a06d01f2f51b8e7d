package round

import (
	"time"

	"github.com/okian/breedquiz/pkg/logger"
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithLogger sets a custom logger for the controller.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRoundTimeout bounds each round's catalog and image fetches.
func WithRoundTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.roundTimeout = d
		}
	}
}

// WithStallOnEmptyCatalog keeps a round loading forever when the catalog is
// empty instead of publishing an error.
func WithStallOnEmptyCatalog(stall bool) Option {
	return func(c *Controller) {
		c.stallOnEmpty = stall
	}
}
