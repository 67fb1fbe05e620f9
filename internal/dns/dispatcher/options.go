package dispatcher

import (
	"time"

	"github.com/haukened/adnsq/internal/dns/common/clock"
	"github.com/haukened/adnsq/internal/dns/common/log"
)

const (
	defaultWorkers     = 1
	defaultTimeout     = 500 * time.Millisecond
	defaultStaleGuard  = 256
	defaultRecvBufSize = 512
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithWorkers sets the number of encode-worker goroutines. n == 0
// means "use runtime.NumCPU()" (spec §6.7); n < 0 is ignored.
func WithWorkers(n int) Option {
	return func(c *Client) {
		switch {
		case n > 0:
			c.workers = n
		case n == 0:
			c.workers = defaultWorkerCount()
		}
	}
}

// WithTimeout sets the per-query timeout duration.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger overrides the package-global logger for this client.
func WithLogger(l log.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithClock overrides the clock used to timestamp query submission for
// the "query resolved" debug log line, letting tests assert elapsed
// time without a wall-clock sleep.
func WithClock(c clock.Clock) Option {
	return func(cl *Client) {
		cl.clock = c
	}
}

// WithLocalAddr overrides the local UDP address the client binds to
// (default ":0", an ephemeral port on all interfaces).
func WithLocalAddr(addr string) Option {
	return func(c *Client) {
		c.localAddr = addr
	}
}
