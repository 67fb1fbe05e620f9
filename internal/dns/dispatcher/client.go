// Package dispatcher implements the Client: the component that owns
// transaction-ID allocation, the send/receive race against the
// per-query timeout, and the guarantee that every submitted query's
// callback fires exactly once (spec §6.5, §6.6).
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/haukened/adnsq/internal/dns/common/clock"
	"github.com/haukened/adnsq/internal/dns/common/log"
	"github.com/haukened/adnsq/internal/dns/common/utils"
	"github.com/haukened/adnsq/internal/dns/domain"
	"github.com/haukened/adnsq/internal/dns/querytable"
	"github.com/haukened/adnsq/internal/dns/timeout"
	"github.com/haukened/adnsq/internal/dns/transport"
	"github.com/haukened/adnsq/internal/dns/wire"
)

// strandQueueSize is the buffer depth for closures waiting to run on
// the strand. Kept small and non-zero: AsyncQuery's encode step runs
// off-strand on a worker, so the strand only ever needs to absorb a
// short burst while it drains one closure at a time.
const strandQueueSize = 64

// jobQueueSize is the buffer depth for pending encode jobs handed to
// the worker pool.
const jobQueueSize = 64

// Client is an asynchronous DNS stub resolver bound to one recursive
// nameserver over a single shared UDP socket.
type Client struct {
	nameserver netip.AddrPort
	localAddr  string
	workers    int
	timeout    time.Duration
	log        log.Logger
	clock      clock.Clock

	transport *transport.UDPTransport
	table     *querytable.Table
	scheduler *timeout.Scheduler
	guard     *staleReplyGuard

	// strand is the single serialization domain: every closure sent
	// here runs strictly one at a time, in send order, regardless of
	// which goroutine submitted it. This is the idiomatic Go rendition
	// of boost::asio::io_context::strand (spec §6.5, §7).
	strand chan func()

	jobs chan encodeJob

	wg       sync.WaitGroup
	stopOnce sync.Once
	started  bool

	errMu      sync.Mutex
	workerErrs []error
}

// encodeJob is one AsyncQuery submission handed to the worker pool.
type encodeJob struct {
	query *domain.Query
}

// New constructs a Client targeting nameserver. The socket is not
// opened until Start is called.
func New(nameserver netip.AddrPort, opts ...Option) (*Client, error) {
	if !nameserver.IsValid() {
		return nil, errors.New("nameserver address is required")
	}
	c := &Client{
		nameserver: nameserver,
		localAddr:  ":0",
		workers:    defaultWorkers,
		timeout:    defaultTimeout,
		log:        log.GetLogger(),
		clock:      clock.RealClock{},
		table:      querytable.New(),
		scheduler:  timeout.NewScheduler(),
		guard:      newStaleReplyGuard(defaultStaleGuard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start opens the UDP socket and spins up the strand, the receive
// loop, and the worker pool (spec §6.7). ctx is only consulted to
// reject a Start call against an already-cancelled context; shutdown
// is driven by Stop, not by ctx cancellation, matching the original
// design's explicit stop() rather than a context-scoped lifetime.
func (c *Client) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if c.started {
		return errors.New("client already started")
	}

	tr, err := transport.Listen(c.localAddr, c.nameserver)
	if err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	c.transport = tr
	c.strand = make(chan func(), strandQueueSize)
	c.jobs = make(chan encodeJob, jobQueueSize)
	c.started = true

	c.wg.Add(1)
	go c.runStrand()

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.runWorker()
	}

	c.wg.Add(1)
	go c.runReceiveLoop()

	c.log.Info(map[string]any{"nameserver": c.nameserver.String(), "workers": c.workers}, "dispatcher started")
	return nil
}

// Stop closes the socket (unblocking the receive loop), drains the
// strand, and waits for every goroutine to exit. Queries still
// registered in the Table at this point are abandoned, not resolved
// with a terminal callback — this intentionally matches the
// teacher/original behavior rather than "fixing" it; see the dispatcher
// package's design notes.
func (c *Client) Stop() error {
	var stopErr error
	c.stopOnce.Do(func() {
		if !c.started {
			return
		}
		closeErr := c.transport.Close()

		// Let the receive loop observe the close and exit, then stop
		// accepting new work and drain the strand.
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()

		// Post a final closure that abandons any still-registered
		// queries, then close the channels so runStrand/runWorker
		// return.
		c.strand <- func() {
			abandoned := c.table.DrainAbandon()
			if len(abandoned) > 0 {
				c.log.Warn(map[string]any{"count": len(abandoned)}, "abandoning outstanding queries on shutdown")
			}
		}
		close(c.jobs)
		close(c.strand)

		<-done
		c.errMu.Lock()
		stopErr = multierr.Combine(append([]error{closeErr}, c.workerErrs...)...)
		c.errMu.Unlock()
	})
	return stopErr
}

// DropStats returns the cumulative count of replies dropped as stale,
// duplicate, or spoofed, and how many of those drops were suppressed
// from the log by staleReplyGuard's rate limiting. Safe to call
// concurrently with an active Client.
func (c *Client) DropStats() (dropped, suppressed uint64) {
	return c.guard.stats()
}

// AsyncQuery submits name/qtype for resolution. cb is invoked exactly
// once with the terminal Result (spec §6.5): synchronously on the
// caller's goroutine if name/qtype fail validation, on a worker
// goroutine if encoding fails, and on the strand otherwise. A query
// that is still outstanding when Stop runs is abandoned and cb is
// never invoked for it.
func (c *Client) AsyncQuery(name string, qtype domain.RRType, cb domain.OnFinished) {
	name = utils.CanonicalDNSName(name)
	q, err := domain.NewQuery(name, qtype, cb)
	if err != nil {
		cb(domain.Result{Outcome: domain.Error, Err: err}, name, qtype)
		return
	}
	c.submitJob(encodeJob{query: q})
}

// submitJob sends job to the worker pool, tolerating the jobs channel
// being closed by a concurrent Stop (the job is simply dropped: Stop
// has already committed to abandoning anything not yet registered).
func (c *Client) submitJob(job encodeJob) {
	defer func() {
		_ = recover()
	}()
	c.jobs <- job
}

// runWorker drains encode jobs and posts the encode result (success or
// failure) onto the strand for serialized handling.
func (c *Client) runWorker() {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker panic: %v", r)
			c.errMu.Lock()
			c.workerErrs = append(c.workerErrs, err)
			c.errMu.Unlock()
			c.log.Error(map[string]any{"error": err.Error()}, "worker goroutine recovered from panic")
		}
	}()
	for job := range c.jobs {
		q := job.query
		reqBytes, err := wire.EncodeQuery(q.Name, q.Type)
		if err != nil {
			q.Callback(domain.Result{Outcome: domain.Error, Err: err}, q.Name, q.Type)
			continue
		}
		q.RequestBytes = reqBytes
		c.postToStrand(func() { c.registerAndSend(q) })
	}
}

// postToStrand submits fn to the strand, tolerating the channel being
// closed during shutdown (the closure is simply dropped: Stop has
// already decided to abandon anything not yet registered).
func (c *Client) postToStrand(fn func()) {
	defer func() {
		_ = recover()
	}()
	c.strand <- fn
}

// runStrand is the single serialization-domain goroutine: it drains
// closures one at a time, in order, until the channel is closed.
func (c *Client) runStrand() {
	defer c.wg.Done()
	for fn := range c.strand {
		fn()
	}
}

// registerAndSend draws a transaction ID, registers the query,
// writes the ID into its encoded request, arms the timeout, and
// sends the datagram. Runs only as a strand closure (I1, I3).
func (c *Client) registerAndSend(q *domain.Query) {
	id, err := c.table.DrawID()
	if err != nil {
		q.MarkDone()
		q.Callback(domain.Result{Outcome: domain.Error, Err: err}, q.Name, q.Type)
		return
	}
	if err := wire.SetID(q.RequestBytes, id); err != nil {
		q.MarkDone()
		q.Callback(domain.Result{Outcome: domain.Error, Err: err}, q.Name, q.Type)
		return
	}
	if err := c.table.Register(id, q); err != nil {
		q.MarkDone()
		q.Callback(domain.Result{Outcome: domain.Error, Err: err}, q.Name, q.Type)
		return
	}
	q.SubmittedAt = c.clock.Now()

	q.TimerHandle = c.scheduler.Arm(c.timeout, func() {
		c.postToStrand(func() { c.onTimeout(id) })
	})

	if err := c.transport.Send(q.RequestBytes); err != nil {
		if q.Done() {
			return
		}
		if timer, ok := q.TimerHandle.(*timeout.Timer); ok {
			timer.Cancel()
		}
		c.table.Remove(id)
		q.MarkDone()
		q.Callback(domain.Result{Outcome: domain.Error, Err: err}, q.Name, q.Type)
	}
}

// onTimeout fires when a query's timer expires without a matching
// reply. Runs only as a strand closure.
func (c *Client) onTimeout(id uint16) {
	q, ok := c.table.LookupAndRemove(id)
	if !ok || q.Done() {
		return
	}
	q.MarkDone()
	q.Callback(domain.Result{Outcome: domain.Timeout}, q.Name, q.Type)
}

// runReceiveLoop is the single logical consumer of the UDP socket: it
// blocks on Recv, copies the datagram so the next Recv can safely
// reuse its buffer, and posts the parse/correlate/resolve work to the
// strand, looping back to Recv immediately without waiting for that
// work to run (spec §6.5).
func (c *Client) runReceiveLoop() {
	defer c.wg.Done()
	buf := make([]byte, defaultRecvBufSize)
	for {
		n, from, err := c.transport.Recv(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.log.Debug(map[string]any{"error": err.Error()}, "recv error")
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		c.postToStrand(func() { c.handleDatagram(datagram, from) })
	}
}

// handleDatagram runs on the strand for every inbound datagram
// (spec §6.6).
func (c *Client) handleDatagram(data []byte, from netip.AddrPort) {
	// A dual-stack socket reports IPv4 senders as IPv4-mapped IPv6
	// addresses; compare both sides unmapped so the configured IPv4
	// nameserver still matches itself.
	from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())
	if from != netip.AddrPortFrom(c.nameserver.Addr().Unmap(), c.nameserver.Port()) {
		if c.guard.shouldLog("peer:" + from.String()) {
			c.log.Warn(map[string]any{"from": from.String(), "nameserver": c.nameserver.String()}, "dropping reply from unexpected peer")
		}
		return
	}

	id, err := wire.PeekID(data)
	if err != nil {
		c.log.Debug(map[string]any{"error": err.Error()}, "dropping undersized datagram")
		return
	}

	q, ok := c.table.Lookup(id)
	if !ok {
		if c.guard.shouldLog(fmt.Sprintf("id:%d", id)) {
			c.log.Debug(map[string]any{"id": id}, "dropping stale or duplicate reply")
		}
		return
	}
	if q.Done() {
		return
	}

	resp, err := wire.DecodeResponse(data)
	if err != nil {
		// Leave the query registered: a malformed datagram must not
		// resolve or disturb it, only a well-formed reply or the
		// timeout may.
		c.log.Debug(map[string]any{"id": id, "error": err.Error()}, "dropping malformed response")
		return
	}
	c.table.Remove(id)

	if timer, ok := q.TimerHandle.(*timeout.Timer); ok {
		timer.Cancel()
	}
	q.MarkDone()
	if resp.Truncated {
		c.log.Debug(map[string]any{"id": id, "name": q.Name}, "response truncated, not retried over TCP")
	}
	c.log.Debug(map[string]any{"id": id, "name": q.Name, "elapsed": c.clock.Now().Sub(q.SubmittedAt).String()}, "query resolved")
	q.Callback(domain.Result{
		Outcome: domain.Success,
		RCode:   resp.RCode,
		Addrs:   resp.Addrs,
		CNAMEs:  resp.CNAMEs,
	}, q.Name, q.Type)
}

// defaultWorkerCount returns runtime.NumCPU (or 1 if that is not
// positive) when the caller asked for it via WithWorkers(0). A Client
// built without WithWorkers uses defaultWorkers instead.
func defaultWorkerCount() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
