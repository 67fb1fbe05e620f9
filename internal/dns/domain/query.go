package domain

import (
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"
)

// Outcome is the tagged terminal result of a submitted query (spec §3 QueryResult).
type Outcome int

const (
	// Success means a reply was parsed; RCode may still indicate a
	// server-side error (e.g. NXDOMAIN) and Addrs/CNAMEs may be empty.
	Success Outcome = iota
	// Timeout means no reply arrived within the configured duration.
	Timeout
	// Error means the query could not be encoded or sent.
	Error
)

// String returns the textual representation of the Outcome.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "SUCCESS"
	case Timeout:
		return "TIMEOUT"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(o))
	}
}

// AddressRecord is a single A or AAAA answer: the owner name the record
// was found under, and the resolved address.
type AddressRecord struct {
	Owner string
	Addr  netip.Addr
}

// CNAMERecord is a single CNAME answer: the owner name that was aliased,
// and the canonical name it points to.
type CNAMERecord struct {
	Owner     string
	Canonical string
}

// Result is the terminal outcome delivered to a query's callback exactly
// once (invariant I2). On non-Success outcomes, RCode, Addrs, and CNAMEs
// are zero/empty (spec §6 Callback signature).
type Result struct {
	Outcome Outcome
	RCode   RCode
	Addrs   []AddressRecord
	CNAMEs  []CNAMERecord
	Err     error
}

// OnFinished is the terminal notification sink for a submitted query.
// The Dispatcher invokes it exactly once per AsyncQuery call (I2),
// unless Stop abandons the query first. For a reply, a timeout, or a
// send error it runs on the dispatcher's strand; validation and encode
// failures invoke it off the strand. It must not block or submit
// another AsyncQuery synchronously (spec §5).
type OnFinished func(res Result, name string, qtype RRType)

// Query is one outstanding request, owned jointly by the Query Table,
// the armed timer, and any in-flight send/receive completion (spec §3).
type Query struct {
	Name         string
	Type         RRType
	ID           uint16
	RequestBytes []byte
	Callback     OnFinished

	// SubmittedAt is stamped by the dispatcher (via its clock.Clock
	// seam) when the query is registered, so the receive path can log
	// how long a query was outstanding.
	SubmittedAt time.Time

	// done is flipped exactly once, from false to true, the moment a
	// terminal outcome is recorded. Every write happens inside the
	// dispatcher's strand closures; the atomic only exists so the
	// receive path and the timer-fire path (which both run as strand
	// closures, but on whichever goroutine is currently draining the
	// strand) are provably race-free under the Go race detector too.
	done atomic.Bool

	// TimerHandle is opaque to this package; the dispatcher stores
	// whatever its timeout.Scheduler handed back so it can Cancel it.
	TimerHandle any
}

// NewQuery constructs a Query and validates its name and type.
func NewQuery(name string, qtype RRType, cb OnFinished) (*Query, error) {
	if name == "" {
		return nil, fmt.Errorf("query name must not be empty")
	}
	if len(name) > 253 {
		return nil, fmt.Errorf("query name %q exceeds 253 octets", name)
	}
	if !qtype.IsQueryable() {
		return nil, fmt.Errorf("unsupported query type: %s", qtype)
	}
	if cb == nil {
		return nil, fmt.Errorf("callback must not be nil")
	}
	return &Query{Name: name, Type: qtype, Callback: cb}, nil
}

// Done reports whether a terminal outcome has already been recorded.
func (q *Query) Done() bool {
	return q.done.Load()
}

// MarkDone flips done to true. Callers must only do this from within
// the dispatcher's strand, and must check Done() first (I2).
func (q *Query) MarkDone() {
	q.done.Store(true)
}
