package dispatcher

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// staleReplyGuard rate-limits log lines for stale, duplicate, or
// spoofed replies: a reply-flood from a misbehaving or malicious peer
// should not turn into a log-flood. It is grounded on the same
// LRU-plus-atomic-counters shape the teacher uses for its blocklist
// decision cache, repurposed here to throttle log noise rather than
// to cache DNS answers (answer caching remains a Non-goal). Keys are
// arbitrary strings so the same guard can throttle both by
// transaction ID (stale/duplicate replies) and by sender address
// (spoofed-peer replies).
type staleReplyGuard struct {
	seen       *lru.Cache[string, struct{}]
	dropped    uint64
	suppressed uint64
}

// newStaleReplyGuard returns a guard that remembers up to size recent
// keys it has already logged a drop for.
func newStaleReplyGuard(size int) *staleReplyGuard {
	if size <= 0 {
		size = defaultStaleGuard
	}
	cache, _ := lru.New[string, struct{}](size)
	return &staleReplyGuard{seen: cache}
}

// shouldLog reports whether a drop for key should produce a log line:
// true the first time key is seen, false on subsequent repeats until
// it ages out of the LRU.
func (g *staleReplyGuard) shouldLog(key string) bool {
	atomic.AddUint64(&g.dropped, 1)
	if _, ok := g.seen.Get(key); ok {
		atomic.AddUint64(&g.suppressed, 1)
		return false
	}
	g.seen.Add(key, struct{}{})
	return true
}

// stats returns the cumulative dropped-reply and suppressed-log-line
// counters, surfaced to callers through Client.DropStats.
func (g *staleReplyGuard) stats() (dropped, suppressed uint64) {
	return atomic.LoadUint64(&g.dropped), atomic.LoadUint64(&g.suppressed)
}
