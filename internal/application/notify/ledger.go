package notify

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
)

// Ledger remembers which notification slots have already been used.
type Ledger interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// MemoryLedger is a process-local ledger. Entries expire after the TTL, which
// must exceed one calendar day for dedup to hold.
type MemoryLedger struct {
	cache *expirable.LRU[string, struct{}]
}

// NewMemoryLedger creates a ledger holding up to size keys for ttl.
// Zero values select the defaults.
func NewMemoryLedger(size int, ttl time.Duration) *MemoryLedger {
	if size <= 0 {
		size = constants.DedupLedgerSize
	}
	if ttl <= 0 {
		ttl = constants.DedupTTL
	}
	return &MemoryLedger{cache: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// Seen reports whether key was marked within the TTL. Contains would report
// expired entries that have not been purged yet.
func (l *MemoryLedger) Seen(_ context.Context, key string) (bool, error) {
	_, ok := l.cache.Get(key)
	return ok, nil
}

func (l *MemoryLedger) Mark(_ context.Context, key string) error {
	l.cache.Add(key, struct{}{})
	return nil
}

// Len returns the number of live entries.
func (l *MemoryLedger) Len() int {
	return l.cache.Len()
}
