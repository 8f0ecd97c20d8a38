// Package xid generates human-readable identifiers.
package xid

import (
	"fmt"
	"sync"
	"time"
)

// Receipts hands out receipt numbers of the form TX<unix-millis>. Numbers are
// strictly increasing within a process: a second sale in the same
// millisecond takes the next millisecond value.
type Receipts struct {
	mu   sync.Mutex
	last int64
}

func (r *Receipts) Next(now time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	millis := now.UnixMilli()
	if millis <= r.last {
		millis = r.last + 1
	}
	r.last = millis
	return fmt.Sprintf("TX%d", millis)
}

// Observe moves the counter past an existing receipt number so numbers
// issued later never collide with it. Malformed numbers are ignored.
func (r *Receipts) Observe(receipt string) {
	var millis int64
	if _, err := fmt.Sscanf(receipt, "TX%d", &millis); err != nil {
		return
	}
	r.mu.Lock()
	if millis > r.last {
		r.last = millis
	}
	r.mu.Unlock()
}
