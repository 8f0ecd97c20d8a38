package store

import (
	"context"
	"errors"
	"fmt"
)

// Snapshot is a full in-memory copy of every collection.
type Snapshot map[Collection][]Record

// Capture copies every collection of b.
func Capture(ctx context.Context, b Backend) (Snapshot, error) {
	snap := make(Snapshot, len(tableNames))
	for _, c := range Collections() {
		records, err := b.All(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("capture %s: %w", c, err)
		}
		snap[c] = records
	}
	return snap, nil
}

// Restore makes b hold exactly the snapshot: every collection is cleared and
// refilled. It keeps going after a failure so as much as possible is put back,
// and reports every failure.
func Restore(ctx context.Context, b Backend, snap Snapshot) error {
	var errs []error
	for _, c := range Collections() {
		if err := b.Clear(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", c, err))
			continue
		}
		if len(snap[c]) == 0 {
			continue
		}
		if err := b.BulkPut(ctx, c, snap[c]); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", c, err))
		}
	}
	return errors.Join(errs...)
}

func (s Snapshot) Counts() map[Collection]int {
	counts := make(map[Collection]int, len(s))
	for _, c := range Collections() {
		counts[c] = len(s[c])
	}
	return counts
}
