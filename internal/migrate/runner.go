package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jipraks/kasirgratisan/internal/store"
)

// Run brings b up to SchemaVersion. Each pending step runs once, in order,
// and the version is advanced right after it. A step whose write fails has
// its collections put back as they were before the step, and Run stops with
// a *Error; the store must not be used after that.
func Run(ctx context.Context, b store.Backend, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	current, err := b.Version(ctx)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if current > SchemaVersion {
		return current, fmt.Errorf("store schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range Pending(current) {
		if err := runStep(ctx, b, m, logger); err != nil {
			return current, err
		}
		if err := b.SetVersion(ctx, m.To); err != nil {
			return current, &Error{From: m.From, To: m.To, Name: m.Name, Err: fmt.Errorf("set version: %w", err)}
		}
		current = m.To
	}

	return current, nil
}

func runStep(ctx context.Context, b store.Backend, m Migration, logger *slog.Logger) error {
	wrap := func(err error) error {
		return &Error{From: m.From, To: m.To, Name: m.Name, Err: err}
	}

	before := Dataset{}
	original := map[store.Collection][]store.Record{}
	for _, c := range m.Touches {
		records, err := b.All(ctx, c)
		if err != nil {
			return wrap(fmt.Errorf("load %s: %w", c, err))
		}
		docs, err := Decode(records)
		if err != nil {
			return wrap(fmt.Errorf("decode %s: %w", c, err))
		}
		original[c] = records
		before[c] = docs
	}

	if m.Done(before) {
		logger.Info("migration already satisfied", "step", m.Name, "from", m.From, "to", m.To)
		return nil
	}

	after, err := m.Apply(before)
	if err != nil {
		return wrap(err)
	}

	for _, c := range m.Touches {
		records, err := Encode(after[c])
		if err != nil {
			return wrap(fmt.Errorf("encode %s: %w", c, err))
		}
		if err := replace(ctx, b, c, records); err != nil {
			cause := fmt.Errorf("write %s: %w", c, err)
			if rerr := restore(ctx, b, m.Touches, original); rerr != nil {
				logger.Error("migration restore failed", "step", m.Name, "err", rerr)
				return wrap(errors.Join(cause, fmt.Errorf("restore: %w", rerr)))
			}
			return wrap(cause)
		}
	}

	logger.Info("migration applied", "step", m.Name, "from", m.From, "to", m.To)
	return nil
}

func replace(ctx context.Context, b store.Backend, c store.Collection, records []store.Record) error {
	if err := b.Clear(ctx, c); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return b.BulkPut(ctx, c, records)
}

func restore(ctx context.Context, b store.Backend, touched []store.Collection, original map[store.Collection][]store.Record) error {
	var errs []error
	for _, c := range touched {
		if err := replace(ctx, b, c, original[c]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c, err))
		}
	}
	return errors.Join(errs...)
}
