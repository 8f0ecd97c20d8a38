package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrCommitAborted marks a multi-record write that failed part-way and
	// was rolled back.
	ErrCommitAborted = errors.New("commit aborted")
	// ErrCompensationFailed is reported alongside ErrCommitAborted when the
	// rollback itself could not put every record back.
	ErrCompensationFailed = errors.New("rollback incomplete")
)

// AbortError describes a failed run of forward steps.
type AbortError struct {
	Op           string
	Step         string
	Err          error
	Compensation error
}

func (e *AbortError) Error() string {
	msg := fmt.Sprintf("%s: %s failed: %v", e.Op, e.Step, e.Err)
	if e.Compensation != nil {
		msg += fmt.Sprintf(" (rollback incomplete: %v)", e.Compensation)
	}
	return msg
}

func (e *AbortError) Is(target error) bool {
	switch target {
	case ErrCommitAborted:
		return true
	case ErrCompensationFailed:
		return e.Compensation != nil
	}
	return false
}

func (e *AbortError) Unwrap() []error {
	if e.Compensation != nil {
		return []error{e.Err, e.Compensation}
	}
	return []error{e.Err}
}

// step is one forward write and the write that takes it back.
type step struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// runSteps executes steps in order. When one fails, the undo of every step
// that already succeeded runs in reverse order. Once the first write starts
// the run no longer observes ctx cancellation.
func runSteps(ctx context.Context, logger *slog.Logger, op string, steps []step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	for i, st := range steps {
		err := st.do(ctx)
		if err == nil {
			continue
		}

		var undoErrs []error
		for j := i - 1; j >= 0; j-- {
			if steps[j].undo == nil {
				continue
			}
			if uerr := steps[j].undo(ctx); uerr != nil {
				logger.Error("rollback step failed", "op", op, "step", steps[j].name, "err", uerr)
				undoErrs = append(undoErrs, fmt.Errorf("%s: %w", steps[j].name, uerr))
			}
		}

		logger.Warn("write aborted", "op", op, "step", st.name, "err", err, "rolled_back", i)
		return &AbortError{Op: op, Step: st.name, Err: err, Compensation: errors.Join(undoErrs...)}
	}
	return nil
}
