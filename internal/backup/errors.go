package backup

import (
	"errors"
	"fmt"

	"github.com/jipraks/kasirgratisan/internal/store"
)

// FormatError rejects a file before anything in the store is touched.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return "invalid backup file: " + e.Reason
	}
	return fmt.Sprintf("invalid backup file: %s: %v", e.Reason, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// WriteError means the import failed part-way and the previous data was put
// back.
type WriteError struct {
	Collection store.Collection
	Err        error
}

func (e *WriteError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("import failed, previous data restored: %v", e.Err)
	}
	return fmt.Sprintf("import failed at %s, previous data restored: %v", e.Collection, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// FatalRecoveryError means the import failed and so did putting the previous
// data back. The store may be partially empty.
type FatalRecoveryError struct {
	Err        error
	RestoreErr error
}

func (e *FatalRecoveryError) Error() string {
	return fmt.Sprintf("import failed and previous data could not be restored, restore manually from a backup file: %v (restore: %v)", e.Err, e.RestoreErr)
}

func (e *FatalRecoveryError) Unwrap() []error {
	return []error{e.Err, e.RestoreErr}
}

var errEmptyBackup = errors.New("backup contains no categories, products, suppliers, transactions or payment methods")
