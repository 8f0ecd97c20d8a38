package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/events"
	"github.com/jipraks/kasirgratisan/internal/migrate"
	"github.com/jipraks/kasirgratisan/internal/store"
)

// requiredAny lists the collections of which at least one must hold records
// for a file to count as a backup.
var requiredAny = []store.Collection{
	store.Categories,
	store.Products,
	store.Suppliers,
	store.Transactions,
	store.PaymentMethods,
}

var normalizers = map[store.Collection]func([]migrate.Doc) ([]store.Record, error){
	store.Categories:       normalize[domain.Category],
	store.Products:         normalize[domain.Product],
	store.Suppliers:        normalize[domain.Supplier],
	store.StockIns:         normalize[domain.StockIn],
	store.StockOuts:        normalize[domain.StockOut],
	store.HPPHistory:       normalize[domain.CostHistory],
	store.PaymentMethods:   normalize[domain.PaymentMethod],
	store.Transactions:     normalize[domain.Transaction],
	store.TransactionItems: normalize[domain.TransactionItem],
	store.StoreSettings:    normalize[domain.StoreSettings],
}

// Prepared is a checked backup file, upgraded to the current schema and
// ready to be written.
type Prepared struct {
	Manifest Manifest
	Records  store.Snapshot
}

// Prepare checks raw without touching any store: it must be a non-empty
// JSON object with a version, match the backup schema and hold data. The
// documents are upgraded to the current schema and normalized through the
// domain types.
func Prepare(raw []byte) (Prepared, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Prepared{}, &FormatError{Reason: "file is empty"}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Prepared{}, &FormatError{Reason: "not valid JSON", Err: err}
	}
	if top == nil {
		return Prepared{}, &FormatError{Reason: "not a JSON object"}
	}
	version, err := readVersion(top["version"])
	if err != nil {
		return Prepared{}, err
	}
	if err := checkSchema(raw); err != nil {
		return Prepared{}, err
	}

	ds := migrate.Dataset{}
	for _, c := range store.Collections() {
		docs, err := decodeCollection(top[string(c)])
		if err != nil {
			return Prepared{}, &FormatError{Reason: fmt.Sprintf("%s is malformed", c), Err: err}
		}
		ds[c] = docs
	}
	if !slices.ContainsFunc(requiredAny, func(c store.Collection) bool { return len(ds[c]) > 0 }) {
		return Prepared{}, &FormatError{Reason: "no data", Err: errEmptyBackup}
	}

	// Every step checks whether its change is already present, so the full
	// chain is safe on files of any format version.
	upgraded, err := migrate.UpgradeDataset(ds, 1)
	if err != nil {
		return Prepared{}, &FormatError{Reason: "cannot upgrade file", Err: err}
	}

	records := make(store.Snapshot, len(normalizers))
	for _, c := range store.Collections() {
		recs, err := normalizers[c](upgraded[c])
		if err != nil {
			return Prepared{}, &FormatError{Reason: fmt.Sprintf("%s is malformed", c), Err: err}
		}
		records[c] = recs
	}

	manifest := Manifest{Version: version, Counts: records.Counts()}
	if at, ok := top["exportedAt"]; ok {
		_ = json.Unmarshal(at, &manifest.ExportedAt)
	}
	return Prepared{Manifest: manifest, Records: records}, nil
}

func readVersion(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, &FormatError{Reason: "missing version"}
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, &FormatError{Reason: "version must be a number", Err: err}
	}
	v, err := n.Int64()
	if err != nil {
		return 0, &FormatError{Reason: "version must be a whole number", Err: err}
	}
	if v <= 0 {
		return 0, &FormatError{Reason: "missing version"}
	}
	return int(v), nil
}

func decodeCollection(raw json.RawMessage) ([]migrate.Doc, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	docs := make([]migrate.Doc, 0, len(elems))
	for i, elem := range elems {
		doc, err := migrate.DecodeDoc(elem)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// normalize passes each document through T so stored records have the
// shape the rest of the ledger reads. Two records may not share an id.
func normalize[T any](docs []migrate.Doc) ([]store.Record, error) {
	records := make([]store.Record, 0, len(docs))
	seen := make(map[int64]int, len(docs))
	for i, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		out, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		id, err := store.DocID(out)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		if id > 0 {
			if first, dup := seen[id]; dup {
				return nil, fmt.Errorf("record %d: id %d already used by record %d", i+1, id, first)
			}
			seen[id] = i + 1
		}
		records = append(records, store.Record{ID: id, Doc: out})
	}
	return records, nil
}

type Importer struct {
	backend store.Backend
	bus     *events.Bus
	logger  *slog.Logger
	now     func() time.Time
	lock    sync.Locker
}

func NewImporter(backend store.Backend, bus *events.Bus, logger *slog.Logger, opts ...Option) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	return &Importer{backend: backend, bus: bus, logger: logger.With("component", "backup"), now: o.now, lock: o.lock}
}

// Import replaces the whole store with the contents of a backup file. If any
// write fails the previous data is put back and a *WriteError is returned; if
// that also fails the error is a *FatalRecoveryError.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Manifest, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Manifest{}, fmt.Errorf("read backup: %w", err)
	}
	prepared, err := Prepare(raw)
	if err != nil {
		return Manifest{}, err
	}
	if err := ctx.Err(); err != nil {
		return Manifest{}, err
	}

	im.lock.Lock()
	defer im.lock.Unlock()

	previous, err := store.Capture(ctx, im.backend)
	if err != nil {
		return Manifest{}, &WriteError{Err: err}
	}

	ctx = context.WithoutCancel(ctx)
	failed, werr := im.replace(ctx, prepared.Records)
	if werr != nil {
		return Manifest{}, im.rollback(ctx, previous, failed, werr)
	}

	im.logger.Info("backup imported",
		"file_version", prepared.Manifest.Version,
		"records", prepared.Manifest.Total(),
	)
	im.bus.Publish(ctx, events.Event{Kind: events.SnapshotImported, At: im.now().UTC(), Payload: prepared.Manifest})
	return prepared.Manifest, nil
}

func (im *Importer) replace(ctx context.Context, records store.Snapshot) (store.Collection, error) {
	for _, c := range store.Collections() {
		if err := im.backend.Clear(ctx, c); err != nil {
			return c, fmt.Errorf("clear: %w", err)
		}
	}
	for _, c := range store.Collections() {
		if len(records[c]) == 0 {
			continue
		}
		if err := im.backend.BulkPut(ctx, c, records[c]); err != nil {
			return c, err
		}
	}
	if err := im.backend.SetVersion(ctx, migrate.SchemaVersion); err != nil {
		return "", fmt.Errorf("set schema version: %w", err)
	}
	return "", nil
}

func (im *Importer) rollback(ctx context.Context, previous store.Snapshot, failed store.Collection, cause error) error {
	im.logger.Warn("import failed, restoring previous data", "collection", failed, "err", cause)

	if rerr := store.Restore(ctx, im.backend, previous); rerr != nil {
		im.logger.Error("restore after failed import failed", "err", rerr)
		return &FatalRecoveryError{Err: cause, RestoreErr: rerr}
	}

	werr := &WriteError{Collection: failed, Err: cause}
	im.bus.Publish(ctx, events.Event{
		Kind:    events.ImportRolledBack,
		At:      im.now().UTC(),
		Payload: map[string]string{"error": werr.Error()},
	})
	return werr
}

// IsFormatError reports whether err rejected the file itself.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
