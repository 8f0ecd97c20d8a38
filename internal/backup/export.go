package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/events"
	"github.com/jipraks/kasirgratisan/internal/store"
)

type Exporter struct {
	backend store.Backend
	bus     *events.Bus
	logger  *slog.Logger
	now     func() time.Time
	lock    sync.Locker
}

func NewExporter(backend store.Backend, bus *events.Bus, logger *slog.Logger, opts ...Option) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	return &Exporter{backend: backend, bus: bus, logger: logger.With("component", "backup"), now: o.now, lock: o.lock}
}

// Export writes every collection to w as an indented JSON document and then
// records the export time as the store's last backup.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (Manifest, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	exportedAt := e.now().UTC()

	snap, err := store.Capture(ctx, e.backend)
	if err != nil {
		return Manifest{}, err
	}

	doc := Document{Version: FormatVersion, ExportedAt: exportedAt}
	for _, c := range store.Collections() {
		docs := make([]json.RawMessage, 0, len(snap[c]))
		for _, rec := range snap[c] {
			docs = append(docs, rec.Doc)
		}
		*doc.collection(c) = docs
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("encode backup: %w", err)
	}
	if _, err := w.Write(out); err != nil {
		return Manifest{}, fmt.Errorf("write backup: %w", err)
	}

	manifest := Manifest{Version: FormatVersion, ExportedAt: exportedAt, Counts: snap.Counts()}
	if err := e.markBackedUp(ctx, exportedAt); err != nil {
		e.logger.Warn("failed to record last backup time", "err", err)
	}

	e.logger.Info("backup exported", "records", manifest.Total())
	e.bus.Publish(ctx, events.Event{Kind: events.SnapshotExported, At: exportedAt, Payload: manifest})
	return manifest, nil
}

func (e *Exporter) markBackedUp(ctx context.Context, at time.Time) error {
	settings := store.NewTable[domain.StoreSettings](e.backend, store.StoreSettings)
	current, err := settings.First(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	current.LastBackupAt = &at
	return settings.Put(ctx, current.ID, current)
}
