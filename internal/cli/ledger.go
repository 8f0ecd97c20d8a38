package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jipraks/kasirgratisan/internal/config"
	"github.com/jipraks/kasirgratisan/internal/events"
	"github.com/jipraks/kasirgratisan/internal/service"
	"github.com/jipraks/kasirgratisan/internal/store"
	"github.com/jipraks/kasirgratisan/internal/store/memory"
	"github.com/jipraks/kasirgratisan/internal/store/postgres"
	"github.com/jipraks/kasirgratisan/internal/store/sqlite"
)

// ledger is an opened store with the service and event bus over it.
type ledger struct {
	svc     *service.Service
	logger  *slog.Logger
	closers []func() error
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// newLogger writes to w at level, or at debug with --verbose.
func (o *RootOptions) newLogger(w io.Writer, level slog.Level) *slog.Logger {
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if o.Config.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func (o *RootOptions) openBackend(ctx context.Context) (store.Backend, error) {
	switch o.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendPostgres:
		if o.Config.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL must be set for the postgres backend")
		}
		return postgres.New(ctx, o.Config.DatabaseURL)
	default:
		return sqlite.Open(o.DB)
	}
}

// openLedger opens the configured backend, brings it to the current schema
// and forwards events to Redis when REDIS_ADDR is set and reachable.
func (o *RootOptions) openLedger(ctx context.Context, cmd *cobra.Command, level slog.Level) (*ledger, error) {
	logger := o.newLogger(cmd.ErrOrStderr(), level)

	backend, err := o.openBackend(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open ledger", err)
	}
	l := &ledger{logger: logger, closers: []func() error{backend.Close}}

	bus := events.NewBus(logger)
	if o.Config.RedisAddr != "" {
		pub := events.NewRedisPublisher(o.Config.RedisAddr, o.Config.RedisPassword, o.Config.RedisDB, o.Config.RedisChannel)
		if err := pub.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, events stay local", "error", err)
			_ = pub.Close()
		} else {
			bus.Forward(pub)
			l.closers = append(l.closers, pub.Close)
		}
	}

	svc, err := service.Open(ctx, backend, bus, logger,
		service.WithLowStockThreshold(o.Config.LowStockThreshold),
		service.WithBackupInterval(o.Config.BackupReminder),
	)
	if err != nil {
		l.Close()
		return nil, WrapExitError(ExitCommandError, "open ledger", err)
	}
	l.svc = svc
	return l, nil
}

func (l *ledger) Close() {
	for i := len(l.closers) - 1; i >= 0; i-- {
		if err := l.closers[i](); err != nil {
			l.logger.Warn("close failed", "error", err)
		}
	}
	l.closers = nil
}
