package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jipraks/kasirgratisan/internal/events"
)

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow ledger events published to Redis",
		Long: `Follow sales, stock movements and backups as another kasir process
publishes them to the Redis channel. Requires REDIS_ADDR.

Examples:
  REDIS_ADDR=192.168.1.10:6379 kasir watch --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runWatch(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	if cfg.RedisAddr == "" {
		return NewExitError(ExitCommandError, "REDIS_ADDR must be set to watch events")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pub := events.NewRedisPublisher(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannel)
	defer pub.Close()
	if err := pub.Ping(ctx); err != nil {
		return WrapExitError(ExitCommandError, "connect to redis", err)
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	err := pub.Listen(ctx, func(e events.Event) {
		if opts.Format == "json" {
			_ = enc.Encode(e)
			return
		}
		fmt.Fprintf(out, "%s %s\n", e.At.Local().Format("15:04:05"), e.Kind)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
