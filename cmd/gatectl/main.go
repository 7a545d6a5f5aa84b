package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vogiaan1904/ticketbottle-gate/config"
	"github.com/vogiaan1904/ticketbottle-gate/internal/infra/redis"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
	pkgGrpc "github.com/vogiaan1904/ticketbottle-gate/pkg/grpc"
	pkgLog "github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

// deps are the connections commands open lazily.
type deps struct {
	openConfig func(ctx context.Context) (repo.ConfigRepository, func(), error)
	dialAdmin  func(addr string) (*pkgGrpc.QueueAdminClient, func(), error)
}

func defaultDeps() deps {
	return deps{
		openConfig: openRedisConfig,
		dialAdmin: func(addr string) (*pkgGrpc.QueueAdminClient, func(), error) {
			cli, cleanup, err := pkgGrpc.NewQueueAdminClient(addr)
			return cli, cleanup, err
		},
	}
}

func openRedisConfig(ctx context.Context) (repo.ConfigRepository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	cli, err := redis.Connect(ctx, cfg.Redis, l)
	if err != nil {
		return nil, nil, err
	}
	return repo.NewRedisConfigRepository(cli, l, cfg.Gate.KeyPrefix), func() { redis.Disconnect(context.Background(), cli, l) }, nil
}

func newRootCommand(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gatectl",
		Short:         "Operate a waiting room gate",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newStatsCommand(d),
		newReleaseCommand(d),
		newConfigCommand(d),
		newKeysCommand(),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(defaultDeps()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "gatectl:", err)
		os.Exit(1)
	}
}
