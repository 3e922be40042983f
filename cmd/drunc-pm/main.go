package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drunc.client/internal/adapters/broadcast"
	grpcHandler "drunc.client/internal/adapters/handler/grpc"
	"drunc.client/internal/adapters/repository"
	"drunc.client/internal/app"
	"drunc.client/internal/config"
	"drunc.client/internal/core/domain"
	"drunc.client/internal/core/logger"
	"drunc.client/internal/core/ports"
	"drunc.client/internal/core/services"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type shell struct {
	confPath string

	rt       *app.Runtime
	conn     *grpcHandler.ProcessManagerConn
	receiver ports.BroadcastReceiver
	segments *repository.Resolver
	driver   *services.ProcessLifecycleDriver
}

func main() {
	os.Exit(run(os.Args[1:], &shell{}))
}

// run executes the shell and always releases its resources, even when a
// command panics.
func run(args []string, sh *shell) int {
	defer sh.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(sh)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCommand(sh *shell) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "drunc-pm",
		Short:        "Drive processes through a process manager",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return sh.open(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVar(&sh.confPath, "conf", "", "process manager configuration file")
	cmd.MarkPersistentFlagRequired("conf")

	cmd.AddCommand(
		newBootCommand(sh),
		newKillCommand(sh),
		newPsCommand(sh),
		newFlushCommand(sh),
		newRestartCommand(sh),
		newLogsCommand(sh),
		newDescribeCommand(sh),
	)
	return cmd
}

func (sh *shell) open(ctx context.Context) error {
	rt, err := app.Start("drunc-pm")
	if err != nil {
		return err
	}
	sh.rt = rt

	conf, err := config.LoadProcessManagerConf(sh.confPath)
	if err != nil {
		return err
	}

	conn, err := grpcHandler.DialProcessManager(conf.CommandAddress)
	if err != nil {
		return err
	}
	sh.conn = conn
	rt.Health.AddConnection("process_manager", conn)

	receiver, err := broadcast.New(ctx, conf.Broadcaster, nil)
	if err != nil {
		return err
	}
	sh.receiver = receiver
	if p, ok := receiver.(services.Pinger); ok {
		rt.Health.AddPinger("broadcast", p)
	}

	sh.segments = repository.NewResolver()
	rt.Health.AddPinger("segment_database", sh.segments)

	sh.driver = services.NewProcessLifecycleDriver(conn.Client, domain.NewIdentity(rt.Config.User), logger.With("pm_shell"))
	return nil
}

func (sh *shell) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sh.receiver != nil {
		if err := sh.receiver.Stop(); err != nil {
			logger.Error("Failed to stop broadcast receiver", "error", err)
		}
	}
	if sh.segments != nil {
		if err := sh.segments.Close(); err != nil {
			logger.Error("Failed to close segment database", "error", err)
		}
	}
	if sh.conn != nil {
		sh.conn.Close()
	}
	if sh.rt != nil {
		if err := sh.rt.Shutdown(ctx); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	}
}
