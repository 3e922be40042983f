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
	"drunc.client/internal/app"
	"drunc.client/internal/config"
	"drunc.client/internal/core/domain"
	"drunc.client/internal/core/logger"
	"drunc.client/internal/core/services"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

const teardownTimeout = 10 * time.Second

type shell struct {
	confPath  string
	justWatch bool

	dialOpts []grpc.DialOption

	rt      *app.Runtime
	conn    *grpcHandler.ControllerConn
	session *services.ControllerSession
}

func main() {
	os.Exit(run(os.Args[1:], &shell{}, nil))
}

// run executes the shell and always tears the session down, even when a
// command panics. extra commands are added to the root.
func run(args []string, sh *shell, extra []*cobra.Command) int {
	defer sh.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(sh)
	root.AddCommand(extra...)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCommand(sh *shell) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drunc-controller",
		Short: "Talk to a run control controller",
		Long: "Opens a session on the controller at the address given in --conf, " +
			"takes control unless --just-watch is set, and prints broadcasts until interrupted.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return sh.open(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			claim, err := sh.session.Authority().RefreshClaim(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println("Control:", claim)
			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&sh.confPath, "conf", "", "controller configuration file")
	cmd.PersistentFlags().BoolVar(&sh.justWatch, "just-watch", false, "do not take control on startup")
	cmd.MarkPersistentFlagRequired("conf")

	cmd.AddCommand(
		newTakeControlCommand(sh),
		newSurrenderControlCommand(sh),
		newWhoIsInChargeCommand(sh),
		newLsCommand(sh),
	)
	return cmd
}

func (sh *shell) open(ctx context.Context) error {
	rt, err := app.Start("drunc-controller")
	if err != nil {
		return err
	}
	sh.rt = rt

	conf, err := config.LoadControllerConf(sh.confPath)
	if err != nil {
		return err
	}

	conn, err := grpcHandler.DialController(conf.Address, sh.dialOpts...)
	if err != nil {
		return err
	}
	sh.conn = conn
	rt.Health.AddConnection("controller", conn)

	receiver, err := broadcast.New(ctx, conf.Broadcaster, nil)
	if err != nil {
		return err
	}
	if p, ok := receiver.(services.Pinger); ok {
		rt.Health.AddPinger("broadcast", p)
	}

	var opts []services.AuthorityOption
	if receiver == nil {
		opts = append(opts, services.WithoutBroadcast())
	}
	authority := services.NewControlAuthority(conn.Client, domain.NewIdentity(rt.Config.User), opts...)
	session := services.NewControllerSession(authority, receiver, logger.With("controller_shell"))
	if err := session.Open(ctx); err != nil {
		return err
	}
	sh.session = session

	if sh.justWatch {
		return nil
	}
	return session.TakeControl(ctx)
}

func (sh *shell) close() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	if sh.session != nil {
		sh.session.Close(ctx)
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

func newTakeControlCommand(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "take-control",
		Short: "Take control of the controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sh.session.TakeControl(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("You are in control")
			return nil
		},
	}
}

func newSurrenderControlCommand(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "surrender-control",
		Short: "Give up control of the controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sh.session.Authority().SurrenderControl(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Control surrendered")
			return nil
		},
	}
}

func newWhoIsInChargeCommand(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "who-is-in-charge",
		Short: "Print the user currently in control",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			who, err := sh.session.Authority().WhoIsInCharge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(who)
			return nil
		},
	}
}

func newLsCommand(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List the controller's children",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := sh.session.Authority().ListChildren(cmd.Context())
			if err != nil {
				return err
			}
			for _, loc := range list.Locations {
				fmt.Println(loc)
			}
			return nil
		},
	}
}
