package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"drunc.client/internal/core/domain"
	"drunc.client/internal/core/logger"
	"drunc.client/internal/core/services"
	"github.com/spf13/cobra"
)

// queryFlags binds the process selectors shared by the query commands.
type queryFlags struct {
	session string
	names   []string
	user    string
	uuids   []string
	all     bool
}

func (f *queryFlags) register(cmd *cobra.Command, withAll bool) {
	cmd.Flags().StringVarP(&f.session, "session", "s", "", "select processes of this session")
	cmd.Flags().StringArrayVarP(&f.names, "name", "n", nil, "select processes with this name (repeatable)")
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "select processes of this user")
	cmd.Flags().StringArrayVar(&f.uuids, "uuid", nil, "select the process with this uuid (repeatable)")
	if withAll {
		cmd.Flags().BoolVar(&f.all, "all", false, "select every process")
	}
}

// query builds the selector. requireOne refuses an empty selector unless --all was given.
func (f *queryFlags) query(requireOne bool) (domain.ProcessQuery, error) {
	q := domain.ProcessQuery{
		Session: f.session,
		Names:   f.names,
		User:    f.user,
		UUIDs:   f.uuids,
	}
	if requireOne && q.IsEmpty() && !f.all {
		return q, errors.New("at least one of --session, --name, --user or --uuid is required (or --all)")
	}
	if err := services.ValidateQuery(q); err != nil {
		return q, err
	}
	return q, nil
}

func newBootCommand(sh *shell) *cobra.Command {
	var (
		confType string
		session  string
		user     string
	)
	cmd := &cobra.Command{
		Use:   "boot <configuration>",
		Short: "Boot the processes described by a configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := domain.ParseConfType(confType)
			if err != nil {
				return err
			}

			compiler := services.NewBootRequestCompiler(
				services.WithSegmentResolver(sh.segments),
				services.WithCompilerLogger(logger.With("boot_compiler")),
			)

			id := domain.NewIdentity(sh.rt.Config.User)
			if user != "" {
				id = domain.NewIdentity(user)
			}
			requests, err := compiler.Compile(cmd.Context(), domain.NewDescriptor(ct, args[0]), id, session)
			if err != nil {
				return err
			}

			w := newTable(cmd.OutOrStdout())
			for inst, err := range sh.driver.Boot(cmd.Context(), requests) {
				if err != nil {
					w.Flush()
					return err
				}
				writeInstance(w, inst)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&confType, "conf-type", string(domain.ConfTypeNative), "configuration type: drunc, oks or daqconf")
	cmd.Flags().StringVar(&session, "session", "", "session to boot into")
	cmd.Flags().StringVar(&user, "user", "", "user owning the booted processes (defaults to the shell user)")
	cmd.MarkFlagRequired("session")
	return cmd
}

func newKillCommand(sh *shell) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Kill the selected processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := f.query(true)
			if err != nil {
				return err
			}
			list, err := sh.driver.Kill(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printList(cmd.OutOrStdout(), list)
		},
	}
	f.register(cmd, true)
	return cmd
}

func newPsCommand(sh *shell) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List the selected processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := f.query(false)
			if err != nil {
				return err
			}
			list, err := sh.driver.Ps(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printList(cmd.OutOrStdout(), list)
		},
	}
	f.register(cmd, false)
	return cmd
}

func newFlushCommand(sh *shell) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Forget the selected dead processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := f.query(true)
			if err != nil {
				return err
			}
			list, err := sh.driver.Flush(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printList(cmd.OutOrStdout(), list)
		},
	}
	f.register(cmd, true)
	return cmd
}

func newRestartCommand(sh *shell) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the selected process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := f.query(true)
			if err != nil {
				return err
			}
			inst, err := sh.driver.Restart(cmd.Context(), q)
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			writeInstance(w, inst)
			return w.Flush()
		},
	}
	f.register(cmd, true)
	return cmd
}

func newLogsCommand(sh *shell) *cobra.Command {
	var (
		f      queryFlags
		howFar int32
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Stream the output of the selected process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := f.query(true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for line, err := range sh.driver.Logs(cmd.Context(), domain.LogRequest{Query: q, HowFar: howFar}) {
				if err != nil {
					return err
				}
				fmt.Fprintln(out, line.Line)
			}
			return nil
		},
	}
	f.register(cmd, false)
	cmd.Flags().Int32Var(&howFar, "how-far", 100, "number of trailing lines to fetch")
	return cmd
}

func newDescribeCommand(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Describe the process manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := sh.driver.Describe(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "type: %s\nname: %s\n", d.Type, d.Name)
			if d.Session != "" {
				fmt.Fprintf(out, "session: %s\n", d.Session)
			}
			if d.Info != "" {
				fmt.Fprintf(out, "info: %s\n", d.Info)
			}
			return nil
		},
	}
}

func newTable(out io.Writer) *tabwriter.Writer {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tNAME\tUSER\tUUID\tSTATUS\tRC")
	return w
}

func writeInstance(w io.Writer, inst *domain.ProcessInstance) {
	md := inst.ProcessDescription.Metadata
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", md.Session, md.Name, md.User, inst.UUID, inst.StatusCode, inst.ReturnCode)
}

func printList(out io.Writer, list *domain.ProcessInstanceList) error {
	w := newTable(out)
	for _, inst := range list.Values {
		writeInstance(w, inst)
	}
	return w.Flush()
}
