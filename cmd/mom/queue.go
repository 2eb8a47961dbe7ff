package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/makeomatic/internal/adapters/queueapi"
	"github.com/felixgeelhaar/makeomatic/internal/app"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/buildstatus"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

type queueFlags struct {
	database string
}

// open opens the build status database from the settings, or from the
// --database flag when given.
func (f *queueFlags) open(m *app.Mom, opts app.RunOptions) (*app.BuildQueue, error) {
	st, err := m.LoadSettings(opts)
	if err != nil {
		return nil, err
	}
	if f.database != "" {
		st.Queue.Database = f.database
	}
	return m.OpenQueue(st)
}

func newQueueCmd(g *globalOptions) *cobra.Command {
	f := &queueFlags{}
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Track new revisions and build them one at a time",
	}
	cmd.PersistentFlags().StringVar(&f.database, "database", "", "build status database (default from settings)")

	cmd.AddCommand(
		newQueueListCmd(g, f),
		newQueueRegisterCmd(g, f),
		newQueueRunNextCmd(g, f),
		newQueueServeCmd(g, f),
	)
	return cmd
}

func newQueueListCmd(g *globalOptions, f *queueFlags) *cobra.Command {
	var status string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := buildstatus.ParseStatus(status)
			if err != nil {
				return builderr.Wrap(builderr.KindConfiguration, err, "invalid --status")
			}
			q, err := f.open(newMom(cmd.OutOrStdout()), g.runOptions(""))
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()

			builds, err := q.List(cmd.Context(), st)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(builds)
			}
			return printBuilds(cmd.OutOrStdout(), builds)
		},
	}
	cmd.Flags().StringVar(&status, "status", buildstatus.StatusNewRevision.String(), "status of the listed builds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printBuilds(w io.Writer, builds []*buildstatus.Build) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tPROJECT\tSTATUS\tTYPE\tREVISION")
	for _, b := range builds {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", b.ID, b.Project, b.Status, b.BuildType, b.Revision)
	}
	return tw.Flush()
}

func newQueueRegisterCmd(g *globalOptions, f *queueFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "register <script>...",
		Short: "Queue builds for the new revisions of each script's project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := newMom(cmd.OutOrStdout())
			opts := g.runOptions("")
			q, err := f.open(m, opts)
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()

			added, err := m.RegisterRevisions(cmd.Context(), q, opts, args...)
			if err != nil {
				return err
			}
			for _, b := range added {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", b.Status, b.Project, b.Revision)
			}
			return nil
		},
	}
}

func newQueueRunNextCmd(g *globalOptions, f *queueFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "run-next",
		Short: "Build the oldest waiting revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := newMom(cmd.OutOrStdout())
			opts := g.runOptions("")
			q, err := f.open(m, opts)
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()

			for {
				ran, res, err := m.RunNext(cmd.Context(), q, opts)
				if err != nil {
					return err
				}
				if !ran {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "no waiting builds")
					return nil
				}
				if ferr := finish(res); ferr != nil || !all {
					return ferr
				}
			}
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "keep building until the queue is empty or a build fails")
	return cmd
}

func newQueueServeCmd(g *globalOptions, f *queueFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the build queue as JSON over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := newMom(cmd.OutOrStdout())
			opts := g.runOptions("")
			st, err := m.LoadSettings(opts)
			if err != nil {
				return err
			}
			logger, err := m.Logger(st, "")
			if err != nil {
				return err
			}
			q, err := f.open(m, opts)
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()
			return queueapi.Serve(ports.ContextWithLogger(cmd.Context(), logger), addr, q)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	return cmd
}
