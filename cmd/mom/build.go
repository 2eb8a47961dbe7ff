package main

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/makeomatic/internal/app"
	"github.com/felixgeelhaar/makeomatic/internal/domain/settings"
)

type buildFlags struct {
	buildType       string
	steps           string
	revision        string
	url             string
	branch          string
	tag             string
	environments    string
	disableShutdown bool
	showActions     bool
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.buildType, "type", "t", "", "build type (m, c, d, s, f, p, h, e)")
	cmd.Flags().StringVarP(&f.steps, "build-steps", "s", "", "enable or disable steps, e.g. \"enable-create-docs,disable-test\"")
	cmd.Flags().StringVarP(&f.revision, "revision", "r", "", "revision to build")
	cmd.Flags().StringVarP(&f.url, "scm-url", "u", "", "source code location, overrides the build script")
	cmd.Flags().StringVar(&f.branch, "branch", "", "branch to build")
	cmd.Flags().StringVar(&f.tag, "tag", "", "tag to build")
	cmd.Flags().StringVar(&f.environments, "environments", "", "folder with the installed dependencies")
	cmd.Flags().BoolVarP(&f.disableShutdown, "disable-shutdown", "d", false, "keep the build folders after the run")
}

func (f *buildFlags) apply(opts app.RunOptions) app.RunOptions {
	opts.BuildType = f.buildType
	opts.BuildSteps = f.steps
	opts.Revision = f.revision
	opts.SourceURL = f.url
	opts.Branch = f.branch
	opts.Tag = f.tag
	opts.EnvironmentsDir = f.environments
	opts.DisableShutdown = f.disableShutdown
	opts.ShowActions = f.showActions
	return opts
}

func newBuildCmd(g *globalOptions) *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build <script>",
		Short: "Build the project of a build script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := f.apply(g.runOptions(args[0]))
			return finish(newMom(cmd.OutOrStdout()).Run(cmd.Context(), opts))
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&f.showActions, "show-actions", false, "list every action in the report")
	return cmd
}

func newDescribeCmd(g *globalOptions) *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "describe <script>",
		Short: "Print the steps and actions a build would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := f.apply(g.runOptions(args[0])).WithMode(settings.RunModeDescribe)
			return finish(newMom(cmd.OutOrStdout()).Run(cmd.Context(), opts))
		},
	}
	f.register(cmd)
	return cmd
}

func newQueryCmd(g *globalOptions) *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "query <script> [key...]",
		Short: "Print settings of a build, all of them when no key is given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := f.apply(g.runOptions(args[0])).WithMode(settings.RunModeQuery, args[1:]...)
			return finish(newMom(cmd.OutOrStdout()).Run(cmd.Context(), opts))
		},
	}
	f.register(cmd)
	return cmd
}

func newPrintCmd(g *globalOptions) *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "print <script> current-revision|revisions-since [revision [limit]]",
		Short: "Print revision information of the project's source code",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := f.apply(g.runOptions(args[0])).WithMode(settings.RunModePrint, args[1:]...)
			return finish(newMom(cmd.OutOrStdout()).Run(cmd.Context(), opts))
		},
	}
	f.register(cmd)
	return cmd
}
