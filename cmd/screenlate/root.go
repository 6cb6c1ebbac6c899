package main

import (
	"fmt"
	"os"

	"github.com/oukeidos/screenlate/internal/cleanup"
	"github.com/oukeidos/screenlate/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func execute() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if cleanupErr := cleanup.RunAll(); cleanupErr != nil {
		fmt.Fprintln(os.Stderr, cleanupErr)
		if err == nil {
			err = cleanupErr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	watchOpts := watchOptions{}

	cmd := &cobra.Command{
		Use:   "screenlate",
		Short: "Live screen region translator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				if isSubcommand(cmd, args[0]) {
					_ = cmd.Usage()
					return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
				}
				_ = cmd.Usage()
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if !hasAnyFlagSet(cmd) {
				return cmd.Help()
			}
			return runWatch(cmd, &watchOpts)
		},
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
	}

	cmd.Version = version.Info()
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetUsageTemplate(rootUsageTemplate)

	addWatchFlags(cmd, &watchOpts)

	cmd.AddCommand(
		newAboutCmd(),
		newDisclaimerCmd(),
		newWatchCmd(),
		newTranslateCmd(),
		newListCmd(),
		newEnvCmd(),
	)

	cmd.InitDefaultCompletionCmd()
	for _, sub := range cmd.Commands() {
		if sub.Name() == "completion" {
			sub.Short = "screenlate — live screen region translator"
			sub.SetUsageTemplate(subcommandUsageTemplate)
			break
		}
	}

	return cmd
}

func hasAnyFlagSet(cmd *cobra.Command) bool {
	changed := false
	cmd.Flags().Visit(func(_ *pflag.Flag) {
		changed = true
	})
	return changed
}

func isSubcommand(cmd *cobra.Command, name string) bool {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return true
		}
	}
	return false
}
