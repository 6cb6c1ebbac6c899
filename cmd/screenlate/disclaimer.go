package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const disclaimerText = `screenlate captures portions of your screen and sends recognized text to
third-party translation APIs (Google Gemini, OpenAI). Captured text may
include anything visible inside the watched regions. Do not point regions
at passwords, private messages or other sensitive content.

Translations are machine generated and may be inaccurate. API usage is
billed by the respective provider under your own account and terms.

This software is provided "as is", without warranty of any kind.
`

func newDisclaimerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disclaimer",
		Short: "Show the full disclaimer",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), disclaimerText)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
