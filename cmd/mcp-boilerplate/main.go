package main

import (
	"fmt"
	"os"

	"github.com/dgellow/mcp-boilerplate/internal"
	"github.com/spf13/cobra"
)

// BuildVersion is set with -ldflags at release time
var BuildVersion = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcp-boilerplate",
		Short: "Remote MCP server with Google login and Stripe billing",
		Long: `mcp-boilerplate serves MCP tools over SSE and streamable HTTP.

Clients authenticate with OAuth 2.1. Users log in with Google and approve
each client once. Paid tools are gated behind Stripe checkout.`,
		Version:      BuildVersion,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "mcp-boilerplate version %s\n" .Version}}`)

	root.AddCommand(newServeCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newConfigInitCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), BuildVersion)
		},
	}
}

func main() {
	internal.Version = BuildVersion
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
