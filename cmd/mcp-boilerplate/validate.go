package main

import (
	"fmt"
	"io"

	"github.com/dgellow/mcp-boilerplate/internal/config"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file without resolving environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := config.ValidateFile(configPath)
			if err != nil {
				return fmt.Errorf("error during validation: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Validating: %s\n", configPath)
			printIssues(out, "Errors", result.Errors)
			printIssues(out, "Warnings", result.Warnings)

			fmt.Fprintln(out)
			switch {
			case !result.IsValid():
				fmt.Fprintln(out, "Result: FAIL")
				return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
			case len(result.Warnings) > 0:
				fmt.Fprintln(out, "Result: PASS (with warnings)")
			default:
				fmt.Fprintln(out, "Result: PASS")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func printIssues(out io.Writer, title string, issues []config.ValidationError) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(issues))
	for _, issue := range issues {
		if issue.Path != "" {
			fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
		} else {
			fmt.Fprintf(out, "  - %s\n", issue.Message)
		}
	}
}
