package main

import (
	"fmt"

	"github.com/dgellow/mcp-boilerplate/internal"
	"github.com/dgellow/mcp-boilerplate/internal/config"
	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the HTTP server. Secrets in the config file are read from the
environment through {"$env": "NAME"} references.

Logging is controlled by LOG_LEVEL (ERROR, WARN, INFO, DEBUG, TRACE) and
LOG_FORMAT (json or text).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				if err := log.SetLogLevel(logLevel); err != nil {
					return err
				}
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log.LogInfoWithFields("main", "Starting mcp-boilerplate", map[string]any{
				"version": BuildVersion,
				"config":  configPath,
			})

			app, err := internal.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			return app.Run()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
