package main

import (
	"errors"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arenvik/warden/internal/agentmcp"
	"github.com/arenvik/warden/pkg/app"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol integration",
	}
	cmd.AddCommand(mcpServeCmd())
	return cmd
}

func mcpServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve gated tools over MCP stdio",
		Long: `Serve gated tools to an MCP client over stdin/stdout.

Loads only the storage and tool modules from the configuration, so it can
share the approval ledger with a running daemon without binding its network
surfaces. Every tool call goes through the approval gate: auto-approved
tools execute inline, everything else is queued as a pending action.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			userID, _ := cmd.Flags().GetString("user")
			if userID == "" {
				return errors.New("--user is required")
			}

			env, err := app.Build(app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
				DataDir:    dataDir,
			}, func(moduleID string) bool {
				return strings.HasPrefix(moduleID, "storage.") ||
					strings.HasPrefix(moduleID, "tools.")
			})
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.App.Start(); err != nil {
				return err
			}
			defer env.App.Stop()

			srv, err := agentmcp.New(env.Approvals.Tools, env.Approvals.Gate, agentmcp.Config{
				UserID:  userID,
				Version: version,
				Logger:  env.Logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env.Logger.Info("mcp: serving on stdio", "user", userID)
			return srv.ServeStdio(ctx)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().String("data-dir", "", "Override the persistent data directory")
	cmd.Flags().StringP("user", "u", "", "User identity attached to every tool call")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
