// dp-server speaks the newline-delimited JSON tool protocol over its
// standard streams. stdout carries responses only; all logging goes to
// stderr.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deploypilot/internal/config"
	"deploypilot/internal/proc"
	"deploypilot/internal/protocol"
	"deploypilot/internal/repo"
	"deploypilot/internal/tools"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dp-server",
		Short:         "dp-server - tool execution server over stdio",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				return err
			}

			logger := buildLogger(cfg.Verbose)
			defer func() { _ = logger.Sync() }()

			repoCtx := repo.NewContext()
			defer repoCtx.Clear()

			supervisor := proc.NewSupervisor(logger)
			supervisor.StartSweeper(cfg.SweepInterval)
			defer func() {
				supervisor.StopSweeper()
				supervisor.StopAll(cfg.StopGrace)
			}()

			registry, err := tools.NewRegistry(
				tools.NewClockTool(),
				tools.NewCalcTool(),
				tools.NewWeatherTool(),
				tools.NewRepositoryTool(repoCtx),
				tools.NewCommandTool(cfg.CommandMaxBytes),
				tools.RequireRepo(tools.NewUIGenTool(repoCtx, supervisor, logger, cfg.UIGrace, cfg.StopGrace), repoCtx, false),
				tools.RequireRepo(tools.NewAnalysisTool(repoCtx), repoCtx, true),
				tools.RequireRepo(tools.NewDeployTool(repoCtx, supervisor, logger), repoCtx, false),
			)
			if err != nil {
				return err
			}

			logger.Info("server ready",
				zap.String("protocol_version", protocol.ProtocolVersion),
				zap.Strings("tools", registry.Names()))

			server := protocol.NewServer(registry, logger, os.Stdin, os.Stdout)
			return server.Serve(context.Background())
		},
	}
	cmd.Flags().Bool("verbose", false, "enable debug logging")
	return cmd
}

func buildLogger(verbose bool) *zap.Logger {
	if verbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}
