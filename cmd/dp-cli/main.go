// dp-cli is the conversational front-end: it starts a tool server as a
// child process, performs the handshake, and routes a question through
// the model/tool loop.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deploypilot/internal/client"
	"deploypilot/internal/config"
	"deploypilot/internal/llm"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var serverCmd []string
	cmd := &cobra.Command{
		Use:           "dp [question]",
		Short:         "dp - deployment assistant backed by a tool server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			cfg, err := config.Load(cmd)
			if err != nil {
				return err
			}
			if cfg.APIKey == "" && !cfg.MockLLM {
				fmt.Fprintln(os.Stderr, "DP_API_KEY is required (or set DP_MOCK_LLM=1)")
				os.Exit(2)
			}

			logger := buildLogger(cfg.Verbose)
			defer func() { _ = logger.Sync() }()

			if len(serverCmd) == 0 {
				serverCmd = []string{"dp-server"}
			}

			ctx := context.Background()
			session, err := client.Start(ctx, serverCmd, logger)
			if err != nil {
				return err
			}
			defer session.Cleanup()
			session.HandshakeTimeout = cfg.HandshakeTimeout
			session.CallTimeout = cfg.CallTimeout

			if err := session.Handshake(); err != nil {
				return fmt.Errorf("connecting to server: %w", err)
			}
			names := make([]string, 0, len(session.Tools()))
			for _, s := range session.Tools() {
				names = append(names, s.Name)
			}
			fmt.Fprintf(os.Stderr, "Connected. Tools: %s\n", strings.Join(names, ", "))

			var model llm.Client
			if cfg.MockLLM {
				model = llm.NewCalculatorScript()
			} else {
				model = llm.NewOpenRouterClient(cfg.APIKey, cfg.BaseURL, cfg.HTTPReferer, cfg.Title)
			}

			conv := client.NewConverser(session, model, logger, cfg.Model, cfg.MaxSteps)
			answer, err := conv.Converse(ctx, question)
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&serverCmd, "server", nil, "server command to launch (default: dp-server)")
	cmd.Flags().String("model", "", "model identifier")
	cmd.Flags().Int("max-steps", 0, "maximum model round trips")
	cmd.Flags().String("base-url", "", "OpenAI-compatible API base URL")
	cmd.Flags().Bool("mock-llm", false, "use the offline scripted model")
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
