package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dusk-indust/consortium/internal/agent"
	"github.com/dusk-indust/consortium/internal/mcptools"
	"github.com/dusk-indust/consortium/internal/orchestrator"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds graceful shutdown of the serve command.
const shutdownTimeout = 5 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve NAME",
		Short: "Serve a saved consortium as an A2A model endpoint",
		Long: `serve exposes a saved consortium as an A2A agent. Every message it
receives runs the full consortium and is answered with the synthesis, so
the endpoint can be listed as a model in another consortium.yml.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg, err := orchestrator.LoadConfig(ctx, a.store, args[0])
			if err != nil {
				return err
			}
			a.resolve(&cfg)

			ag, err := agent.NewConsortiumAgent(args[0], cfg, a.inv, a.prompts, a.orchestratorOptions()...)
			if err != nil {
				return err
			}
			if err := ag.Start(ctx, addr); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving consortium '%s' on http://%s\n", args[0], ag.Addr())

			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return ag.Stop(stopCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8420", "listen address")
	return cmd
}

func (c *cli) mcpCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the consortium MCP tool server (stdio unless --addr is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := mcptools.NewConsortiumService(a.store, a.inv, a.prompts, a.cfg.Defaults, a.orchestratorOptions()...)
			if addr == "" {
				return mcptools.RunMCPServerStdio(ctx, svc)
			}
			fmt.Fprintf(c.errOut, "MCP server listening on http://%s\n", addr)
			return mcptools.RunMCPServer(ctx, svc, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}
