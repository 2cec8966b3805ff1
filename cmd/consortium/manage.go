package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dusk-indust/consortium/internal/orchestrator"
	"github.com/dusk-indust/consortium/internal/store"
	"github.com/spf13/cobra"
)

func (c *cli) saveCmd() *cobra.Command {
	var flags consortiumFlags

	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Save a consortium configuration under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(flags.models) == 0 {
				return errors.New("at least one --model is required")
			}
			cfg, err := flags.config()
			if err != nil {
				return err
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			a.resolve(&cfg)
			if cfg.SystemPrompt == "" {
				cfg.SystemPrompt = a.prompts.System()
			}
			if err := orchestrator.SaveConfig(cmd.Context(), a.store, args[0], cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Consortium configuration '%s' saved.\n", args[0])
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved consortiums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			named, err := a.store.ListConfigs(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(named) == 0 {
				fmt.Fprintln(w, "No consortiums found.")
				return nil
			}
			fmt.Fprintln(w, "Available consortiums:")
			for _, nc := range named {
				fmt.Fprintln(w)
				cfg, err := orchestrator.DecodeConfig(nc.Config)
				if err != nil {
					fmt.Fprintf(w, "Error loading consortium '%s': %v\n", nc.Name, err)
					continue
				}
				printConsortium(w, nc.Name, cfg)
			}
			return nil
		},
	}
}

func (c *cli) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a saved consortium",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteConfig(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("consortium with name '%s' not found", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Consortium '%s' removed.\n", args[0])
			return nil
		},
	}
}

func (c *cli) modelsCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Probe the configured model endpoints for their agent cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			w := cmd.OutOrStdout()
			if len(a.cfg.Endpoints) == 0 && a.cfg.DefaultEndpoint == "" {
				fmt.Fprintf(w, "No endpoints configured in %s.\n", a.dir)
				return nil
			}

			statuses := orchestrator.NewDetector(a.a2a, timeout).
				Probe(cmd.Context(), a.cfg.Endpoints, a.cfg.DefaultEndpoint)
			for _, s := range statuses {
				printEndpoint(w, s)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "per-endpoint probe timeout")
	return cmd
}
