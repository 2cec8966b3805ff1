package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dusk-indust/consortium/internal/store"
	"github.com/spf13/cobra"
)

func (c *cli) logsCmd() *cobra.Command {
	var (
		runID string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show logged model responses, newest first or for one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var entries []store.LogEntry
			if runID != "" {
				entries, err = a.store.RunResponses(cmd.Context(), runID)
				if err == nil && limit > 0 && len(entries) > limit {
					entries = entries[len(entries)-limit:]
				}
			} else {
				entries, err = a.store.Responses(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "No responses logged.")
				return nil
			}
			for i, e := range entries {
				if i > 0 {
					fmt.Fprintln(w)
				}
				printLogEntry(w, e)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "only show responses of this run, oldest first")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "show at most this many responses (0 for all)")
	return cmd
}

func printLogEntry(w io.Writer, e store.LogEntry) {
	st := newStyles(w)

	fmt.Fprintln(w, st.label.Render(fmt.Sprintf("%s #%d", e.Model, e.Instance)))
	meta := []string{e.CreatedAt.Local().Format(time.DateTime)}
	if e.RunID != "" {
		meta = append(meta, "run "+e.RunID)
	}
	if reason, ok := e.Metadata["finish_reason"].(string); ok && reason != "" {
		meta = append(meta, "finish "+reason)
	}
	fmt.Fprintln(w, st.subtle.Render(strings.Join(meta, "  ")))
	fmt.Fprintln(w, strings.TrimSpace(e.Response))
}
