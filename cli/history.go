package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/perfect-catch/pricebook-bridge/journal"
)

// NewHistoryCmd creates the "history" subcommand.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent invocations from the journal",
		RunE:  runHistory,
	}

	cmd.Flags().Int("limit", 20, "Max entries to show (0 for all)")
	cmd.Flags().String("tool", "", "Filter by tool name or resource URI")
	cmd.Flags().Bool("json", false, "Emit entries as JSON")
	cmd.Flags().String("journal-path", "", "Path to invocation journal (default: ~/.pricebook-bridge/journal.db)")
	cmd.Flags().String("config", "", "Path to pricebook-bridge.yaml")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	path := s.journalPath
	if path == "" {
		if path, err = journal.DefaultPath(); err != nil {
			return exitError(exitRuntime, "%v", err)
		}
	}

	// No retention config: history reads, it never prunes.
	j, err := journal.Open(journal.Config{Path: path})
	if err != nil {
		return exitError(exitRuntime, "opening journal: %v", err)
	}
	defer j.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	toolFilter, _ := cmd.Flags().GetString("tool")
	invocations, err := j.Recent(cmd.Context(), toolFilter, limit)
	if err != nil {
		return exitError(exitRuntime, "reading journal: %v", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(invocations, "", "  ")
		if err != nil {
			return exitError(exitRuntime, "encoding history: %v", err)
		}
		_, _ = cmd.OutOrStdout().Write(append(data, '\n'))
		return nil
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "TIME\tTRANSPORT\tTOOL\tDURATION\tSTATUS")
	for _, inv := range invocations {
		status := "ok"
		if !inv.Success {
			status = "error"
			if inv.ErrorCode != "" {
				status = "error (" + inv.ErrorCode + ")"
			}
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%dms\t%s\n",
			inv.Time.UTC().Format("2006-01-02 15:04:05"),
			inv.Transport,
			inv.Name,
			inv.DurationMS,
			status,
		)
	}
	return writer.Flush()
}
