package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/perfect-catch/pricebook-bridge/bridge"
)

// NewToolsCmd creates the "tools" subcommand.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the bridge tool catalog",
		RunE:  runTools,
	}
	cmd.Flags().Bool("json", false, "Emit the catalog as JSON")
	return cmd
}

func runTools(cmd *cobra.Command, _ []string) error {
	catalog := bridge.Catalog()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(catalog, "", "  ")
		if err != nil {
			return exitError(exitRuntime, "encoding catalog: %v", err)
		}
		_, _ = cmd.OutOrStdout().Write(append(data, '\n'))
		return nil
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tKIND\tBACKEND CALL\tDESCRIPTION")
	for _, tool := range catalog {
		kind := "read-write"
		if tool.ReadOnly {
			kind = "read-only"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", tool.Name, kind, tool.BackendCall, tool.Description)
	}
	return writer.Flush()
}
