package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/perfect-catch/pricebook-bridge/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	// A missing .env is fine; it only seeds PRICEBOOK_API_URL and friends.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pricebook-bridge",
	Short: "MCP and chat-UI adapters for the Pricebook Agent backend",
	Long:  "pricebook-bridge exposes the ServiceTitan Pricebook Agent backend to MCP hosts (stdio) and Open WebUI (HTTP tool endpoints).",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose/debug logging")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("pricebook-bridge version %s\n", version))

	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewWebUICmd())
	rootCmd.AddCommand(cli.NewToolsCmd())
	rootCmd.AddCommand(cli.NewHistoryCmd())
}
