// Command storefront runs the clothing storefront API and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Clothing storefront API",
	Long: `storefront serves the shop and back-office JSON API.

Available subcommands:
  serve   - Run the HTTP API and background jobs
  migrate - Apply or roll back the Postgres schema
  seed    - Load sample products into the configured backend`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to a .env file (ignored when missing)")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
