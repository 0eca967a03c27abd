package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Fantasim/tokenscout/internal/api"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tokenscout",
	Short: "Automatic token discovery for EVM wallets",
	Long: `tokenscout keeps a wallet's token list in sync with the chain.

It lists the contracts a wallet has transferred tokens through, probes a
curated list of partner contracts for balances, classifies each contract
(ERC20, ERC875, ERC721) and records the result in a local SQLite store.

Configuration is read from TOKENSCOUT_* environment variables and an
optional .env file in the working directory.`,
	SilenceUsage: true,
}

func init() {
	api.Version = version
	rootCmd.Version = version

	rootCmd.AddCommand(serveCmd, detectCmd, importCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tokenscout %s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
