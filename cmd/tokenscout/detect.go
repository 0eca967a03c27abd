package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/detect"
	"github.com/Fantasim/tokenscout/internal/models"
)

var (
	detectWallet  string
	detectIndex   uint32
	detectTimeout time.Duration
	detectJSON    bool

	importWallet string
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run one detection pass and print the token list",
	Long: `Run the transacted and partner detection passes once for a wallet,
wait for both to finish and print the resulting token list.

The wallet is --wallet, or the address at --index derived from
TOKENSCOUT_MNEMONIC_FILE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if detectTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, detectTimeout)
			defer cancel()
		}

		a, err := newApp(ctx, os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		index := a.cfg.WalletIndex
		if cmd.Flags().Changed("index") {
			index = detectIndex
		}
		w, err := a.resolveWallet(detectWallet, index)
		if err != nil {
			return err
		}
		if a.engine.AutoFetchDisabled() {
			return fmt.Errorf("%w: unset TOKENSCOUT_AUTO_FETCH_DISABLED", config.ErrDetectionDisabled)
		}

		s, err := a.engine.StartAutoDetection(w)
		if err != nil {
			return err
		}
		s.Wait()

		tokens, err := s.Store().ListTokens()
		if err != nil {
			return fmt.Errorf("list tokens: %w", err)
		}
		return printTokens(os.Stdout, tokens, detectJSON)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <contract>",
	Short: "Fetch one contract and add it to the token list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		w, err := a.resolveWallet(importWallet, a.cfg.WalletIndex)
		if err != nil {
			return err
		}
		s, err := a.engine.Session(w)
		if err != nil {
			return err
		}

		outcome, action, err := s.AddImportedToken(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s -> %s\n", models.NormalizeAddress(args[0]), detect.OutcomeLabel(outcome), action)
		return nil
	},
}

func init() {
	detectCmd.Flags().StringVar(&detectWallet, "wallet", "", "wallet address (default: derived from the mnemonic file)")
	detectCmd.Flags().Uint32Var(&detectIndex, "index", 0, "derivation index when deriving the wallet")
	detectCmd.Flags().DurationVar(&detectTimeout, "timeout", 5*time.Minute, "give up after this long (0 = no limit)")
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "print the token list as JSON")

	importCmd.Flags().StringVar(&importWallet, "wallet", "", "wallet address (default: derived from the mnemonic file)")
}

func printTokens(out io.Writer, tokens []models.Token, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tokens)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTRACT\tSTANDARD\tSYMBOL\tNAME\tDECIMALS\tITEMS")
	for _, t := range tokens {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", t.Contract, t.Standard, t.Symbol, t.Name, t.Decimals, len(t.Balance))
	}
	return tw.Flush()
}
