// Package cmd contains the commands of the blockchain cli.
package cmd

import (
	"fmt"
	"os"

	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/blockchain/storage/disk"
	"github.com/spf13/cobra"
)

// options holds the persistent flags shared by every command.
type options struct {
	dbPath     string
	walletPath string
}

// NewRootCmd constructs the command tree.
func NewRootCmd() *cobra.Command {
	var opts options

	rootCmd := cobra.Command{
		Use:           "utxochain",
		Short:         "A proof of work utxo blockchain",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "zblock/ledger.db", "Path to the ledger database file.")
	rootCmd.PersistentFlags().StringVar(&opts.walletPath, "wallets", "zblock/wallets/", "Path to the directory with wallet keys.")

	rootCmd.AddCommand(
		createWalletCmd(&opts),
		listAddressesCmd(&opts),
		createCmd(&opts),
		reindexCmd(&opts),
		getBalanceCmd(&opts),
		printChainCmd(&opts),
		sendCmd(&opts),
		startNodeCmd(&opts),
	)

	return &rootCmd
}

// Execute runs the command tree against the process arguments. This is
// called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

// =============================================================================

// openState opens the ledger on disk. The caller must call Shutdown to
// release the database file.
func openState(dbPath string, minerAddress string) (*state.State, error) {
	strg, err := disk.New(dbPath)
	if err != nil {
		return nil, err
	}

	st, err := state.New(state.Config{
		MinerAddress: minerAddress,
		Storage:      strg,
	})
	if err != nil {
		strg.Close()
		return nil, err
	}

	return st, nil
}
