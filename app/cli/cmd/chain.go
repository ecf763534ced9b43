package cmd

import (
	"fmt"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

func createCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create <address>",
		Short: "Create a new chain paying the genesis reward to the address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !database.ValidateAddress(args[0]) {
				return fmt.Errorf("address %q: %w", args[0], database.ErrInvalidAddress)
			}

			st, err := openState(opts.dbPath, "")
			if err != nil {
				return err
			}
			defer st.Shutdown()

			block, err := st.CreateChain(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created chain: genesis %s\n", block.Hash)
			return nil
		},
	}
}

func reindexCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the utxo set from the chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openState(opts.dbPath, "")
			if err != nil {
				return err
			}
			defer st.Shutdown()

			count, err := st.Reindex()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "done: there are %d transactions in the utxo set\n", count)
			return nil
		},
	}
}

func getBalanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "getbalance <address>",
		Short: "Print the balance of the address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openState(opts.dbPath, "")
			if err != nil {
				return err
			}
			defer st.Shutdown()

			balance, err := st.QueryBalance(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "balance of %s: %d\n", args[0], balance)
			return nil
		},
	}
}

func printChainCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "printchain",
		Short: "Print every block from the tip back to genesis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openState(opts.dbPath, "")
			if err != nil {
				return err
			}
			defer st.Shutdown()

			blocks, err := st.QueryBlocks()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, block := range blocks {
				fmt.Fprintf(w, "============ Block %s ============\n", block.Hash)
				fmt.Fprintf(w, "Height: %d\n", block.Height)
				fmt.Fprintf(w, "Prev. block: %s\n", block.PrevBlockHash)
				fmt.Fprintf(w, "Time: %s\n", time.UnixMilli(int64(block.Timestamp)).UTC().Format(time.RFC3339))
				fmt.Fprintf(w, "Nonce: %d\n", block.Nonce)
				fmt.Fprintf(w, "PoW: %t\n", block.ValidatePOW() == nil)

				for _, tx := range block.Transactions {
					printTx(cmd, tx)
				}
				fmt.Fprintln(w)
			}

			return nil
		},
	}
}

func printTx(cmd *cobra.Command, tx database.Transaction) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "--- Transaction %s:\n", tx.ID)
	if tx.IsCoinbase() {
		fmt.Fprintf(w, "     Coinbase: %s\n", tx.Vin[0].PubKey)
	} else {
		for i, in := range tx.Vin {
			fmt.Fprintf(w, "     Input %d: %s:%d\n", i, in.TxID, in.Vout)
		}
	}

	for i, out := range tx.Vout {
		fmt.Fprintf(w, "     Output %d: %d to %s\n", i, out.Value, database.AddressFromPubKeyHash(out.PubKeyHash))
	}
}
