package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/utxochain/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/utxochain/business/web/errs"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

// submitTimeout bounds the call to the node when submitting a payment.
const submitTimeout = 10 * time.Second

func sendCmd(opts *options) *cobra.Command {
	var (
		mine  bool
		miner string
		url   string
	)

	cmd := cobra.Command{
		Use:   "send <from> <to> <amount>",
		Short: "Pay an amount from a local wallet to an address",
		Long: "Builds and signs a payment from the outputs in the local utxo set. With --mine the payment\n" +
			"is mined into a block locally, otherwise it is submitted to the node at --url.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to := args[0], args[1]

			amount, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing amount %q: %w", args[2], err)
			}

			if !database.ValidateAddress(to) {
				return fmt.Errorf("to address %q: %w", to, database.ErrInvalidAddress)
			}

			wallets, err := wallet.New(opts.walletPath)
			if err != nil {
				return err
			}

			privateKey, err := wallets.Key(from)
			if err != nil {
				return err
			}

			st, err := openState(opts.dbPath, "")
			if err != nil {
				return err
			}
			defer st.Shutdown()

			tx, err := st.NewPaymentTx(privateKey, to, amount)
			if err != nil {
				return err
			}

			if !mine {
				if err := submit(url, tx); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "submitted transaction %s to %s\n", tx.ID, url)
				return nil
			}

			reward := miner
			if reward == "" {
				reward = from
			}

			coinbase, err := database.NewCoinbaseTx(reward, "")
			if err != nil {
				return err
			}

			block, err := st.MineTransactions(cmd.Context(), []database.Transaction{tx, coinbase})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "mined transaction %s into block %s\n", tx.ID, block.Hash)
			return nil
		},
	}

	cmd.Flags().BoolVar(&mine, "mine", false, "Mine the payment into a block locally.")
	cmd.Flags().StringVar(&miner, "miner", "", "Address paid the reward when mining locally, defaults to the sender.")
	cmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")

	return &cmd
}

// submit posts the signed transaction to the node.
func submit(url string, tx database.Transaction) error {
	data, err := json.Marshal(public.NewSubmitTx(tx))
	if err != nil {
		return err
	}

	client := http.Client{
		Timeout: submitTimeout,
	}

	resp, err := client.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("submitting transaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er errs.Response
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return fmt.Errorf("node responded %s", resp.Status)
		}
		return fmt.Errorf("node responded %s: %s", resp.Status, er.Error)
	}

	return nil
}
