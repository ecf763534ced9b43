package cmd

import (
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

func createWalletCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "createwallet",
		Short: "Create a new wallet and print its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wallets, err := wallet.New(opts.walletPath)
			if err != nil {
				return err
			}

			address, err := wallets.Create()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "new wallet address: %s\n", address)
			return nil
		},
	}
}

func listAddressesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "listaddresses",
		Short: "List the addresses of every local wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wallets, err := wallet.New(opts.walletPath)
			if err != nil {
				return err
			}

			for _, address := range wallets.Addresses() {
				fmt.Fprintln(cmd.OutOrStdout(), address)
			}
			return nil
		},
	}
}
