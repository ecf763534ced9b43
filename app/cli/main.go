// This program provides the command line interface for working with the
// blockchain: wallets, the local chain and running a node.
package main

import "github.com/ardanlabs/utxochain/app/cli/cmd"

func main() {
	cmd.Execute()
}
