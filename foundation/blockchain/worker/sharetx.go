package worker

import (
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/message"
)

// handleTransaction adds the transaction to the mempool, advertises it to
// every known peer except the sender and runs a mining round when this
// node is a miner. An empty sender means the transaction was submitted
// locally.
func (w *Worker) handleTransaction(from string, tx database.Transaction) error {
	w.evHandler("worker: handleTransaction: peer[%s]: tx[%s]", from, tx.ID)

	count := w.state.UpsertMempool(tx)
	w.evHandler("worker: handleTransaction: mempool count[%d]", count)

	inv := message.Inv{Kind: message.KindTx, Items: []string{tx.ID}}
	if from == "" {
		w.broadcast(inv)
	} else {
		w.broadcast(inv, from)
	}

	if !w.state.IsMiner() {
		return nil
	}

	return w.runMiningRound()
}
