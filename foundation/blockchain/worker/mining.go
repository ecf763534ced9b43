package worker

import (
	"errors"

	"github.com/ardanlabs/utxochain/foundation/blockchain/message"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
)

// minMempoolTxs is the number of transactions required to start mining.
const minMempoolTxs = 2

// runMiningRound mines blocks while the mempool holds enough transactions,
// advertising every new block to the known peers. When the round ends
// normally the mempool is cleared, including a leftover transaction.
func (w *Worker) runMiningRound() error {
	if w.state.QueryMempoolLength() < minMempoolTxs {
		return nil
	}

	w.evHandler("worker: runMiningRound: MINING: started")
	defer w.evHandler("worker: runMiningRound: MINING: completed")

	for {
		block, err := w.state.MineNewBlock(w.ctx)
		if err != nil {
			if errors.Is(err, state.ErrNoTransactions) {
				w.evHandler("worker: runMiningRound: MINING: no valid transactions")
				return nil
			}
			return err
		}

		w.evHandler("worker: runMiningRound: MINING: mined block[%s]: height[%d]", block.Hash, block.Height)

		w.broadcast(message.Inv{Kind: message.KindBlock, Items: []string{block.Hash}})

		if w.state.QueryMempoolLength() < minMempoolTxs {
			break
		}
	}

	w.state.TruncateMempool()

	return nil
}
