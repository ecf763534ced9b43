package worker

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/message"
)

// handleGetBlocks advertises every block hash we hold, tip first.
func (w *Worker) handleGetBlocks(from string) error {
	hashes, err := w.state.QueryBlockHashes()
	if err != nil {
		return err
	}

	if len(hashes) == 0 {
		w.evHandler("worker: handleGetBlocks: peer[%s]: no blocks to advertise", from)
		return nil
	}

	return w.send(from, message.Inv{Kind: message.KindBlock, Items: hashes})
}

// handleInv requests the advertised items we don't hold. For blocks the
// first missing hash is requested and the rest are queued in flight.
func (w *Worker) handleInv(from string, msg message.Inv) error {
	if len(msg.Items) == 0 {
		return errors.New("inv has no items")
	}

	w.evHandler("worker: handleInv: peer[%s]: kind[%s]: items[%d]", from, msg.Kind, len(msg.Items))

	switch msg.Kind {
	case message.KindBlock:
		var missing []string
		for _, hash := range msg.Items {
			exists, err := w.state.QueryBlockExists(hash)
			if err != nil {
				return err
			}
			if !exists {
				missing = append(missing, hash)
			}
		}

		if len(missing) == 0 {
			w.evHandler("worker: handleInv: peer[%s]: all blocks known", from)
			return nil
		}

		w.state.ReplaceInFlight(missing[1:])

		return w.send(from, message.GetData{Kind: message.KindBlock, ID: missing[0]})

	case message.KindTx:
		id := msg.Items[0]
		if _, exists := w.state.QueryMempoolTx(id); exists {
			return nil
		}

		return w.send(from, message.GetData{Kind: message.KindTx, ID: id})
	}

	return fmt.Errorf("unknown inv kind %q", msg.Kind)
}

// handleGetData sends the requested block or mempool transaction.
func (w *Worker) handleGetData(from string, msg message.GetData) error {
	switch msg.Kind {
	case message.KindBlock:
		block, err := w.state.QueryBlock(msg.ID)
		if err != nil {
			return err
		}

		return w.send(from, message.Block{Block: block})

	case message.KindTx:
		tx, exists := w.state.QueryMempoolTx(msg.ID)
		if !exists {
			w.evHandler("worker: handleGetData: peer[%s]: tx[%s] not in mempool", from, msg.ID)
			return nil
		}

		return w.send(from, message.Tx{Transaction: tx})
	}

	return fmt.Errorf("unknown getdata kind %q", msg.Kind)
}

// handleBlock validates and stores the block, then requests the next block
// in flight. Once nothing is left in flight the utxo index is rebuilt.
func (w *Worker) handleBlock(from string, msg message.Block) error {
	block := msg.Block

	w.evHandler("worker: handleBlock: peer[%s]: block[%s]: height[%d]", from, block.Hash, block.Height)

	_, procErr := w.state.ProcessPeerBlock(block)
	if procErr != nil {
		procErr = fmt.Errorf("processing block %s: %w", block.Hash, procErr)
	}

	if hash, exists := w.state.PopInFlight(); exists {
		if err := w.send(from, message.GetData{Kind: message.KindBlock, ID: hash}); err != nil {
			return errors.Join(procErr, err)
		}
		return procErr
	}

	count, err := w.state.Reindex()
	if err != nil {
		return errors.Join(procErr, err)
	}

	w.evHandler("worker: handleBlock: sync complete: utxo txs[%d]: height[%d]", count, w.state.RetrieveBestHeight())

	return procErr
}
