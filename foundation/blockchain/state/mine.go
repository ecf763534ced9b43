package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

// MineNewBlock builds a block from the mempool transactions that verify
// against the chain, pays the reward to the miner and performs the work.
// The mined transactions are removed from the mempool before mining
// starts. Mining only stops early when the context is cancelled.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count[%d]", s.mempool.Count())

	if s.minerAddress == "" {
		return database.Block{}, ErrNoMiner
	}

	txs := s.selectTransactions()
	if len(txs) == 0 {
		return database.Block{}, ErrNoTransactions
	}

	coinbase, err := database.NewCoinbaseTx(s.minerAddress, "")
	if err != nil {
		return database.Block{}, err
	}
	txs = append(txs, coinbase)

	for _, tx := range txs {
		s.mempool.Delete(tx.ID)
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: txs[%d]", len(txs))

	s.mu.Lock()
	args := database.POWArgs{
		PrevBlockHash: s.db.TipHash(),
		Height:        uint64(s.db.BestHeight() + 1),
		Transactions:  txs,
		EvHandler:     s.evHandler,
	}
	s.mu.Unlock()

	block, err := database.POW(ctx, args)
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	if err := s.updateLocalState(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// =============================================================================

// updateLocalState stores the block and rebuilds the utxo index.
func (s *State) updateLocalState(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Append(block); err != nil {
		return fmt.Errorf("appending block %s: %w", block.Hash, err)
	}

	if _, err := s.utxo.Reindex(); err != nil {
		return fmt.Errorf("reindexing after block %s: %w", block.Hash, err)
	}

	return nil
}

// selectTransactions returns the mempool transactions, in id order, that
// verify against the chain and spend unspent outputs no other selected
// transaction spends.
func (s *State) selectTransactions() []database.Transaction {
	var selected []database.Transaction
	claimed := make(map[database.OutPoint]struct{})

	for _, tx := range s.mempool.Copy() {
		if err := s.checkCandidate(tx, claimed); err != nil {
			s.evHandler("state: MineNewBlock: MINING: skip tx[%s]: %s", tx.ID, err)
			continue
		}

		claim(claimed, tx)
		selected = append(selected, tx)
	}

	return selected
}

// claim marks the outputs spent by the transaction as taken by the block.
func claim(claimed map[database.OutPoint]struct{}, tx database.Transaction) {
	for _, in := range tx.Vin {
		claimed[database.OutPoint{TxID: in.TxID, Index: uint32(in.Vout)}] = struct{}{}
	}
}

// checkCandidate validates a single transaction is safe to include next to
// the outputs already claimed by the block.
func (s *State) checkCandidate(tx database.Transaction, claimed map[database.OutPoint]struct{}) error {
	if tx.IsCoinbase() || len(tx.Vin) == 0 {
		return errors.New("not a payment")
	}

	prevTxs, err := s.db.PrevTransactions(tx)
	if err != nil {
		return err
	}

	ok, err := tx.Verify(prevTxs)
	if err != nil {
		return err
	}
	if !ok {
		return database.ErrInvalidSignature
	}

	var values []uint64
	seen := make(map[database.OutPoint]struct{}, len(tx.Vin))
	for _, input := range tx.Vin {
		op := database.OutPoint{TxID: input.TxID, Index: uint32(input.Vout)}

		if _, exists := claimed[op]; exists {
			return fmt.Errorf("double spend of %s:%d in block", op.TxID, op.Index)
		}
		if _, exists := seen[op]; exists {
			return fmt.Errorf("double spend of %s:%d in tx", op.TxID, op.Index)
		}
		seen[op] = struct{}{}

		unspent, err := s.utxo.IsUnspent(op.TxID, op.Index)
		if err != nil {
			return err
		}
		if !unspent {
			return fmt.Errorf("output %s:%d already spent", op.TxID, op.Index)
		}

		values = append(values, prevTxs[input.TxID].Vout[input.Vout].Value)
	}

	in, err := database.SumValues(values...)
	if err != nil {
		return fmt.Errorf("inputs: %w", err)
	}

	out, err := tx.OutputValue()
	if err != nil {
		return fmt.Errorf("outputs: %w", err)
	}

	if out > in {
		return fmt.Errorf("outputs %d exceed inputs %d", out, in)
	}

	return nil
}
