package state

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/peer"
)

// AddKnownPeer provides the ability to add a new peer.
func (s *State) AddKnownPeer(peer peer.Peer) bool {
	return s.knownPeers.Add(peer)
}

// RemoveKnownPeer removes a peer from the known set.
func (s *State) RemoveKnownPeer(peer peer.Peer) {
	s.knownPeers.Remove(peer)
}

// UpsertMempool adds a new transaction to the mempool and returns the size
// of the mempool.
func (s *State) UpsertMempool(tx database.Transaction) int {
	return s.mempool.Upsert(tx)
}

// TruncateMempool clears all transactions from the mempool.
func (s *State) TruncateMempool() {
	s.mempool.Truncate()
}

// ReplaceInFlight sets the block hashes still to be requested from a peer.
func (s *State) ReplaceInFlight(hashes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = append([]string{}, hashes...)
}

// PopInFlight removes and returns the next block hash to request.
func (s *State) PopInFlight() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.inFlight) == 0 {
		return "", false
	}

	hash := s.inFlight[0]
	s.inFlight = s.inFlight[1:]

	return hash, true
}

// CreateChain mines the genesis block paying the reward to the address and
// builds the utxo index.
func (s *State) CreateChain(ctx context.Context, address string) (database.Block, error) {
	block, err := s.db.Create(ctx, address, s.evHandler)
	if err != nil {
		return database.Block{}, err
	}

	if _, err := s.Reindex(); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// Reindex rebuilds the utxo index from the chain and returns the number of
// transactions holding unspent outputs.
func (s *State) Reindex() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.utxo.Reindex()
}

// ProcessPeerBlock validates the work of a block received from a peer and
// stores it. It reports whether the block became the new tip.
func (s *State) ProcessPeerBlock(block database.Block) (bool, error) {
	s.evHandler("state: ProcessPeerBlock: started: block[%s]: height[%d]", block.Hash, block.Height)
	defer s.evHandler("state: ProcessPeerBlock: completed")

	if err := block.ValidatePOW(); err != nil {
		return false, fmt.Errorf("validating block %s: %w", block.Hash, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Append(block)
}

// NewPaymentTx builds and signs a payment using the outputs in the utxo
// index owned by the private key.
func (s *State) NewPaymentTx(from *ecdsa.PrivateKey, to string, amount uint64) (database.Transaction, error) {
	return database.NewPaymentTx(from, to, amount, s.utxo)
}

// MineTransactions mines the transactions into a block on the tip without
// going through the mempool and rebuilds the utxo index. Payments are held
// to the same rules the mempool selection applies.
func (s *State) MineTransactions(ctx context.Context, txs []database.Transaction) (database.Block, error) {
	claimed := make(map[database.OutPoint]struct{})
	for _, tx := range txs {
		if tx.IsCoinbase() {
			continue
		}

		if err := s.checkCandidate(tx, claimed); err != nil {
			return database.Block{}, fmt.Errorf("tx %s: %w", tx.ID, err)
		}
		claim(claimed, tx)
	}

	block, err := s.db.MineBlock(ctx, txs, s.evHandler)
	if err != nil {
		return database.Block{}, err
	}

	if _, err := s.Reindex(); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// SubmitTransaction validates a signed transaction and hands it to the
// worker for gossip and mining.
func (s *State) SubmitTransaction(tx database.Transaction) error {
	if err := s.ValidateTransaction(tx); err != nil {
		return err
	}

	if s.Worker == nil {
		s.UpsertMempool(tx)
		return nil
	}

	return s.Worker.SignalSubmitTx(tx)
}
