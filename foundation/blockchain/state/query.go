package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/peer"
)

// RetrieveKnownPeers retrieves a copy of the known peer list without the
// specified peers.
func (s *State) RetrieveKnownPeers(exclude ...string) []peer.Peer {
	return s.knownPeers.Copy(exclude...)
}

// RetrieveBestHeight returns the height of the tip or -1 when there is
// no chain.
func (s *State) RetrieveBestHeight() int64 {
	return s.db.BestHeight()
}

// RetrieveTipHash returns the hash of the tip.
func (s *State) RetrieveTipHash() string {
	return s.db.TipHash()
}

// RetrieveMempool returns a copy of the mempool ordered by id.
func (s *State) RetrieveMempool() []database.Transaction {
	return s.mempool.Copy()
}

// RetrieveStatus returns the status of this node.
func (s *State) RetrieveStatus() peer.PeerStatus {
	return peer.PeerStatus{
		LatestBlockHash:   s.db.TipHash(),
		LatestBlockHeight: s.db.BestHeight(),
		KnownPeers:        s.knownPeers.Copy(),
	}
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryMempoolTx returns the transaction in the mempool with the id.
func (s *State) QueryMempoolTx(id string) (database.Transaction, bool) {
	return s.mempool.Get(id)
}

// QueryBlockHashes returns the hashes of every block from the tip back to
// genesis.
func (s *State) QueryBlockHashes() ([]string, error) {
	return s.db.BlockHashes()
}

// QueryBlock returns the block stored under the hash.
func (s *State) QueryBlock(hash string) (database.Block, error) {
	return s.db.GetBlock(hash)
}

// QueryBlockExists reports whether the block is stored locally.
func (s *State) QueryBlockExists(hash string) (bool, error) {
	if _, err := s.db.GetBlock(hash); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// QueryBlocks returns every block from the tip back to genesis.
func (s *State) QueryBlocks() ([]database.Block, error) {
	var blocks []database.Block
	f := func(block database.Block) error {
		blocks = append(blocks, block)
		return nil
	}

	if err := s.db.ForEachBlock(f); err != nil {
		return nil, err
	}

	return blocks, nil
}

// QueryBalance returns the sum of the unspent outputs locked to the address.
func (s *State) QueryBalance(address string) (uint64, error) {
	pkh, err := database.DecodeAddress(address)
	if err != nil {
		return 0, err
	}

	return s.utxo.Balance(pkh)
}

// QueryUTXO returns the unspent outputs locked to the address.
func (s *State) QueryUTXO(address string) ([]database.UnspentOutput, error) {
	pkh, err := database.DecodeAddress(address)
	if err != nil {
		return nil, err
	}

	return s.utxo.FindUTXO(pkh)
}

// QueryUTXOCount returns the number of transactions in the utxo index.
func (s *State) QueryUTXOCount() (int, error) {
	return s.utxo.CountTransactions()
}

// ValidateTransaction checks a transaction submitted by a client spends
// outputs that exist on the chain with valid signatures.
func (s *State) ValidateTransaction(tx database.Transaction) error {
	if tx.ID == "" {
		return errors.New("transaction has no id")
	}

	if tx.IsCoinbase() {
		return errors.New("coinbase transactions can't be submitted")
	}

	if len(tx.Vin) == 0 || len(tx.Vout) == 0 {
		return errors.New("transaction needs inputs and outputs")
	}

	if _, err := tx.OutputValue(); err != nil {
		return fmt.Errorf("tx %s: %w", tx.ID, err)
	}

	ok, err := s.db.VerifyTransaction(tx)
	if err != nil {
		return fmt.Errorf("verifying tx %s: %w", tx.ID, err)
	}

	if !ok {
		return fmt.Errorf("tx %s: %w", tx.ID, database.ErrInvalidSignature)
	}

	return nil
}
