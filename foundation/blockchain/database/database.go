// Package database handles all the lower level support for maintaining the
// blockchain in storage and the index of unspent outputs derived from it.
package database

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
)

// Set of errors related to reading and writing the blockchain.
var (
	ErrNotFound      = errors.New("not found")
	ErrChainExists   = errors.New("blockchain already exists")
	ErrSerialization = errors.New("serialization failure")
	ErrPersistence   = errors.New("persistence failure")
)

// Buckets the blockchain uses in storage.
var (
	BlocksBucket = []byte("blocks")
	UTXOBucket   = []byte("utxos")
)

// tipKey holds the hash of the current head of the chain.
var tipKey = []byte("LAST")

// =============================================================================

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing the blockchain. Every write must be
// durable before the call returns.
type Storage interface {
	Get(bucket []byte, key []byte) ([]byte, error)
	Put(bucket []byte, key []byte, value []byte) error
	ForEach(bucket []byte, fn func(key []byte, value []byte) error) error
	Replace(bucket []byte, entries map[string][]byte) error
	Close() error
}

// =============================================================================

// Database manages the blocks persisted in storage and the tip of the chain.
type Database struct {
	mu        sync.RWMutex
	storage   Storage
	tipHash   string
	tipHeight int64
}

// New constructs a database over the storage and loads the current tip if
// a chain already exists.
func New(storage Storage) (*Database, error) {
	db := Database{
		storage:   storage,
		tipHeight: -1,
	}

	tip, err := storage.Get(BlocksBucket, tipKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &db, nil
		}
		return nil, fmt.Errorf("%w: reading tip: %w", ErrPersistence, err)
	}

	block, err := db.GetBlock(string(tip))
	if err != nil {
		return nil, fmt.Errorf("loading tip block: %w", err)
	}

	db.tipHash = block.Hash
	db.tipHeight = int64(block.Height)

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.storage.Close()
}

// Storage returns the storage the database writes to.
func (db *Database) Storage() Storage {
	return db.storage
}

// TipHash returns the hash of the current head of the chain. An empty
// string means there is no chain.
func (db *Database) TipHash() string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.tipHash
}

// BestHeight returns the height of the current head of the chain or -1 if
// there is no chain.
func (db *Database) BestHeight() int64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.tipHeight
}

// GetBlock returns the block stored under the specified hash.
func (db *Database) GetBlock(hash string) (Block, error) {
	if hash == "" {
		return Block{}, fmt.Errorf("block %q: %w", hash, ErrNotFound)
	}

	data, err := db.storage.Get(BlocksBucket, []byte(hash))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Block{}, fmt.Errorf("block %q: %w", hash, ErrNotFound)
		}
		return Block{}, fmt.Errorf("%w: reading block %s: %w", ErrPersistence, hash, err)
	}

	var block Block
	if err := rlp.DecodeBytes(data, &block); err != nil {
		return Block{}, fmt.Errorf("%w: decoding block %s: %w", ErrSerialization, hash, err)
	}

	return block, nil
}

// Append stores the block. Appending a block that already exists is a no-op.
// The tip only moves when the block is higher than the current tip. The
// return value reports whether the tip moved.
func (db *Database) Append(block Block) (bool, error) {
	if block.Hash == "" {
		return false, errors.New("block has no hash")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.storage.Get(BlocksBucket, []byte(block.Hash))
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, ErrNotFound):
		return false, fmt.Errorf("%w: checking block %s: %w", ErrPersistence, block.Hash, err)
	}

	data, err := rlp.EncodeToBytes(block)
	if err != nil {
		return false, fmt.Errorf("%w: encoding block %s: %w", ErrSerialization, block.Hash, err)
	}

	if err := db.storage.Put(BlocksBucket, []byte(block.Hash), data); err != nil {
		return false, fmt.Errorf("%w: writing block %s: %w", ErrPersistence, block.Hash, err)
	}

	if db.tipHeight >= 0 && int64(block.Height) <= db.tipHeight {
		return false, nil
	}

	if err := db.storage.Put(BlocksBucket, tipKey, []byte(block.Hash)); err != nil {
		return false, fmt.Errorf("%w: writing tip %s: %w", ErrPersistence, block.Hash, err)
	}

	db.tipHash = block.Hash
	db.tipHeight = int64(block.Height)

	return true, nil
}

// Create mines the genesis block paying the reward to the address and
// stores it as the head of a new chain.
func (db *Database) Create(ctx context.Context, address string, evHandler func(v string, args ...any)) (Block, error) {
	if db.TipHash() != "" {
		return Block{}, ErrChainExists
	}

	block, err := NewGenesisBlock(ctx, address, evHandler)
	if err != nil {
		return Block{}, err
	}

	if _, err := db.Append(block); err != nil {
		return Block{}, err
	}

	return block, nil
}

// MineBlock verifies the transaction signatures, mines a block on top of
// the current tip and stores it. Spent outputs and value totals are not
// checked here; callers check them against the utxo index.
func (db *Database) MineBlock(ctx context.Context, txs []Transaction, evHandler func(v string, args ...any)) (Block, error) {
	for _, tx := range txs {
		ok, err := db.VerifyTransaction(tx)
		if err != nil {
			return Block{}, fmt.Errorf("verifying tx %s: %w", tx.ID, err)
		}

		if !ok {
			return Block{}, fmt.Errorf("tx %s: %w", tx.ID, ErrInvalidSignature)
		}
	}

	db.mu.RLock()
	args := POWArgs{
		PrevBlockHash: db.tipHash,
		Height:        uint64(db.tipHeight + 1),
		Transactions:  txs,
		EvHandler:     evHandler,
	}
	db.mu.RUnlock()

	block, err := POW(ctx, args)
	if err != nil {
		return Block{}, err
	}

	if _, err := db.Append(block); err != nil {
		return Block{}, err
	}

	return block, nil
}

// ForEachBlock calls the function for every block walking from the tip back
// to genesis.
func (db *Database) ForEachBlock(fn func(block Block) error) error {
	iter := db.Iterator()
	for block, ok := iter.Next(); ok; block, ok = iter.Next() {
		if err := fn(block); err != nil {
			return err
		}
	}

	return iter.Err()
}

// BlockHashes returns the hashes of every block on the chain from the tip
// back to genesis.
func (db *Database) BlockHashes() ([]string, error) {
	var hashes []string
	f := func(block Block) error {
		hashes = append(hashes, block.Hash)
		return nil
	}

	if err := db.ForEachBlock(f); err != nil {
		return nil, err
	}

	return hashes, nil
}

// FindTransaction locates a transaction on the chain by id.
func (db *Database) FindTransaction(id string) (Transaction, error) {
	var found Transaction
	f := func(block Block) error {
		for _, tx := range block.Transactions {
			if tx.ID == id {
				found = tx
				return errStopIteration
			}
		}
		return nil
	}

	if err := db.ForEachBlock(f); err != nil && !errors.Is(err, errStopIteration) {
		return Transaction{}, err
	}

	if found.ID == "" {
		return Transaction{}, fmt.Errorf("transaction %q: %w", id, ErrNotFound)
	}

	return found, nil
}

// PrevTransactions returns the transactions on the chain that the inputs
// of the transaction spend.
func (db *Database) PrevTransactions(tx Transaction) (map[string]Transaction, error) {
	prevTxs := make(map[string]Transaction)
	if tx.IsCoinbase() {
		return prevTxs, nil
	}

	wanted := make(map[string]struct{})
	for _, in := range tx.Vin {
		wanted[in.TxID] = struct{}{}
	}

	f := func(block Block) error {
		for _, chainTx := range block.Transactions {
			if _, exists := wanted[chainTx.ID]; !exists {
				continue
			}
			prevTxs[chainTx.ID] = chainTx
			delete(wanted, chainTx.ID)
		}

		if len(wanted) == 0 {
			return errStopIteration
		}
		return nil
	}

	if err := db.ForEachBlock(f); err != nil && !errors.Is(err, errStopIteration) {
		return nil, err
	}

	for id := range wanted {
		return nil, fmt.Errorf("%w: %s", ErrMissingPrevTx, id)
	}

	return prevTxs, nil
}

// SignTransaction signs the inputs of the transaction using the chain to
// locate the outputs being spent.
func (db *Database) SignTransaction(tx *Transaction, privateKey *ecdsa.PrivateKey) error {
	prevTxs, err := db.PrevTransactions(*tx)
	if err != nil {
		return err
	}

	return tx.Sign(privateKey, prevTxs)
}

// VerifyTransaction checks the signatures of the transaction using the chain
// to locate the outputs being spent.
func (db *Database) VerifyTransaction(tx Transaction) (bool, error) {
	if tx.IsCoinbase() {
		return true, nil
	}

	prevTxs, err := db.PrevTransactions(tx)
	if err != nil {
		return false, err
	}

	return tx.Verify(prevTxs)
}

// FindUTXO scans the chain from the tip back to genesis and returns every
// output that no input on the chain spends, grouped by transaction id.
func (db *Database) FindUTXO() (map[string][]UnspentOutput, error) {
	utxo := make(map[string][]UnspentOutput)
	spent := make(map[string]map[uint32]struct{})

	f := func(block Block) error {

		// Walk the transactions backward so spends inside the same block
		// are seen before the outputs they consume.
		for i := len(block.Transactions) - 1; i >= 0; i-- {
			tx := block.Transactions[i]

			for idx, out := range tx.Vout {
				if _, exists := spent[tx.ID][uint32(idx)]; exists {
					continue
				}
				utxo[tx.ID] = append(utxo[tx.ID], UnspentOutput{
					Index:      uint32(idx),
					Value:      out.Value,
					PubKeyHash: out.PubKeyHash,
				})
			}

			if tx.IsCoinbase() {
				continue
			}

			for _, in := range tx.Vin {
				if spent[in.TxID] == nil {
					spent[in.TxID] = make(map[uint32]struct{})
				}
				spent[in.TxID][uint32(in.Vout)] = struct{}{}
			}
		}

		return nil
	}

	if err := db.ForEachBlock(f); err != nil {
		return nil, err
	}

	return utxo, nil
}

// errStopIteration ends a ForEachBlock walk early.
var errStopIteration = errors.New("stop iteration")
