package database

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/genesis"
	"github.com/ardanlabs/utxochain/foundation/blockchain/merkle"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/rlp"
)

// Block represents a group of transactions batched together.
type Block struct {
	Timestamp     uint64        `json:"timestamp"`       // Bitcoin: Time the block was mined in unix milliseconds.
	Transactions  []Transaction `json:"transactions"`    // Bitcoin: Transactions included in the block.
	PrevBlockHash string        `json:"prev_block_hash"` // Bitcoin: Hash of the previous block in the chain.
	Hash          string        `json:"hash"`            // Hash that solves the work problem.
	Height        uint64        `json:"height"`          // Ethereum: Block number in the chain.
	Nonce         uint64        `json:"nonce"`           // Bitcoin: Value identified to solve the hash solution.
}

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	PrevBlockHash string
	Height        uint64
	Transactions  []Transaction
	EvHandler     func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. The nonce starts at zero and the
// search only ends early when the context is cancelled.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	root, err := MerkleRoot(args.Transactions)
	if err != nil {
		return Block{}, err
	}

	nb := Block{
		Timestamp:     uint64(time.Now().UTC().UnixMilli()),
		Transactions:  args.Transactions,
		PrevBlockHash: args.PrevBlockHash,
		Height:        args.Height,
		Nonce:         0,
	}

	ev("database: POW: MINING: started: height[%d]: txs[%d]", nb.Height, len(nb.Transactions))
	defer ev("database: POW: MINING: completed")

	for _, tx := range nb.Transactions {
		ev("database: POW: MINING: tx[%s]", tx.ID)
	}

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: POW: MINING: attempts[%d]", attempts)
		}

		if ctx.Err() != nil {
			ev("database: POW: MINING: CANCELLED")
			return Block{}, ctx.Err()
		}

		hash, err := nb.hashWithRoot(root)
		if err != nil {
			return Block{}, err
		}

		if !isHashSolved(hash) {
			nb.Nonce++
			continue
		}

		nb.Hash = hash

		ev("database: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", nb.PrevBlockHash, hash, attempts)

		return nb, nil
	}
}

// NewGenesisBlock mines the first block of a chain, paying the mining reward
// to the specified address.
func NewGenesisBlock(ctx context.Context, address string, evHandler func(v string, args ...any)) (Block, error) {
	coinbase, err := NewCoinbaseTx(address, genesis.CoinbaseData)
	if err != nil {
		return Block{}, err
	}

	args := POWArgs{
		PrevBlockHash: "",
		Height:        0,
		Transactions:  []Transaction{coinbase},
		EvHandler:     evHandler,
	}

	return POW(ctx, args)
}

// CalculateHash recomputes the hash of the block from its contents.
func (b Block) CalculateHash() (string, error) {
	root, err := MerkleRoot(b.Transactions)
	if err != nil {
		return "", err
	}

	return b.hashWithRoot(root)
}

// ValidatePOW checks the stored hash is reproducible from the block and
// solves the work problem.
func (b Block) ValidatePOW() error {
	hash, err := b.CalculateHash()
	if err != nil {
		return err
	}

	if hash != b.Hash {
		return fmt.Errorf("block hash mismatch, got %s, exp %s", b.Hash, hash)
	}

	if !isHashSolved(hash) {
		return fmt.Errorf("%s invalid block hash", hash)
	}

	return nil
}

// MerkleRoot returns the merkle root of the transactions in their order.
func MerkleRoot(txs []Transaction) ([]byte, error) {
	return merkle.Root(txs)
}

// =============================================================================

// hashWithRoot hashes the fields that identify the block.
func (b Block) hashWithRoot(root []byte) (string, error) {
	fields := []any{
		b.PrevBlockHash,
		root,
		b.Timestamp,
		uint64(genesis.Difficulty),
		b.Nonce,
	}

	data, err := rlp.EncodeToBytes(fields)
	if err != nil {
		return "", fmt.Errorf("%w: encoding block header: %s", ErrSerialization, err)
	}

	return signature.Hash(data), nil
}

// isHashSolved checks the hash to make sure it complies with
// the POW rules. We need to match a difficulty number of 0's.
func isHashSolved(hash string) bool {
	if len(hash) != hex.EncodedLen(signature.DigestLength) {
		return false
	}

	return strings.HasPrefix(hash, strings.Repeat("0", genesis.Difficulty))
}
