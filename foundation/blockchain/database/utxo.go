package database

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// UnspentOutput is an output not yet spent by any input on the chain. The
// index is the position of the output in its transaction.
type UnspentOutput struct {
	Index      uint32 `json:"index"`
	Value      uint64 `json:"value"`
	PubKeyHash []byte `json:"pub_key_hash"`
}

// IsLockedWithKey reports whether the output can be spent by the owner of
// the public key hash.
func (uo UnspentOutput) IsLockedWithKey(pubKeyHash []byte) bool {
	return uo.Output().IsLockedWithKey(pubKeyHash)
}

// Output returns the output without its index.
func (uo UnspentOutput) Output() TxOutput {
	return TxOutput{Value: uo.Value, PubKeyHash: uo.PubKeyHash}
}

// =============================================================================

// UTXOSet maintains the index of unspent outputs derived from the chain.
// The index is stored in its own bucket keyed by transaction id.
type UTXOSet struct {
	db *Database
}

// NewUTXOSet constructs the index over the database.
func NewUTXOSet(db *Database) *UTXOSet {
	return &UTXOSet{
		db: db,
	}
}

// Reindex drops the index and rebuilds it from the chain. It returns the
// number of transactions holding unspent outputs.
func (u *UTXOSet) Reindex() (int, error) {
	utxo, err := u.db.FindUTXO()
	if err != nil {
		return 0, err
	}

	entries := make(map[string][]byte, len(utxo))
	for txID, outs := range utxo {
		data, err := rlp.EncodeToBytes(outs)
		if err != nil {
			return 0, fmt.Errorf("%w: encoding outputs of %s: %w", ErrSerialization, txID, err)
		}
		entries[txID] = data
	}

	if err := u.db.storage.Replace(UTXOBucket, entries); err != nil {
		return 0, fmt.Errorf("%w: replacing utxo set: %w", ErrPersistence, err)
	}

	return len(entries), nil
}

// FindSpendable walks the index in storage order collecting outputs locked
// to the public key hash until the amount is covered.
func (u *UTXOSet) FindSpendable(pubKeyHash []byte, amount uint64) (uint64, []OutPoint, error) {
	var accumulated uint64
	var outpoints []OutPoint

	f := func(txID string, outs []UnspentOutput) error {
		for _, out := range outs {
			if accumulated >= amount {
				return errStopIteration
			}

			if !out.IsLockedWithKey(pubKeyHash) {
				continue
			}

			total, err := SumValues(accumulated, out.Value)
			if err != nil {
				return fmt.Errorf("spendable outputs: %w", err)
			}
			accumulated = total
			outpoints = append(outpoints, OutPoint{TxID: txID, Index: out.Index})
		}

		if accumulated >= amount {
			return errStopIteration
		}
		return nil
	}

	if err := u.forEach(f); err != nil && !errors.Is(err, errStopIteration) {
		return 0, nil, err
	}

	return accumulated, outpoints, nil
}

// FindUTXO returns every unspent output locked to the public key hash.
func (u *UTXOSet) FindUTXO(pubKeyHash []byte) ([]UnspentOutput, error) {
	var found []UnspentOutput

	f := func(txID string, outs []UnspentOutput) error {
		for _, out := range outs {
			if out.IsLockedWithKey(pubKeyHash) {
				found = append(found, out)
			}
		}
		return nil
	}

	if err := u.forEach(f); err != nil {
		return nil, err
	}

	return found, nil
}

// Balance returns the sum of every unspent output locked to the public
// key hash.
func (u *UTXOSet) Balance(pubKeyHash []byte) (uint64, error) {
	outs, err := u.FindUTXO(pubKeyHash)
	if err != nil {
		return 0, err
	}

	values := make([]uint64, len(outs))
	for i, out := range outs {
		values[i] = out.Value
	}

	balance, err := SumValues(values...)
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}

	return balance, nil
}

// IsUnspent reports whether the output of the transaction is in the index.
func (u *UTXOSet) IsUnspent(txID string, index uint32) (bool, error) {
	outs, err := u.outputs(txID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	for _, out := range outs {
		if out.Index == index {
			return true, nil
		}
	}

	return false, nil
}

// Output returns the unspent output of the transaction at the index.
func (u *UTXOSet) Output(txID string, index uint32) (UnspentOutput, error) {
	outs, err := u.outputs(txID)
	if err != nil {
		return UnspentOutput{}, err
	}

	for _, out := range outs {
		if out.Index == index {
			return out, nil
		}
	}

	return UnspentOutput{}, fmt.Errorf("output %s:%d: %w", txID, index, ErrNotFound)
}

// CountTransactions returns the number of transactions in the index.
func (u *UTXOSet) CountTransactions() (int, error) {
	var count int
	f := func(txID string, outs []UnspentOutput) error {
		count++
		return nil
	}

	if err := u.forEach(f); err != nil {
		return 0, err
	}

	return count, nil
}

// PrevTransactions returns the transactions on the chain that the inputs
// of the transaction spend.
func (u *UTXOSet) PrevTransactions(tx Transaction) (map[string]Transaction, error) {
	return u.db.PrevTransactions(tx)
}

// =============================================================================

// outputs returns the unspent outputs stored for the transaction.
func (u *UTXOSet) outputs(txID string) ([]UnspentOutput, error) {
	data, err := u.db.storage.Get(UTXOBucket, []byte(txID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("utxo %q: %w", txID, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: reading utxo %s: %w", ErrPersistence, txID, err)
	}

	var outs []UnspentOutput
	if err := rlp.DecodeBytes(data, &outs); err != nil {
		return nil, fmt.Errorf("%w: decoding utxo %s: %w", ErrSerialization, txID, err)
	}

	return outs, nil
}

// forEach decodes every entry of the index in storage order.
func (u *UTXOSet) forEach(fn func(txID string, outs []UnspentOutput) error) error {
	f := func(key []byte, value []byte) error {
		var outs []UnspentOutput
		if err := rlp.DecodeBytes(value, &outs); err != nil {
			return fmt.Errorf("%w: decoding utxo %s: %w", ErrSerialization, key, err)
		}
		return fn(string(key), outs)
	}

	return u.db.storage.ForEach(UTXOBucket, f)
}
