package database

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ardanlabs/utxochain/foundation/blockchain/genesis"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	gmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/rlp"
)

// Set of errors related to building and checking transactions.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMissingPrevTx     = errors.New("missing previous transaction")
	ErrInvalidSignature  = errors.New("invalid transaction signature")
	ErrValueOverflow     = errors.New("value overflows uint64")
)

// SumValues adds the values, failing when the total doesn't fit a uint64.
func SumValues(values ...uint64) (uint64, error) {
	var total uint64
	for _, v := range values {
		var overflow bool
		if total, overflow = gmath.SafeAdd(total, v); overflow {
			return 0, ErrValueOverflow
		}
	}

	return total, nil
}

// coinbaseVout is the output index carried by the single coinbase input.
const coinbaseVout = -1

// =============================================================================

// TxInput references an output of a previous transaction being spent.
type TxInput struct {
	TxID      string `json:"txid"`      // Bitcoin: Transaction holding the output being spent.
	Vout      int32  `json:"vout"`      // Bitcoin: Index of the output in that transaction.
	Signature []byte `json:"signature"` // Signature over the signing copy of the transaction.
	PubKey    []byte `json:"pub_key"`   // Spender's public key. Free form data on a coinbase.
}

// txInputRLP is the encoded form of a TxInput. RLP has no signed integers
// so the output index travels as its 32 bit two's complement.
type txInputRLP struct {
	TxID      string
	Vout      uint64
	Signature []byte
	PubKey    []byte
}

// EncodeRLP implements the rlp.Encoder interface.
func (in TxInput) EncodeRLP(w io.Writer) error {
	enc := txInputRLP{
		TxID:      in.TxID,
		Vout:      uint64(uint32(in.Vout)),
		Signature: in.Signature,
		PubKey:    in.PubKey,
	}

	return rlp.Encode(w, enc)
}

// DecodeRLP implements the rlp.Decoder interface.
func (in *TxInput) DecodeRLP(s *rlp.Stream) error {
	var enc txInputRLP
	if err := s.Decode(&enc); err != nil {
		return err
	}

	if enc.Vout > math.MaxUint32 {
		return fmt.Errorf("vout out of range: %d", enc.Vout)
	}

	*in = TxInput{
		TxID:      enc.TxID,
		Vout:      int32(uint32(enc.Vout)),
		Signature: enc.Signature,
		PubKey:    enc.PubKey,
	}

	return nil
}

// UsesKey reports whether the input was signed by the owner of the
// public key hash.
func (in TxInput) UsesKey(pubKeyHash []byte) bool {
	pkh, err := signature.PubKeyHash(in.PubKey)
	if err != nil {
		return false
	}

	return bytes.Equal(pkh, pubKeyHash)
}

// =============================================================================

// TxOutput represents value locked to the owner of a public key hash.
type TxOutput struct {
	Value      uint64 `json:"value"`
	PubKeyHash []byte `json:"pub_key_hash"`
}

// NewTxOutput constructs an output locked to the specified address.
func NewTxOutput(value uint64, address string) (TxOutput, error) {
	pkh, err := DecodeAddress(address)
	if err != nil {
		return TxOutput{}, err
	}

	out := TxOutput{
		Value:      value,
		PubKeyHash: pkh,
	}

	return out, nil
}

// IsLockedWithKey reports whether the output can be spent by the owner of
// the public key hash.
func (out TxOutput) IsLockedWithKey(pubKeyHash []byte) bool {
	return bytes.Equal(out.PubKeyHash, pubKeyHash)
}

// =============================================================================

// Transaction moves value from a set of previous outputs to a new set
// of outputs.
type Transaction struct {
	ID   string     `json:"id"`
	Vin  []TxInput  `json:"vin"`
	Vout []TxOutput `json:"vout"`
}

// NewCoinbaseTx constructs the reward transaction for a block. When no data
// is provided, random data is added so two rewards to the same address
// produce different ids.
func NewCoinbaseTx(to string, data string) (Transaction, error) {
	if data == "" {
		random := make([]byte, 20)
		if _, err := rand.Read(random); err != nil {
			return Transaction{}, err
		}
		data = fmt.Sprintf("Reward to : %s %s", to, hex.EncodeToString(random))
	}

	out, err := NewTxOutput(genesis.MiningReward, to)
	if err != nil {
		return Transaction{}, err
	}

	tx := Transaction{
		Vin:  []TxInput{{TxID: "", Vout: coinbaseVout, PubKey: []byte(data)}},
		Vout: []TxOutput{out},
	}

	if tx.ID, err = tx.CalculateID(); err != nil {
		return Transaction{}, err
	}

	return tx, nil
}

// OutPoint identifies a single output of a transaction.
type OutPoint struct {
	TxID  string
	Index uint32
}

// UTXOSource represents the behavior required to build and sign a payment.
type UTXOSource interface {
	FindSpendable(pubKeyHash []byte, amount uint64) (uint64, []OutPoint, error)
	PrevTransactions(tx Transaction) (map[string]Transaction, error)
}

// NewPaymentTx constructs and signs a transaction paying amount to the
// specified address with the outputs owned by the private key. Outputs are
// selected in the order the source provides them.
func NewPaymentTx(from *ecdsa.PrivateKey, to string, amount uint64, src UTXOSource) (Transaction, error) {
	if amount == 0 {
		return Transaction{}, errors.New("amount must be greater than zero")
	}

	pub := signature.PublicKeyBytes(from.PublicKey)
	fromPKH, err := signature.PubKeyHash(pub)
	if err != nil {
		return Transaction{}, err
	}

	toPKH, err := DecodeAddress(to)
	if err != nil {
		return Transaction{}, err
	}

	accumulated, outpoints, err := src.FindSpendable(fromPKH, amount)
	if err != nil {
		return Transaction{}, err
	}

	if accumulated < amount {
		return Transaction{}, fmt.Errorf("%w: available %d, requested %d", ErrInsufficientFunds, accumulated, amount)
	}

	var tx Transaction
	for _, op := range outpoints {
		tx.Vin = append(tx.Vin, TxInput{
			TxID:   op.TxID,
			Vout:   int32(op.Index),
			PubKey: pub,
		})
	}

	tx.Vout = append(tx.Vout, TxOutput{Value: amount, PubKeyHash: toPKH})
	if accumulated > amount {
		tx.Vout = append(tx.Vout, TxOutput{Value: accumulated - amount, PubKeyHash: fromPKH})
	}

	if tx.ID, err = tx.CalculateID(); err != nil {
		return Transaction{}, err
	}

	prevTxs, err := src.PrevTransactions(tx)
	if err != nil {
		return Transaction{}, err
	}

	if err := tx.Sign(from, prevTxs); err != nil {
		return Transaction{}, err
	}

	return tx, nil
}

// CalculateID returns the hex encoded sha256 of the encoded transaction with
// the id field cleared.
func (tx Transaction) CalculateID() (string, error) {
	tx.ID = ""

	data, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return "", fmt.Errorf("%w: encoding transaction: %s", ErrSerialization, err)
	}

	return signature.Hash(data), nil
}

// IsCoinbase reports whether the transaction is a block reward.
func (tx Transaction) IsCoinbase() bool {
	return len(tx.Vin) == 1 && tx.Vin[0].TxID == "" && tx.Vin[0].Vout == coinbaseVout
}

// OutputValue returns the total value of the outputs.
func (tx Transaction) OutputValue() (uint64, error) {
	values := make([]uint64, len(tx.Vout))
	for i, out := range tx.Vout {
		values[i] = out.Value
	}

	return SumValues(values...)
}

// Sign signs every input of the transaction with the private key. The
// previous transactions must contain every transaction the inputs spend.
func (tx *Transaction) Sign(privateKey *ecdsa.PrivateKey, prevTxs map[string]Transaction) error {
	if tx.IsCoinbase() {
		return nil
	}

	if err := tx.checkPrevTxs(prevTxs); err != nil {
		return err
	}

	trimmed := tx.trimmedCopy()
	for i, in := range tx.Vin {
		lock := prevTxs[in.TxID].Vout[in.Vout].PubKeyHash

		digest, err := trimmed.signingDigest(i, lock)
		if err != nil {
			return err
		}

		sig, err := signature.Sign(digest, privateKey)
		if err != nil {
			return err
		}

		tx.Vin[i].Signature = sig
	}

	return nil
}

// Verify checks the signature on every input of the transaction. It stops
// at the first input that does not verify.
func (tx Transaction) Verify(prevTxs map[string]Transaction) (bool, error) {
	if tx.IsCoinbase() {
		return true, nil
	}

	if err := tx.checkPrevTxs(prevTxs); err != nil {
		return false, err
	}

	trimmed := tx.trimmedCopy()
	for i, in := range tx.Vin {
		lock := prevTxs[in.TxID].Vout[in.Vout].PubKeyHash

		if !in.UsesKey(lock) {
			return false, nil
		}

		digest, err := trimmed.signingDigest(i, lock)
		if err != nil {
			return false, err
		}

		if !signature.Verify(in.PubKey, digest, in.Signature) {
			return false, nil
		}
	}

	return true, nil
}

// Hash implements the merkle.Hashable interface. The leaf of a transaction
// is its identifier.
func (tx Transaction) Hash() ([]byte, error) {
	if tx.ID == "" {
		return nil, errors.New("transaction has no id")
	}

	return []byte(tx.ID), nil
}

// Equals implements the merkle.Hashable interface.
func (tx Transaction) Equals(other Transaction) bool {
	return tx.ID == other.ID
}

// =============================================================================

// checkPrevTxs validates every input references a known transaction and
// an output that exists in it.
func (tx Transaction) checkPrevTxs(prevTxs map[string]Transaction) error {
	for _, in := range tx.Vin {
		prev, exists := prevTxs[in.TxID]
		if !exists || prev.ID == "" {
			return fmt.Errorf("%w: %s", ErrMissingPrevTx, in.TxID)
		}

		if in.Vout < 0 || int(in.Vout) >= len(prev.Vout) {
			return fmt.Errorf("%w: %s has no output %d", ErrMissingPrevTx, in.TxID, in.Vout)
		}
	}

	return nil
}

// trimmedCopy returns a copy of the transaction with every signature and
// public key cleared.
func (tx Transaction) trimmedCopy() Transaction {
	vin := make([]TxInput, len(tx.Vin))
	for i, in := range tx.Vin {
		vin[i] = TxInput{TxID: in.TxID, Vout: in.Vout}
	}

	vout := make([]TxOutput, len(tx.Vout))
	copy(vout, tx.Vout)

	return Transaction{
		ID:   tx.ID,
		Vin:  vin,
		Vout: vout,
	}
}

// signingDigest returns the message signed for the input at index i. The
// spent output's lock is placed in that input's key field for the hash.
func (tx Transaction) signingDigest(i int, lock []byte) ([]byte, error) {
	tx.Vin[i].PubKey = lock
	defer func() { tx.Vin[i].PubKey = nil }()

	id, err := tx.CalculateID()
	if err != nil {
		return nil, err
	}

	return signature.Digest(id)
}
