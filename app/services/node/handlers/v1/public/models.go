package public

import (
	"encoding/hex"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

type txInput struct {
	TxID      string `json:"txid" validate:"required,len=64,hexadecimal"`
	Vout      int32  `json:"vout" validate:"gte=0"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
	PubKey    string `json:"pub_key" validate:"required,hexadecimal"`
}

type txOutput struct {
	Value   uint64 `json:"value" validate:"gt=0"`
	Address string `json:"address" validate:"required,address"`
}

// SubmitTx is a signed transaction posted by a wallet. Binary fields are
// hex encoded and outputs name the address they are locked to.
type SubmitTx struct {
	ID   string     `json:"id" validate:"required,len=64,hexadecimal"`
	Vin  []txInput  `json:"vin" validate:"required,min=1,dive"`
	Vout []txOutput `json:"vout" validate:"required,min=1,dive"`
}

// toTransaction converts the posted form into a transaction.
func (stx SubmitTx) toTransaction() (database.Transaction, error) {
	tx := database.Transaction{
		ID: stx.ID,
	}

	for _, in := range stx.Vin {
		sig, err := hex.DecodeString(in.Signature)
		if err != nil {
			return database.Transaction{}, err
		}

		pub, err := hex.DecodeString(in.PubKey)
		if err != nil {
			return database.Transaction{}, err
		}

		tx.Vin = append(tx.Vin, database.TxInput{
			TxID:      in.TxID,
			Vout:      in.Vout,
			Signature: sig,
			PubKey:    pub,
		})
	}

	for _, out := range stx.Vout {
		txOut, err := database.NewTxOutput(out.Value, out.Address)
		if err != nil {
			return database.Transaction{}, err
		}
		tx.Vout = append(tx.Vout, txOut)
	}

	return tx, nil
}

// NewSubmitTx builds the form a wallet posts for a signed transaction.
func NewSubmitTx(tx database.Transaction) SubmitTx {
	stx := SubmitTx{
		ID: tx.ID,
	}

	for _, in := range tx.Vin {
		stx.Vin = append(stx.Vin, txInput{
			TxID:      in.TxID,
			Vout:      in.Vout,
			Signature: hex.EncodeToString(in.Signature),
			PubKey:    hex.EncodeToString(in.PubKey),
		})
	}

	for _, out := range tx.Vout {
		stx.Vout = append(stx.Vout, txOutput{
			Value:   out.Value,
			Address: database.AddressFromPubKeyHash(out.PubKeyHash),
		})
	}

	return stx
}

// =============================================================================

type block struct {
	Hash          string     `json:"hash"`
	PrevBlockHash string     `json:"prev_block_hash"`
	Height        uint64     `json:"height"`
	Timestamp     uint64     `json:"timestamp"`
	Nonce         uint64     `json:"nonce"`
	ValidPOW      bool       `json:"valid_pow"`
	Transactions  []SubmitTx `json:"transactions"`
}

func toBlock(dbBlock database.Block) block {
	b := block{
		Hash:          dbBlock.Hash,
		PrevBlockHash: dbBlock.PrevBlockHash,
		Height:        dbBlock.Height,
		Timestamp:     dbBlock.Timestamp,
		Nonce:         dbBlock.Nonce,
		ValidPOW:      dbBlock.ValidatePOW() == nil,
		Transactions:  make([]SubmitTx, 0, len(dbBlock.Transactions)),
	}

	for _, dbTx := range dbBlock.Transactions {
		b.Transactions = append(b.Transactions, NewSubmitTx(dbTx))
	}

	return b
}

type balance struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
	Outputs int    `json:"outputs"`
}

type status struct {
	LatestBlockHash   string   `json:"latest_block_hash"`
	LatestBlockHeight int64    `json:"latest_block_height"`
	Mempool           int      `json:"mempool"`
	MinerAddress      string   `json:"miner_address,omitempty"`
	KnownPeers        []string `json:"known_peers"`
}
