package state_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math"
	"testing"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/blockchain/storage/memory"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func ifErrFailNow(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

type account struct {
	key     *ecdsa.PrivateKey
	address string
}

func newAccount(t *testing.T) account {
	t.Helper()

	key, err := crypto.GenerateKey()
	ifErrFailNow(t, err)

	address, err := database.PublicKeyToAddress(key.PublicKey)
	ifErrFailNow(t, err)

	return account{key: key, address: address}
}

func newState(t *testing.T, miner string) *state.State {
	t.Helper()

	strg, err := memory.New()
	ifErrFailNow(t, err)

	st, err := state.New(state.Config{
		MinerAddress: miner,
		Storage:      strg,
		EvHandler:    func(v string, args ...any) { t.Logf(v, args...) },
	})
	ifErrFailNow(t, err)

	t.Cleanup(func() { st.Shutdown() })

	return st
}

// =============================================================================

func Test_MineNewBlock(t *testing.T) {
	ctx := context.Background()
	alice := newAccount(t)
	bob := newAccount(t)
	miner := newAccount(t)

	st := newState(t, miner.address)
	_, err := st.CreateChain(ctx, alice.address)
	ifErrFailNow(t, err)

	t.Log("Given the need to mine the mempool.")
	{
		if _, err := st.MineNewBlock(ctx); !errors.Is(err, state.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould not mine an empty mempool: %v", failed, err)
		}
		t.Logf("\t%s\tShould not mine an empty mempool.", success)

		pay1, err := st.NewPaymentTx(alice.key, bob.address, 10)
		ifErrFailNow(t, err)

		pay2, err := st.NewPaymentTx(alice.key, bob.address, 20)
		ifErrFailNow(t, err)

		forged := pay1
		forged.ID = "forged"
		forged.Vout = []database.TxOutput{{Value: 1000, PubKeyHash: pay1.Vout[0].PubKeyHash}}

		st.UpsertMempool(pay1)
		st.UpsertMempool(pay2)
		st.UpsertMempool(forged)

		block, err := st.MineNewBlock(ctx)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine a block.", success)

		if len(block.Transactions) != 2 {
			t.Logf("\t%s\tgot: %d", failed, len(block.Transactions))
			t.Logf("\t%s\texp: %d", failed, 2)
			t.Fatalf("\t%s\tShould include one payment and the reward.", failed)
		}
		t.Logf("\t%s\tShould include one payment and the reward.", success)

		if st.RetrieveBestHeight() != 1 || st.RetrieveTipHash() != block.Hash {
			t.Fatalf("\t%s\tShould move the tip to the mined block.", failed)
		}
		t.Logf("\t%s\tShould move the tip to the mined block.", success)

		if st.QueryMempoolLength() != 2 {
			t.Fatalf("\t%s\tShould leave the skipped transactions in the mempool: %d", failed, st.QueryMempoolLength())
		}
		t.Logf("\t%s\tShould leave the skipped transactions in the mempool.", success)

		minerBalance, err := st.QueryBalance(miner.address)
		ifErrFailNow(t, err)
		if minerBalance != 100 {
			t.Fatalf("\t%s\tShould pay the reward to the miner: %d", failed, minerBalance)
		}
		t.Logf("\t%s\tShould pay the reward to the miner.", success)

		if _, err := st.MineNewBlock(ctx); !errors.Is(err, state.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould not mine spent or invalid transactions: %v", failed, err)
		}
		t.Logf("\t%s\tShould not mine spent or invalid transactions.", success)
	}
}

func Test_OutputOverflow(t *testing.T) {
	ctx := context.Background()
	alice := newAccount(t)
	bob := newAccount(t)
	miner := newAccount(t)

	st := newState(t, miner.address)
	genesis, err := st.CreateChain(ctx, alice.address)
	ifErrFailNow(t, err)

	t.Log("Given the need to keep payments from creating value.")
	{
		tx, err := st.NewPaymentTx(alice.key, bob.address, 100)
		ifErrFailNow(t, err)

		alicePKH, err := database.DecodeAddress(alice.address)
		ifErrFailNow(t, err)

		tx.Vout = []database.TxOutput{
			{Value: math.MaxUint64, PubKeyHash: tx.Vout[0].PubKeyHash},
			{Value: 101, PubKeyHash: alicePKH},
		}
		tx.ID, err = tx.CalculateID()
		ifErrFailNow(t, err)

		gtx := genesis.Transactions[0]
		ifErrFailNow(t, tx.Sign(alice.key, map[string]database.Transaction{gtx.ID: gtx}))

		if err := st.ValidateTransaction(tx); !errors.Is(err, database.ErrValueOverflow) {
			t.Fatalf("\t%s\tShould refuse a submitted payment whose outputs wrap: %v", failed, err)
		}
		t.Logf("\t%s\tShould refuse a submitted payment whose outputs wrap.", success)

		st.UpsertMempool(tx)

		if _, err := st.MineNewBlock(ctx); !errors.Is(err, state.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould not mine a gossiped payment whose outputs wrap: %v", failed, err)
		}
		t.Logf("\t%s\tShould not mine a gossiped payment whose outputs wrap.", success)

		if _, err := st.MineTransactions(ctx, []database.Transaction{tx}); !errors.Is(err, database.ErrValueOverflow) {
			t.Fatalf("\t%s\tShould not mine the payment directly: %v", failed, err)
		}
		t.Logf("\t%s\tShould not mine the payment directly.", success)

		balance, err := st.QueryBalance(bob.address)
		if err != nil || balance != 0 || st.RetrieveBestHeight() != 0 {
			t.Fatalf("\t%s\tShould leave the chain untouched: %d %v", failed, balance, err)
		}
		t.Logf("\t%s\tShould leave the chain untouched.", success)
	}
}

func Test_MineTransactions(t *testing.T) {
	ctx := context.Background()
	alice := newAccount(t)
	bob := newAccount(t)

	st := newState(t, "")
	_, err := st.CreateChain(ctx, alice.address)
	ifErrFailNow(t, err)

	t.Log("Given the need to mine payments without the mempool.")
	{
		pay1, err := st.NewPaymentTx(alice.key, bob.address, 10)
		ifErrFailNow(t, err)

		pay2, err := st.NewPaymentTx(alice.key, bob.address, 20)
		ifErrFailNow(t, err)

		if _, err := st.MineTransactions(ctx, []database.Transaction{pay1, pay2}); err == nil {
			t.Fatalf("\t%s\tShould reject two payments spending the same output.", failed)
		}
		t.Logf("\t%s\tShould reject two payments spending the same output.", success)

		cb, err := database.NewCoinbaseTx(alice.address, "")
		ifErrFailNow(t, err)

		if _, err := st.MineTransactions(ctx, []database.Transaction{pay1, cb}); err != nil {
			t.Fatalf("\t%s\tShould mine a payment and a reward: %s", failed, err)
		}
		t.Logf("\t%s\tShould mine a payment and a reward.", success)

		if _, err := st.MineTransactions(ctx, []database.Transaction{pay2}); err == nil {
			t.Fatalf("\t%s\tShould reject a payment spending a spent output.", failed)
		}
		t.Logf("\t%s\tShould reject a payment spending a spent output.", success)

		balance, err := st.QueryBalance(bob.address)
		if err != nil || balance != 10 || st.RetrieveBestHeight() != 1 {
			t.Fatalf("\t%s\tShould only apply the first payment: %d %v", failed, balance, err)
		}
		t.Logf("\t%s\tShould only apply the first payment.", success)
	}
}

func Test_ProcessPeerBlock(t *testing.T) {
	ctx := context.Background()
	alice := newAccount(t)

	source := newState(t, "")
	genesis, err := source.CreateChain(ctx, alice.address)
	ifErrFailNow(t, err)

	st := newState(t, "")

	t.Log("Given the need to accept blocks from peers.")
	{
		tampered := genesis
		tampered.Timestamp++
		if _, err := st.ProcessPeerBlock(tampered); err == nil {
			t.Fatalf("\t%s\tShould reject a block whose work doesn't match.", failed)
		}
		t.Logf("\t%s\tShould reject a block whose work doesn't match.", success)

		moved, err := st.ProcessPeerBlock(genesis)
		if err != nil || !moved {
			t.Fatalf("\t%s\tShould accept a valid block: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept a valid block.", success)

		moved, err = st.ProcessPeerBlock(genesis)
		if err != nil || moved {
			t.Fatalf("\t%s\tShould accept a duplicate block as a no-op: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept a duplicate block as a no-op.", success)

		count, err := st.Reindex()
		if err != nil || count != 1 {
			t.Fatalf("\t%s\tShould index the genesis reward: %d %v", failed, count, err)
		}
		t.Logf("\t%s\tShould index the genesis reward.", success)
	}
}

func Test_InFlight(t *testing.T) {
	st := newState(t, "")

	t.Log("Given the need to track blocks in flight.")
	{
		st.ReplaceInFlight([]string{"h2", "h3"})

		for _, exp := range []string{"h2", "h3"} {
			got, ok := st.PopInFlight()
			if !ok || got != exp {
				t.Logf("\t%s\tgot: %s", failed, got)
				t.Logf("\t%s\texp: %s", failed, exp)
				t.Fatalf("\t%s\tShould pop hashes in order.", failed)
			}
		}
		t.Logf("\t%s\tShould pop hashes in order.", success)

		if _, ok := st.PopInFlight(); ok {
			t.Fatalf("\t%s\tShould report an empty queue.", failed)
		}
		t.Logf("\t%s\tShould report an empty queue.", success)
	}
}

func Test_Config(t *testing.T) {
	strg, err := memory.New()
	ifErrFailNow(t, err)

	t.Log("Given the need to validate the node configuration.")
	{
		if _, err := state.New(state.Config{MinerAddress: "not-an-address", Storage: strg}); !errors.Is(err, database.ErrInvalidAddress) {
			t.Fatalf("\t%s\tShould reject an invalid miner address: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject an invalid miner address.", success)
	}
}
