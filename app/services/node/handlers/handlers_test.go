package handlers_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/utxochain/app/services/node/handlers"
	"github.com/ardanlabs/utxochain/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/utxochain/business/web/errs"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/genesis"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/utxochain/foundation/events"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

type account struct {
	key     *ecdsa.PrivateKey
	address string
}

func newAccount(t *testing.T) account {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
	}

	address, err := database.PublicKeyToAddress(key.PublicKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build an address: %v", failed, err)
	}

	return account{key: key, address: address}
}

type node struct {
	state  *state.State
	public http.Handler
	debug  http.Handler
}

func newNode(t *testing.T, genesisAddr string) node {
	t.Helper()

	strg, err := memory.New()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
	}

	st, err := state.New(state.Config{Storage: strg})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct state: %v", failed, err)
	}
	t.Cleanup(func() { st.Shutdown() })

	if genesisAddr != "" {
		if _, err := st.CreateChain(context.Background(), genesisAddr); err != nil {
			t.Fatalf("\t%s\tShould be able to create the chain: %v", failed, err)
		}
	}

	log := zap.NewNop().Sugar()

	n := node{
		state: st,
		public: handlers.PublicMux(handlers.MuxConfig{
			Shutdown: make(chan os.Signal, 1),
			Log:      log,
			State:    st,
			Evts:     events.New(),
		}),
		debug: handlers.DebugMux("test", log, st),
	}

	return n
}

func call(t *testing.T, h http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("\t%s\tShould be able to encode the request: %v", failed, err)
		}
	}

	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	return w
}

// =============================================================================

func Test_Queries(t *testing.T) {
	alice := newAccount(t)
	n := newNode(t, alice.address)

	t.Log("Given the need to query a node over http.")
	{
		t.Logf("\tTest 0:\tWhen asking for the status of a new chain.")
		{
			w := call(t, n.public, http.MethodGet, "/v1/node/status", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tShould receive a status code of 200: %d", failed, w.Code)
			}

			var st struct {
				Hash   string `json:"latest_block_hash"`
				Height int64  `json:"latest_block_height"`
			}
			if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
				t.Fatalf("\t%s\tShould be able to decode the status: %v", failed, err)
			}

			if st.Height != 0 || st.Hash != n.state.RetrieveTipHash() {
				t.Fatalf("\t%s\tShould report the genesis tip: %+v", failed, st)
			}
			t.Logf("\t%s\tShould report the genesis tip.", success)
		}

		t.Logf("\tTest 1:\tWhen asking for a balance.")
		{
			w := call(t, n.public, http.MethodGet, "/v1/balance/"+alice.address, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tShould receive a status code of 200: %d", failed, w.Code)
			}

			var bal struct {
				Balance uint64 `json:"balance"`
			}
			if err := json.NewDecoder(w.Body).Decode(&bal); err != nil {
				t.Fatalf("\t%s\tShould be able to decode the balance: %v", failed, err)
			}

			if bal.Balance != 100 {
				t.Fatalf("\t%s\tShould hold the genesis reward: got %d", failed, bal.Balance)
			}
			t.Logf("\t%s\tShould hold the genesis reward.", success)

			w = call(t, n.public, http.MethodGet, "/v1/balance/nope", nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tShould reject a bad address with 400: %d", failed, w.Code)
			}
			t.Logf("\t%s\tShould reject a bad address with 400.", success)
		}

		t.Logf("\tTest 2:\tWhen asking for the chain parameters.")
		{
			w := call(t, n.public, http.MethodGet, "/v1/genesis", nil)

			var gen genesis.Genesis
			if err := json.NewDecoder(w.Body).Decode(&gen); err != nil {
				t.Fatalf("\t%s\tShould be able to decode the parameters: %v", failed, err)
			}

			if gen != genesis.Load() {
				t.Fatalf("\t%s\tShould report the compiled parameters: %+v", failed, gen)
			}
			t.Logf("\t%s\tShould report the compiled parameters.", success)
		}

		t.Logf("\tTest 3:\tWhen listing the blocks.")
		{
			w := call(t, n.public, http.MethodGet, "/v1/blocks/list", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tShould receive a status code of 200: %d", failed, w.Code)
			}

			var blocks []struct {
				Hash     string `json:"hash"`
				ValidPOW bool   `json:"valid_pow"`
			}
			if err := json.NewDecoder(w.Body).Decode(&blocks); err != nil {
				t.Fatalf("\t%s\tShould be able to decode the blocks: %v", failed, err)
			}

			if len(blocks) != 1 || !blocks[0].ValidPOW {
				t.Fatalf("\t%s\tShould list the genesis block: %+v", failed, blocks)
			}
			t.Logf("\t%s\tShould list the genesis block.", success)
		}
	}
}

func Test_SubmitTransaction(t *testing.T) {
	alice := newAccount(t)
	bob := newAccount(t)
	n := newNode(t, alice.address)

	t.Log("Given the need to submit transactions over http.")
	{
		t.Logf("\tTest 0:\tWhen submitting a signed payment.")
		{
			tx, err := n.state.NewPaymentTx(alice.key, bob.address, 30)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to build the payment: %v", failed, err)
			}

			w := call(t, n.public, http.MethodPost, "/v1/tx/submit", public.NewSubmitTx(tx))
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tShould receive a status code of 200: %d %s", failed, w.Code, w.Body)
			}
			t.Logf("\t%s\tShould receive a status code of 200.", success)

			got, exists := n.state.QueryMempoolTx(tx.ID)
			if !exists || !got.Equals(tx) {
				t.Fatalf("\t%s\tShould hold the exact transaction in the mempool.", failed)
			}
			t.Logf("\t%s\tShould hold the exact transaction in the mempool.", success)

			w = call(t, n.public, http.MethodGet, "/v1/tx/mempool", nil)
			var txs []public.SubmitTx
			if err := json.NewDecoder(w.Body).Decode(&txs); err != nil {
				t.Fatalf("\t%s\tShould be able to decode the mempool: %v", failed, err)
			}
			if len(txs) != 1 || txs[0].ID != tx.ID {
				t.Fatalf("\t%s\tShould list the transaction in the mempool: %+v", failed, txs)
			}
			t.Logf("\t%s\tShould list the transaction in the mempool.", success)
		}

		t.Logf("\tTest 1:\tWhen submitting a transaction with a tampered signature.")
		{
			tx, err := n.state.NewPaymentTx(alice.key, bob.address, 10)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to build the payment: %v", failed, err)
			}
			tx.Vin[0].Signature[4] ^= 0x01

			w := call(t, n.public, http.MethodPost, "/v1/tx/submit", public.NewSubmitTx(tx))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tShould receive a status code of 400: %d", failed, w.Code)
			}
			t.Logf("\t%s\tShould receive a status code of 400.", success)

			if _, exists := n.state.QueryMempoolTx(tx.ID); exists {
				t.Fatalf("\t%s\tShould not add the transaction to the mempool.", failed)
			}
			t.Logf("\t%s\tShould not add the transaction to the mempool.", success)
		}

		t.Logf("\tTest 2:\tWhen submitting a malformed transaction.")
		{
			stx := public.SubmitTx{ID: "abc"}

			w := call(t, n.public, http.MethodPost, "/v1/tx/submit", stx)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tShould receive a status code of 400: %d", failed, w.Code)
			}

			var resp errs.Response
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("\t%s\tShould be able to decode the error: %v", failed, err)
			}

			if _, exists := resp.Fields["id"]; !exists {
				t.Fatalf("\t%s\tShould report the id field: %+v", failed, resp)
			}
			if _, exists := resp.Fields["vin"]; !exists {
				t.Fatalf("\t%s\tShould report the vin field: %+v", failed, resp)
			}
			t.Logf("\t%s\tShould report the failing fields.", success)
		}
	}
}

func Test_Debug(t *testing.T) {
	t.Log("Given the need to check the health of a node.")
	{
		tt := []struct {
			name    string
			genesis bool
			path    string
			status  int
		}{
			{"liveness", false, "/debug/liveness", http.StatusOK},
			{"not ready", false, "/debug/readiness", http.StatusServiceUnavailable},
			{"ready", true, "/debug/readiness", http.StatusOK},
		}

		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen checking %s.", testID, tst.name)
				{
					var genesisAddr string
					if tst.genesis {
						genesisAddr = newAccount(t).address
					}
					n := newNode(t, genesisAddr)

					w := call(t, n.debug, http.MethodGet, tst.path, nil)
					if w.Code != tst.status {
						t.Fatalf("\t%s\tShould receive a status code of %d: %d", failed, tst.status, w.Code)
					}
					t.Logf("\t%s\tShould receive a status code of %d.", success, tst.status)
				}
			}

			t.Run(tst.name, f)
		}
	}
}
