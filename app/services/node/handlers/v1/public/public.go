// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/utxochain/business/sys/validate"
	"github.com/ardanlabs/utxochain/business/web/errs"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/genesis"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/events"
	"github.com/ardanlabs/utxochain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return errs.NewShutdown("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id, ch := h.Evts.Acquire()
	defer h.Evts.Release(id)

	h.Log.Infow("websocket open", "traceid", v.TraceID, "subscriber", id)
	defer h.Log.Infow("websocket closed", "traceid", v.TraceID, "subscriber", id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// Genesis returns the chain parameters this node was built with.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, genesis.Load(), http.StatusOK)
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ps := h.State.RetrieveStatus()

	st := status{
		LatestBlockHash:   ps.LatestBlockHash,
		LatestBlockHeight: ps.LatestBlockHeight,
		Mempool:           h.State.QueryMempoolLength(),
		MinerAddress:      h.State.RetrieveMinerAddress(),
		KnownPeers:        make([]string, 0, len(ps.KnownPeers)),
	}
	for _, p := range ps.KnownPeers {
		st.KnownPeers = append(st.KnownPeers, p.ID)
	}

	return web.Respond(ctx, w, st, http.StatusOK)
}

// Blocks returns every block on the chain from the tip back to genesis.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	dbBlocks, err := h.State.QueryBlocks()
	if err != nil {
		return err
	}

	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blocks := make([]block, len(dbBlocks))
	for i, dbBlock := range dbBlocks {
		blocks[i] = toBlock(dbBlock)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Balance returns the balance of the address from the unspent outputs.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")

	outs, err := h.State.QueryUTXO(address)
	if err != nil {
		if errors.Is(err, database.ErrInvalidAddress) {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		return err
	}

	values := make([]uint64, len(outs))
	for i, out := range outs {
		values[i] = out.Value
	}

	total, err := database.SumValues(values...)
	if err != nil {
		return err
	}

	bal := balance{
		Address: address,
		Balance: total,
		Outputs: len(outs),
	}

	return web.Respond(ctx, w, bal, http.StatusOK)
}

// Mempool returns the set of transactions waiting to be mined.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.State.RetrieveMempool()

	txs := make([]SubmitTx, len(mempool))
	for i, tx := range mempool {
		txs[i] = NewSubmitTx(tx)
	}

	return web.Respond(ctx, w, txs, http.StatusOK)
}

// SubmitTransaction accepts a signed transaction from a wallet and hands it
// to the node for gossip and mining.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return errs.NewShutdown("web value missing from context")
	}

	var stx SubmitTx
	if err := web.Decode(r, &stx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(stx); err != nil {
		return err
	}

	tx, err := stx.toTransaction()
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("converting transaction: %w", err), http.StatusBadRequest)
	}

	h.Log.Infow("submit tx", "traceid", v.TraceID, "txid", tx.ID, "inputs", len(tx.Vin), "outputs", len(tx.Vout))

	if err := h.State.SubmitTransaction(tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
		ID     string `json:"id"`
	}{
		Status: "transaction added to mempool",
		ID:     tx.ID,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
