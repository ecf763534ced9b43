// Package worker implements the gossip protocol and mining for the
// blockchain. A single goroutine consumes transport events and locally
// submitted transactions one at a time in arrival order.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/message"
	"github.com/ardanlabs/utxochain/foundation/blockchain/network"
	"github.com/ardanlabs/utxochain/foundation/blockchain/peer"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
)

// maxTxShareRequests represents the max number of pending local transactions
// that can be queued before new submissions are rejected.
const maxTxShareRequests = 100

// sendTimeout bounds a single send to a peer.
const sendTimeout = 10 * time.Second

// =============================================================================

// Worker manages the gossip and mining workflows for the blockchain.
type Worker struct {
	state     *state.State
	transport network.Transport
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	shut      chan struct{}
	submitTx  chan database.Transaction
	evHandler state.EventHandler
	shutOnce  sync.Once
}

// Run creates a worker, registers the worker with the state package, and
// starts the event loop.
func Run(st *state.State, transport network.Transport, evHandler state.EventHandler) {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		state:     st,
		transport: transport,
		ctx:       ctx,
		cancel:    cancel,
		shut:      make(chan struct{}),
		submitTx:  make(chan database.Transaction, maxTxShareRequests),
		evHandler: evHandler,
	}

	// Register this worker with the state package.
	st.Worker = &w

	w.wg.Add(1)

	// We don't want to return until we know the G is up and running.
	hasStarted := make(chan bool)

	go func() {
		defer w.wg.Done()
		hasStarted <- true
		w.eventLoop()
	}()

	<-hasStarted
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown cancels any mining in progress and terminates the event loop.
func (w *Worker) Shutdown() {
	w.shutOnce.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: signal cancel mining")
		w.cancel()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// SignalSubmitTx queues a locally submitted transaction for the event loop.
func (w *Worker) SignalSubmitTx(tx database.Transaction) error {
	select {
	case <-w.shut:
		return errors.New("worker is shut down")
	default:
	}

	select {
	case w.submitTx <- tx:
		w.evHandler("worker: SignalSubmitTx: submit tx signaled: tx[%s]", tx.ID)
		return nil
	default:
		w.evHandler("worker: SignalSubmitTx: queue full, transaction won't be processed: tx[%s]", tx.ID)
		return errors.New("transaction queue is full")
	}
}

// =============================================================================

// eventLoop processes events until shutdown or until the transport closes
// its event channel.
func (w *Worker) eventLoop() {
	w.evHandler("worker: eventLoop: G started: local[%s]", w.transport.LocalID())
	defer w.evHandler("worker: eventLoop: G completed")

	events := w.transport.Events()

	for {
		select {
		case evt, open := <-events:
			if !open {
				w.evHandler("worker: eventLoop: transport closed")
				return
			}
			w.handleEvent(evt)

		case tx := <-w.submitTx:
			if err := w.handleTransaction("", tx); err != nil {
				w.evHandler("worker: handleTransaction: tx[%s]: ERROR: %s", tx.ID, err)
			}

		case <-w.shut:
			w.evHandler("worker: eventLoop: received shut signal")
			return
		}
	}
}

// handleEvent dispatches a single transport event. Handler failures are
// logged and the loop continues.
func (w *Worker) handleEvent(evt network.Event) {
	from := string(evt.Peer)

	switch evt.Kind {
	case network.EventPeerConnected:
		if err := w.handlePeerConnected(from); err != nil {
			w.evHandler("worker: handlePeerConnected: peer[%s]: ERROR: %s", from, err)
		}

	case network.EventPeerDisconnected:
		w.evHandler("worker: handleEvent: peer[%s]: disconnected", from)
		w.state.RemoveKnownPeer(peer.New(from))

	case network.EventMessage:
		w.state.AddKnownPeer(peer.New(from))

		if err := w.handleMessage(from, evt.Message); err != nil {
			w.evHandler("worker: handleMessage: peer[%s]: %s: ERROR: %s", from, command(evt.Message), err)
		}

	default:
		w.evHandler("worker: handleEvent: peer[%s]: unknown event kind[%d]", from, evt.Kind)
	}
}

// handleMessage routes the message to the handler for its type.
func (w *Worker) handleMessage(from string, msg message.Message) error {
	switch m := msg.(type) {
	case message.Version:
		return w.handleVersion(from, m)
	case message.GetBlocks:
		return w.handleGetBlocks(from)
	case message.Inv:
		return w.handleInv(from, m)
	case message.GetData:
		return w.handleGetData(from, m)
	case message.Block:
		return w.handleBlock(from, m)
	case message.Tx:
		return w.handleTransaction(from, m.Transaction)
	}

	return errors.New("unsupported message")
}

// =============================================================================

// send delivers the message to a peer. Sends to this node are dropped.
func (w *Worker) send(to string, msg message.Message) error {
	if network.PeerID(to) == w.transport.LocalID() {
		return nil
	}

	ctx, cancel := context.WithTimeout(w.ctx, sendTimeout)
	defer cancel()

	w.evHandler("worker: send: peer[%s]: %s", to, msg.Command())

	return w.transport.Send(ctx, network.PeerID(to), msg)
}

// broadcast sends the message to every known peer except this node and the
// excluded peers. A failed send is logged and doesn't stop the broadcast.
func (w *Worker) broadcast(msg message.Message, exclude ...string) {
	exclude = append(exclude, string(w.transport.LocalID()))

	for _, p := range w.state.RetrieveKnownPeers(exclude...) {
		if err := w.send(p.ID, msg); err != nil {
			w.evHandler("worker: broadcast: peer[%s]: %s: ERROR: %s", p.ID, msg.Command(), err)
		}
	}
}

// command returns the command of the message, tolerating a nil message.
func command(msg message.Message) string {
	if msg == nil {
		return "<nil>"
	}
	return msg.Command()
}
