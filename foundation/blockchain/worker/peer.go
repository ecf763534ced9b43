package worker

import (
	"github.com/ardanlabs/utxochain/foundation/blockchain/genesis"
	"github.com/ardanlabs/utxochain/foundation/blockchain/message"
	"github.com/ardanlabs/utxochain/foundation/blockchain/peer"
)

// handlePeerConnected adds a newly connected peer to the known set and
// starts the handshake by sending our version.
func (w *Worker) handlePeerConnected(from string) error {
	if w.state.AddKnownPeer(peer.New(from)) {
		w.evHandler("worker: handlePeerConnected: add peer[%s]", from)
	}

	return w.sendVersion(from)
}

// handleVersion compares the peer's height with ours. A taller peer is asked
// for its blocks and a shorter peer is told our height.
func (w *Worker) handleVersion(from string, msg message.Version) error {
	mine := w.state.RetrieveBestHeight()
	theirs := int64(msg.BestHeight)

	w.evHandler("worker: handleVersion: peer[%s]: height[%d]: ours[%d]", from, theirs, mine)

	switch {
	case theirs > mine:
		return w.send(from, message.GetBlocks{})
	case mine > theirs:
		return w.sendVersion(from)
	}

	return nil
}

// sendVersion sends our protocol version and best height to the peer.
func (w *Worker) sendVersion(to string) error {
	msg := message.Version{
		Version:    genesis.ProtocolVersion,
		BestHeight: int32(w.state.RetrieveBestHeight()),
	}

	return w.send(to, msg)
}
