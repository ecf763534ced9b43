// Package network defines the capability a node needs from its transport:
// sending messages to a peer and receiving connection and message events.
package network

import (
	"context"
	"errors"

	"github.com/ardanlabs/utxochain/foundation/blockchain/message"
)

// ErrTransport is wrapped by every transport failure.
var ErrTransport = errors.New("transport failure")

// PeerID is the opaque identifier of a peer supplied by the transport.
type PeerID string

// String implements the fmt.Stringer interface.
func (id PeerID) String() string {
	return string(id)
}

// =============================================================================

// EventKind identifies what happened on the transport.
type EventKind int

// Set of events a transport reports.
const (
	EventPeerConnected EventKind = iota + 1
	EventPeerDisconnected
	EventMessage
)

// String implements the fmt.Stringer interface.
func (k EventKind) String() string {
	switch k {
	case EventPeerConnected:
		return "peer_connected"
	case EventPeerDisconnected:
		return "peer_disconnected"
	case EventMessage:
		return "message"
	}
	return "unknown"
}

// Event is reported by a transport. Message is only set for EventMessage.
type Event struct {
	Kind    EventKind
	Peer    PeerID
	Message message.Message
}

// =============================================================================

// Transport represents the behavior required to move messages between
// nodes. Events must be consumed for the transport to make progress and
// the channel is closed once the transport is closed.
type Transport interface {
	LocalID() PeerID
	Send(ctx context.Context, to PeerID, msg message.Message) error
	Events() <-chan Event
	Close() error
}
