// Package memory implements an in-process network where every joined
// endpoint can reach every other endpoint by id.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ardanlabs/utxochain/foundation/blockchain/message"
	"github.com/ardanlabs/utxochain/foundation/blockchain/network"
)

// eventBuffer is the number of events an endpoint holds before a send to it
// blocks.
const eventBuffer = 1024

// Network connects the endpoints that join it.
type Network struct {
	mu        sync.RWMutex
	endpoints map[network.PeerID]*Endpoint
}

// New constructs an empty network.
func New() *Network {
	return &Network{
		endpoints: make(map[network.PeerID]*Endpoint),
	}
}

// Join adds an endpoint with the specified id to the network.
func (n *Network) Join(id network.PeerID) *Endpoint {
	ep := Endpoint{
		id:      id,
		network: n,
		events:  make(chan network.Event, eventBuffer),
		shut:    make(chan struct{}),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.endpoints[id] = &ep

	return &ep
}

// Connect reports a connection between the two endpoints to both sides.
func (n *Network) Connect(a network.PeerID, b network.PeerID) error {
	epA, err := n.endpoint(a)
	if err != nil {
		return err
	}

	epB, err := n.endpoint(b)
	if err != nil {
		return err
	}

	epA.deliver(network.Event{Kind: network.EventPeerConnected, Peer: b})
	epB.deliver(network.Event{Kind: network.EventPeerConnected, Peer: a})

	return nil
}

// endpoint returns the joined endpoint with the id.
func (n *Network) endpoint(id network.PeerID) (*Endpoint, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ep, exists := n.endpoints[id]
	if !exists {
		return nil, fmt.Errorf("%w: unknown peer %s", network.ErrTransport, id)
	}

	return ep, nil
}

// leave removes the endpoint and tells the others it is gone.
func (n *Network) leave(id network.PeerID) {
	n.mu.Lock()
	delete(n.endpoints, id)
	others := make([]*Endpoint, 0, len(n.endpoints))
	for _, ep := range n.endpoints {
		others = append(others, ep)
	}
	n.mu.Unlock()

	for _, ep := range others {
		ep.deliver(network.Event{Kind: network.EventPeerDisconnected, Peer: id})
	}
}

// =============================================================================

// Endpoint is a single node's view of the network. This implements the
// network.Transport interface.
type Endpoint struct {
	id      network.PeerID
	network *Network

	mu       sync.RWMutex
	events   chan network.Event
	shut     chan struct{}
	shutOnce sync.Once
	closed   bool
}

// LocalID returns the id the endpoint joined with.
func (ep *Endpoint) LocalID() network.PeerID {
	return ep.id
}

// Send delivers the message to the endpoint with the id. Messages to self
// are dropped.
func (ep *Endpoint) Send(ctx context.Context, to network.PeerID, msg message.Message) error {
	if to == ep.id {
		return nil
	}

	dest, err := ep.network.endpoint(to)
	if err != nil {
		return err
	}

	// Round trip through the wire encoding so receivers never share memory
	// with the sender.
	data, err := message.Encode(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", network.ErrTransport, err)
	}

	decoded, err := message.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %w", network.ErrTransport, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: sending to %s: %w", network.ErrTransport, to, ctx.Err())
	default:
	}

	if !dest.deliver(network.Event{Kind: network.EventMessage, Peer: ep.id, Message: decoded}) {
		return fmt.Errorf("%w: peer %s is closed", network.ErrTransport, to)
	}

	return nil
}

// Events returns the channel of events for this endpoint.
func (ep *Endpoint) Events() <-chan network.Event {
	return ep.events
}

// Close leaves the network and closes the event channel.
func (ep *Endpoint) Close() error {
	ep.shutOnce.Do(func() { close(ep.shut) })

	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return nil
	}
	ep.closed = true
	close(ep.events)
	ep.mu.Unlock()

	ep.network.leave(ep.id)

	return nil
}

// deliver queues the event unless the endpoint is closed.
func (ep *Endpoint) deliver(evt network.Event) bool {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	if ep.closed {
		return false
	}

	select {
	case ep.events <- evt:
		return true
	case <-ep.shut:
		return false
	}
}
