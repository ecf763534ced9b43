// Package peer maintains the peer related information such as the set
// of known peers.
package peer

import (
	"sort"
	"sync"
)

// Peer represents information about a Node in the network. The id is the
// opaque identifier supplied by the transport.
type Peer struct {
	ID string `json:"id"`
}

// New contructs a new peer value.
func New(id string) Peer {
	return Peer{
		ID: id,
	}
}

// Match validates if the specified id matches this peer.
func (p Peer) Match(id string) bool {
	return p.ID == id
}

// =============================================================================

// PeerStatus represents information about the status of this node as
// reported to clients.
type PeerStatus struct {
	LatestBlockHash   string `json:"latest_block_hash"`
	LatestBlockHeight int64  `json:"latest_block_height"`
	KnownPeers        []Peer `json:"known_peers"`
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known peers.
type PeerSet struct {
	mu  sync.RWMutex
	set map[Peer]struct{}
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[Peer]struct{}),
	}
}

// Add adds a new node to the set. It reports whether the peer is new.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	_, exists := ps.set[peer]
	if !exists {
		ps.set[peer] = struct{}{}
		return true
	}

	return false
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Copy returns a list of the known peers ordered by id, leaving out the
// specified ids.
func (ps *PeerSet) Copy(exclude ...string) []Peer {
	ps.mu.RLock()
	var peers []Peer
	for peer := range ps.set {
		if !peer.matchAny(exclude) {
			peers = append(peers, peer)
		}
	}
	ps.mu.RUnlock()

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].ID < peers[j].ID
	})

	return peers
}

// matchAny reports whether the peer matches any of the ids.
func (p Peer) matchAny(ids []string) bool {
	for _, id := range ids {
		if p.Match(id) {
			return true
		}
	}
	return false
}
