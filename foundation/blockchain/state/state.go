// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/mempool"
	"github.com/ardanlabs/utxochain/foundation/blockchain/peer"
)

// Set of errors returned by the state.
var (
	ErrNoTransactions = errors.New("no transactions in mempool")
	ErrNoMiner        = errors.New("no miner address configured")
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for gossip and mining.
type Worker interface {
	Shutdown()
	SignalSubmitTx(tx database.Transaction) error
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	MinerAddress string
	Storage      database.Storage
	KnownPeers   *peer.PeerSet
	EvHandler    EventHandler
}

// State manages the blockchain database, the utxo index, the mempool and
// the set of known peers. The mutex is held only for short calls that
// never wait on the network or on mining.
type State struct {
	mu           sync.Mutex
	minerAddress string
	evHandler    EventHandler

	knownPeers *peer.PeerSet
	db         *database.Database
	utxo       *database.UTXOSet
	mempool    *mempool.Mempool
	inFlight   []string

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.MinerAddress != "" && !database.ValidateAddress(cfg.MinerAddress) {
		return nil, fmt.Errorf("miner address %q: %w", cfg.MinerAddress, database.ErrInvalidAddress)
	}

	db, err := database.New(cfg.Storage)
	if err != nil {
		return nil, err
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	state := State{
		minerAddress: cfg.MinerAddress,
		evHandler:    ev,

		knownPeers: knownPeers,
		db:         db,
		utxo:       database.NewUTXOSet(db),
		mempool:    mempool.New(),
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {

	// Make sure the database file is properly closed.
	defer func() {
		s.db.Close()
	}()

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// IsMiner reports whether the node mines blocks for a reward address.
func (s *State) IsMiner() bool {
	return s.minerAddress != ""
}

// RetrieveMinerAddress returns the address mining rewards are paid to.
func (s *State) RetrieveMinerAddress() string {
	return s.minerAddress
}
