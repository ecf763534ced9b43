// Package p2p implements the node transport over libp2p. Every message
// travels on its own stream as a single varint length prefixed frame.
package p2p

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/message"
	"github.com/ardanlabs/utxochain/foundation/blockchain/network"
	"github.com/libp2p/go-libp2p"
	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	p2pnetwork "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/multiformats/go-varint"
)

// protocolID identifies the message protocol between nodes.
const protocolID = protocol.ID("/utxochain/message/1.0.0")

const (
	defaultConnectionTimeout = 5 * time.Second // timeout after which a stream must be established.
	ioTimeout                = 4 * time.Second
	maxFrameSize             = 32 << 20
	eventBuffer              = 1024
)

// Config represents the settings for the libp2p host.
type Config struct {
	ListenAddrs []string
	Bootstrap   []string
	KeyPath     string
	EvHandler   func(v string, args ...any)
}

// Transport moves messages between nodes over libp2p streams. This
// implements the network.Transport interface.
type Transport struct {
	host      host.Host
	evHandler func(v string, args ...any)
	events    chan network.Event
	shut      chan struct{}
	shutOnce  sync.Once

	mu     sync.RWMutex
	closed bool
}

// New constructs a libp2p host listening on the configured addresses,
// registers the message protocol and dials the bootstrap peers.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	privKey, err := LoadOrCreateKey(cfg.KeyPath)
	if err != nil {
		return nil, err
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrStrings(cfg.ListenAddrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: constructing host: %w", network.ErrTransport, err)
	}

	t := Transport{
		host:      h,
		evHandler: ev,
		events:    make(chan network.Event, eventBuffer),
		shut:      make(chan struct{}),
	}

	h.SetStreamHandler(protocolID, t.handleStream)

	h.Network().Notify(&p2pnetwork.NotifyBundle{
		ConnectedF: func(_ p2pnetwork.Network, conn p2pnetwork.Conn) {
			t.deliver(network.Event{Kind: network.EventPeerConnected, Peer: network.PeerID(conn.RemotePeer().String())})
		},
		DisconnectedF: func(_ p2pnetwork.Network, conn p2pnetwork.Conn) {
			t.deliver(network.Event{Kind: network.EventPeerDisconnected, Peer: network.PeerID(conn.RemotePeer().String())})
		},
	})

	for _, addr := range t.Addrs() {
		ev("p2p: New: listening: %s", addr)
	}

	for _, addr := range cfg.Bootstrap {
		if err := t.Connect(ctx, addr); err != nil {
			ev("p2p: New: bootstrap: %s: ERROR: %s", addr, err)
		}
	}

	return &t, nil
}

// LocalID returns the peer id of this host.
func (t *Transport) LocalID() network.PeerID {
	return network.PeerID(t.host.ID().String())
}

// Addrs returns the full multiaddrs other nodes can use to dial this host.
func (t *Transport) Addrs() []string {
	addrs := make([]string, 0, len(t.host.Addrs()))
	for _, addr := range t.host.Addrs() {
		addrs = append(addrs, fmt.Sprintf("%s/p2p/%s", addr, t.host.ID()))
	}

	return addrs
}

// Connect dials the peer at the full multiaddr, including its /p2p id.
func (t *Transport) Connect(ctx context.Context, addr string) error {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return fmt.Errorf("%w: parsing address %s: %w", network.ErrTransport, addr, err)
	}

	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return fmt.Errorf("%w: peer info from %s: %w", network.ErrTransport, addr, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultConnectionTimeout)
	defer cancel()

	if err := t.host.Connect(ctx, *info); err != nil {
		return fmt.Errorf("%w: connecting to %s: %w", network.ErrTransport, info.ID, err)
	}

	return nil
}

// Send opens a stream to the peer and writes the message as one frame.
// Messages to self are dropped.
func (t *Transport) Send(ctx context.Context, to network.PeerID, msg message.Message) error {
	if to == t.LocalID() {
		return nil
	}

	id, err := peer.Decode(string(to))
	if err != nil {
		return fmt.Errorf("%w: decoding peer id %s: %w", network.ErrTransport, to, err)
	}

	data, err := message.Encode(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", network.ErrTransport, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultConnectionTimeout)
	defer cancel()

	stream, err := t.host.NewStream(ctx, id, protocolID)
	if err != nil {
		return fmt.Errorf("%w: opening stream to %s: %w", network.ErrTransport, to, err)
	}
	defer stream.Close()

	stream.SetWriteDeadline(time.Now().Add(ioTimeout))

	if err := writeFrame(stream, data); err != nil {
		stream.Reset()
		return fmt.Errorf("%w: writing %s to %s: %w", network.ErrTransport, msg.Command(), to, err)
	}

	return nil
}

// Events returns the channel of connection and message events.
func (t *Transport) Events() <-chan network.Event {
	return t.events
}

// Close shuts down the host and closes the event channel.
func (t *Transport) Close() error {
	t.shutOnce.Do(func() { close(t.shut) })

	t.host.RemoveStreamHandler(protocolID)
	err := t.host.Close()

	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.events)
	}
	t.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: closing host: %w", network.ErrTransport, err)
	}

	return nil
}

// =============================================================================

// handleStream reads the single frame carried by an incoming stream.
func (t *Transport) handleStream(stream p2pnetwork.Stream) {
	defer stream.Close()

	from := network.PeerID(stream.Conn().RemotePeer().String())

	stream.SetReadDeadline(time.Now().Add(ioTimeout))

	data, err := readFrame(bufio.NewReader(stream))
	if err != nil {
		t.evHandler("p2p: handleStream: peer[%s]: ERROR: %s", from, err)
		stream.Reset()
		return
	}

	msg, err := message.Decode(data)
	if err != nil {
		t.evHandler("p2p: handleStream: peer[%s]: ERROR: %s", from, err)
		return
	}

	t.deliver(network.Event{Kind: network.EventMessage, Peer: from, Message: msg})
}

// deliver queues the event unless the transport is closed.
func (t *Transport) deliver(evt network.Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return
	}

	select {
	case t.events <- evt:
	case <-t.shut:
	}
}

// writeFrame writes the data prefixed by its varint length.
func writeFrame(w io.Writer, data []byte) error {
	if _, err := w.Write(varint.ToUvarint(uint64(len(data)))); err != nil {
		return err
	}

	_, err := w.Write(data)
	return err
}

// readFrame reads a varint length prefixed frame.
func readFrame(r *bufio.Reader) ([]byte, error) {
	size, err := varint.ReadUvarint(r)
	if err != nil {
		return nil, err
	}

	if size > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds %d", size, maxFrameSize)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	return data, nil
}

// =============================================================================

// LoadOrCreateKey reads the host identity from the path, generating and
// saving a new ed25519 key when the file doesn't exist. An empty path
// produces a fresh key that is not saved.
func LoadOrCreateKey(path string) (p2pcrypto.PrivKey, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			key, err := p2pcrypto.UnmarshalPrivateKey(data)
			if err != nil {
				return nil, fmt.Errorf("%w: decoding node key %s: %w", network.ErrTransport, path, err)
			}
			return key, nil

		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("%w: reading node key %s: %w", network.ErrTransport, path, err)
		}
	}

	key, _, err := p2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generating node key: %w", network.ErrTransport, err)
	}

	if path == "" {
		return key, nil
	}

	data, err := p2pcrypto.MarshalPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding node key: %w", network.ErrTransport, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("%w: creating key directory: %w", network.ErrTransport, err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("%w: writing node key %s: %w", network.ErrTransport, path, err)
	}

	return key, nil
}
