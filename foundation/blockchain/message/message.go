// Package message defines the messages nodes exchange to gossip blocks and
// transactions and the envelope they travel in.
package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

// Kinds of items advertised and requested between peers.
const (
	KindBlock = "block"
	KindTx    = "tx"
)

// Set of commands identifying each message on the wire.
const (
	CmdVersion   = "version"
	CmdTx        = "tx"
	CmdGetData   = "getdata"
	CmdGetBlocks = "getblocks"
	CmdInv       = "inv"
	CmdBlock     = "block"
)

// ErrUnknownCommand is returned when decoding an envelope with a command
// this node doesn't understand.
var ErrUnknownCommand = errors.New("unknown command")

// Message represents any message exchanged between peers.
type Message interface {
	Command() string
}

// =============================================================================

// Version announces the protocol version and best height of a node.
type Version struct {
	Version    int32 `json:"version"`
	BestHeight int32 `json:"best_height"`
}

// Command implements the Message interface.
func (Version) Command() string { return CmdVersion }

// Tx carries a full transaction.
type Tx struct {
	Transaction database.Transaction `json:"transaction"`
}

// Command implements the Message interface.
func (Tx) Command() string { return CmdTx }

// GetData requests a single block or transaction by id.
type GetData struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Command implements the Message interface.
func (GetData) Command() string { return CmdGetData }

// GetBlocks requests the hashes of every block the peer holds.
type GetBlocks struct{}

// Command implements the Message interface.
func (GetBlocks) Command() string { return CmdGetBlocks }

// Inv advertises block hashes or transaction ids.
type Inv struct {
	Kind  string   `json:"kind"`
	Items []string `json:"items"`
}

// Command implements the Message interface.
func (Inv) Command() string { return CmdInv }

// Block carries a full block.
type Block struct {
	Block database.Block `json:"block"`
}

// Command implements the Message interface.
func (Block) Command() string { return CmdBlock }

// =============================================================================

// envelope is the wire form of every message.
type envelope struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// Encode marshals the message into its envelope.
func Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s: %w", database.ErrSerialization, msg.Command(), err)
	}

	data, err := json.Marshal(envelope{Command: msg.Command(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding envelope: %w", database.ErrSerialization, err)
	}

	return data, nil
}

// Decode unmarshals an envelope into the message it carries.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decoding envelope: %w", database.ErrSerialization, err)
	}

	switch env.Command {
	case CmdVersion:
		return decode[Version](env)
	case CmdTx:
		return decode[Tx](env)
	case CmdGetData:
		return decode[GetData](env)
	case CmdGetBlocks:
		return decode[GetBlocks](env)
	case CmdInv:
		return decode[Inv](env)
	case CmdBlock:
		return decode[Block](env)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Command)
}

// decode unmarshals the payload of the envelope into a value of type T.
func decode[T Message](env envelope) (Message, error) {
	var msg T
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", database.ErrSerialization, env.Command, err)
	}

	return msg, nil
}
