package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/message"
	"github.com/ardanlabs/utxochain/foundation/blockchain/network"
	"github.com/ardanlabs/utxochain/foundation/blockchain/network/memory"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_Transport(t *testing.T) {
	ctx := context.Background()
	net := memory.New()

	a := net.Join("a")
	b := net.Join("b")
	defer b.Close()

	t.Log("Given the need to move messages between in process endpoints.")
	{
		if err := net.Connect("a", "b"); err != nil {
			t.Fatalf("\t%s\tShould be able to connect the endpoints: %s", failed, err)
		}

		evt := next(t, b)
		if evt.Kind != network.EventPeerConnected || evt.Peer != "a" {
			t.Fatalf("\t%s\tShould report the connection: %+v", failed, evt)
		}
		t.Logf("\t%s\tShould report the connection.", success)

		next(t, a)

		if err := a.Send(ctx, "b", message.Version{Version: 1, BestHeight: 7}); err != nil {
			t.Fatalf("\t%s\tShould be able to send: %s", failed, err)
		}

		evt = next(t, b)
		v, ok := evt.Message.(message.Version)
		if evt.Kind != network.EventMessage || evt.Peer != "a" || !ok || v.BestHeight != 7 {
			t.Fatalf("\t%s\tShould receive the message from a: %+v", failed, evt)
		}
		t.Logf("\t%s\tShould receive the message from a.", success)

		if err := a.Send(ctx, "a", message.GetBlocks{}); err != nil {
			t.Fatalf("\t%s\tShould drop messages to self: %s", failed, err)
		}
		select {
		case evt := <-a.Events():
			t.Fatalf("\t%s\tShould drop messages to self: %+v", failed, evt)
		default:
		}
		t.Logf("\t%s\tShould drop messages to self.", success)

		if err := a.Send(ctx, "z", message.GetBlocks{}); !errors.Is(err, network.ErrTransport) {
			t.Fatalf("\t%s\tShould fail to send to an unknown peer: %v", failed, err)
		}
		t.Logf("\t%s\tShould fail to send to an unknown peer.", success)

		a.Close()

		evt = next(t, b)
		if evt.Kind != network.EventPeerDisconnected || evt.Peer != "a" {
			t.Fatalf("\t%s\tShould report the disconnect: %+v", failed, evt)
		}
		t.Logf("\t%s\tShould report the disconnect.", success)

		if _, open := <-a.Events(); open {
			t.Fatalf("\t%s\tShould close the events of a closed endpoint.", failed)
		}
		t.Logf("\t%s\tShould close the events of a closed endpoint.", success)
	}
}

func next(t *testing.T, ep *memory.Endpoint) network.Event {
	t.Helper()

	select {
	case evt := <-ep.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatalf("\t%s\tShould receive an event in time.", failed)
	}

	return network.Event{}
}
