package node_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardanlabs/utxochain/business/node"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/blockchain/storage/disk"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_Run(t *testing.T) {
	t.Log("Given the need to start and stop a node.")
	{
		t.Logf("\tTest 0:\tWhen the context is cancelled.")
		{
			dir := t.TempDir()

			cfg := node.Config{
				DBPath: filepath.Join(dir, "ledger.db"),
				P2P: node.P2PConfig{
					ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"},
					KeyPath:     filepath.Join(dir, "node.key"),
				},
			}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- node.Run(ctx, zap.NewNop().Sugar(), cfg)
			}()

			time.Sleep(500 * time.Millisecond)
			cancel()

			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("\t%s\tShould stop cleanly: %v", failed, err)
				}
				t.Logf("\t%s\tShould stop cleanly.", success)

			case <-time.After(10 * time.Second):
				t.Fatalf("\t%s\tShould stop within the deadline.", failed)
			}

			strg, err := disk.New(cfg.DBPath)
			if err != nil {
				t.Fatalf("\t%s\tShould release the database file: %v", failed, err)
			}
			defer strg.Close()
			t.Logf("\t%s\tShould release the database file.", success)

			if _, err := state.New(state.Config{Storage: strg}); err != nil {
				t.Fatalf("\t%s\tShould be able to reopen the state: %v", failed, err)
			}
			t.Logf("\t%s\tShould be able to reopen the state.", success)
		}

		t.Logf("\tTest 1:\tWhen the miner address is invalid.")
		{
			dir := t.TempDir()

			cfg := node.Config{
				DBPath:       filepath.Join(dir, "ledger.db"),
				MinerAddress: "nope",
			}

			if err := node.Run(context.Background(), zap.NewNop().Sugar(), cfg); err == nil {
				t.Fatalf("\t%s\tShould refuse to start.", failed)
			}
			t.Logf("\t%s\tShould refuse to start.", success)
		}
	}
}
