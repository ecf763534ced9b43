package wallet_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/wallet"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_Wallets(t *testing.T) {
	root := filepath.Join(t.TempDir(), "wallets")

	t.Log("Given the need to manage a folder of keys.")
	{
		w, err := wallet.New(root)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the wallet folder: %s", failed, err)
		}

		address, err := w.Create()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create a wallet: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to create a wallet.", success)

		if _, err := os.Stat(filepath.Join(root, address+".ecdsa")); err != nil {
			t.Fatalf("\t%s\tShould save the key named after its address: %s", failed, err)
		}
		t.Logf("\t%s\tShould save the key named after its address.", success)

		reloaded, err := wallet.New(root)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reload the wallet folder: %s", failed, err)
		}

		addresses := reloaded.Addresses()
		if len(addresses) != 1 || addresses[0] != address {
			t.Fatalf("\t%s\tShould list the saved address: %v", failed, addresses)
		}
		t.Logf("\t%s\tShould list the saved address.", success)

		key, err := reloaded.Key(address)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the key: %s", failed, err)
		}

		got, err := database.PublicKeyToAddress(key.PublicKey)
		if err != nil || got != address {
			t.Fatalf("\t%s\tShould load the key for the address.", failed)
		}
		t.Logf("\t%s\tShould load the key for the address.", success)

		if _, err := reloaded.Key("missing"); !errors.Is(err, wallet.ErrWalletNotFound) {
			t.Fatalf("\t%s\tShould fail for an unknown address: %v", failed, err)
		}
		t.Logf("\t%s\tShould fail for an unknown address.", success)
	}
}
