// Package wallet reads and writes the folder of private keys owned by this
// user. Every key lives in a file named after its address.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
)

// keyExt is the extension of every key file in the wallet folder.
const keyExt = ".ecdsa"

// ErrWalletNotFound is returned when no key exists for an address.
var ErrWalletNotFound = errors.New("wallet not found")

// Wallets maintains the keys found in the wallet folder keyed by address.
type Wallets struct {
	root string

	mu   sync.RWMutex
	keys map[string]*ecdsa.PrivateKey
}

// New loads every key file in the root folder, creating the folder when it
// doesn't exist.
func New(root string) (*Wallets, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating wallet folder: %w", err)
	}

	w := Wallets{
		root: root,
		keys: make(map[string]*ecdsa.PrivateKey),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != keyExt {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("loading %s: %w", fileName, err)
		}

		address, err := database.PublicKeyToAddress(privateKey.PublicKey)
		if err != nil {
			return err
		}

		if name := strings.TrimSuffix(filepath.Base(fileName), keyExt); name != address {
			return fmt.Errorf("key file %s holds the key for %s", fileName, address)
		}

		w.keys[address] = privateKey

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &w, nil
}

// Create generates a new key, saves it to the wallet folder and returns its
// address.
func (w *Wallets) Create() (string, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}

	address, err := database.PublicKeyToAddress(privateKey.PublicKey)
	if err != nil {
		return "", err
	}

	if err := crypto.SaveECDSA(filepath.Join(w.root, address+keyExt), privateKey); err != nil {
		return "", fmt.Errorf("saving key: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.keys[address] = privateKey

	return address, nil
}

// Addresses returns the address of every key in the wallet in sorted order.
func (w *Wallets) Addresses() []string {
	w.mu.RLock()
	addresses := make([]string, 0, len(w.keys))
	for address := range w.keys {
		addresses = append(addresses, address)
	}
	w.mu.RUnlock()

	sort.Strings(addresses)

	return addresses
}

// Key returns the private key for the address.
func (w *Wallets) Key(address string) (*ecdsa.PrivateKey, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	privateKey, exists := w.keys[address]
	if !exists {
		return nil, fmt.Errorf("%s: %w", address, ErrWalletNotFound)
	}

	return privateKey, nil
}
