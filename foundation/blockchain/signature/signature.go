// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// DigestLength is the size of the message a signature is produced over.
const DigestLength = 32

// SignatureLength is the size of a stored [R|S] signature.
const SignatureLength = 64

// =============================================================================

// Hash returns the hex encoded sha256 of the data.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Digest converts a hex encoded hash into the 32 byte message that is signed.
func Digest(hash string) ([]byte, error) {
	digest, err := hex.DecodeString(hash)
	if err != nil {
		return nil, fmt.Errorf("decoding hash: %w", err)
	}

	if len(digest) != DigestLength {
		return nil, fmt.Errorf("invalid digest length %d", len(digest))
	}

	return digest, nil
}

// Sign uses the specified private key to sign the digest. The recovery id is
// dropped since the spender's public key travels with the signature.
func Sign(digest []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return nil, err
	}

	rs := sig[:crypto.RecoveryIDOffset]

	// Check the signature against the public key before handing it out.
	if !crypto.VerifySignature(PublicKeyBytes(privateKey.PublicKey), digest, rs) {
		return nil, errors.New("invalid signature")
	}

	return rs, nil
}

// Verify reports whether the [R|S] signature was produced over the digest by
// the owner of the public key.
func Verify(publicKey []byte, digest []byte, sig []byte) bool {
	if len(sig) != SignatureLength || len(digest) != DigestLength {
		return false
	}

	return crypto.VerifySignature(publicKey, digest, sig)
}

// PublicKeyBytes returns the uncompressed encoding of the public key.
func PublicKeyBytes(publicKey ecdsa.PublicKey) []byte {
	return crypto.FromECDSAPub(&publicKey)
}

// PubKeyHash returns the 20 byte hash that outputs are locked to.
func PubKeyHash(publicKey []byte) ([]byte, error) {
	pk, err := crypto.UnmarshalPubkey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("unmarshal public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pk).Bytes(), nil
}
