package database

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/mr-tron/base58"
)

// Address parameters for the base58check encoding.
const (
	addressVersion  = byte(0x00)
	checksumLength  = 4
	pubKeyHashBytes = 20
)

// ErrInvalidAddress is returned when an address fails to decode.
var ErrInvalidAddress = errors.New("invalid address")

// =============================================================================

// PublicKeyToAddress converts the public key to its address.
func PublicKeyToAddress(pk ecdsa.PublicKey) (string, error) {
	pkh, err := signature.PubKeyHash(signature.PublicKeyBytes(pk))
	if err != nil {
		return "", err
	}

	return AddressFromPubKeyHash(pkh), nil
}

// AddressFromPubKeyHash encodes the public key hash as a base58check string.
func AddressFromPubKeyHash(pkh []byte) string {
	payload := make([]byte, 0, 1+len(pkh)+checksumLength)
	payload = append(payload, addressVersion)
	payload = append(payload, pkh...)
	payload = append(payload, checksum(payload)...)

	return base58.Encode(payload)
}

// DecodeAddress returns the public key hash an address locks outputs to.
func DecodeAddress(address string) ([]byte, error) {
	payload, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}

	if len(payload) != 1+pubKeyHashBytes+checksumLength {
		return nil, fmt.Errorf("%w: wrong length %d", ErrInvalidAddress, len(payload))
	}

	if payload[0] != addressVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidAddress, payload[0])
	}

	body := payload[:len(payload)-checksumLength]
	if !bytes.Equal(checksum(body), payload[len(payload)-checksumLength:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}

	return bytes.Clone(body[1:]), nil
}

// ValidateAddress reports whether the address decodes cleanly.
func ValidateAddress(address string) bool {
	_, err := DecodeAddress(address)
	return err == nil
}

// =============================================================================

// checksum returns the first bytes of a double sha256 of the payload.
func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])

	return second[:checksumLength]
}
