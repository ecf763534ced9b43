package validate_test

import (
	"testing"

	"github.com/ardanlabs/utxochain/business/sys/validate"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
)

func Test_Check(t *testing.T) {
	type payment struct {
		To     string `json:"to" validate:"required,address"`
		Amount uint64 `json:"amount" validate:"gt=0"`
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}

	address, err := database.PublicKeyToAddress(key.PublicKey)
	if err != nil {
		t.Fatalf("Should be able to generate an address: %s", err)
	}

	if err := validate.Check(payment{To: address, Amount: 10}); err != nil {
		t.Fatalf("Should accept a valid payment: %s", err)
	}

	err = validate.Check(payment{To: "nope", Amount: 0})
	if !validate.IsFieldErrors(err) {
		t.Fatalf("Should get field errors: %v", err)
	}

	fields := validate.GetFieldErrors(err).Fields()
	if fields["to"] != "to must be a valid address" {
		t.Fatalf("Should translate the address error: %q", fields["to"])
	}
	if _, exists := fields["amount"]; !exists {
		t.Fatalf("Should report the amount field: %v", fields)
	}
}
