// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.

package merkle_test

import (
	"crypto/sha256"
	"testing"

	"github.com/ardanlabs/utxochain/foundation/blockchain/merkle"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// Data uses the sha256 hashing algorithm for the merkle tree.
type Data struct {
	x string
}

// Hash hashes the values using sha256.
func (d Data) Hash() ([]byte, error) {
	h := sha256.Sum256([]byte(d.x))
	return h[:], nil
}

// Equals tests for equality of two piece of data.
func (d Data) Equals(other Data) bool {
	return d.x == other.x
}

func toData(values ...string) []Data {
	data := make([]Data, len(values))
	for i, v := range values {
		data[i] = Data{x: v}
	}
	return data
}

// =============================================================================

func Test_MerkleRoot(t *testing.T) {
	type table struct {
		name string
		data []Data
		root string
	}

	tt := []table{
		{name: "single", data: toData("a"), root: "251a262291b87cb3c93a6ed71865da1f2c090c3d0196661a8f4a705b65836f71"},
		{name: "even", data: toData("a", "b"), root: "e5a01fee14e0ed5c48714f22180f25ad8365b53f9779f79dc4a3d7e93963f94a"},
		{name: "odd", data: toData("a", "b", "c"), root: "d31a37ef6ac14a2db1470c4316beb5592e6afd4465022339adafda76a18ffabe"},
		{name: "reversed", data: toData("c", "b", "a"), root: "ca4d6f43563a356ecda2e7aa848c173a1b76209fa09c7dab27b6d4b1e27332e1"},
		{name: "odd-level", data: toData("a", "b", "c", "d", "e"), root: "dd14d0ba516bb654a3052b76f051db026f4e322d0be081468fab99440f9e7305"},
	}

	t.Log("Given the need to calculate merkle roots.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling %d values.", testID, len(tst.data))
				{
					tree, err := merkle.NewTree(tst.data)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to build the tree: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to build the tree.", success, testID)

					if tree.RootHex() != tst.root {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tree.RootHex())
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.root)
						t.Fatalf("\t%s\tTest %d:\tShould get back the right root.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right root.", success, testID)

					if err := tree.Verify(); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to verify the tree: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to verify the tree.", success, testID)

					if got := len(tree.Values()); got != len(tst.data) {
						t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, got)
						t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, len(tst.data))
						t.Fatalf("\t%s\tTest %d:\tShould get back the original values.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the original values.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_ProofAndVerifyData(t *testing.T) {
	data := toData("a", "b", "c", "d", "e")

	tree, err := merkle.NewTree(data)
	if err != nil {
		t.Fatalf("Should be able to build the tree: %v", err)
	}

	for _, d := range data {
		if err := tree.VerifyData(d); err != nil {
			t.Fatalf("Should be able to verify %q: %v", d.x, err)
		}

		proof, order, err := tree.Proof(d)
		if err != nil {
			t.Fatalf("Should be able to produce a proof for %q: %v", d.x, err)
		}

		hash, _ := d.Hash()
		for i, p := range proof {
			var next [32]byte
			switch order[i] {
			case 0:
				next = sha256.Sum256(append(append([]byte{}, p...), hash...))
			default:
				next = sha256.Sum256(append(append([]byte{}, hash...), p...))
			}
			hash = next[:]
		}

		if string(hash) != string(tree.MerkleRoot) {
			t.Fatalf("Should be able to rebuild the root from the proof for %q.", d.x)
		}
	}

	if err := tree.VerifyData(Data{x: "z"}); err == nil {
		t.Fatalf("Should not be able to verify data that is not in the tree.")
	}

	if _, err := merkle.NewTree([]Data{}); err == nil {
		t.Fatalf("Should not be able to build a tree with no content.")
	}
}
