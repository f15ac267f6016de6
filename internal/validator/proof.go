package validator

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/trie"
)

var errProofValueMismatch = errors.New("validator: proof value mismatch")

// verifyMerkleInclusion rebuilds an in-memory trie node database from
// the proof's keccak256-keyed nodes and asks go-ethereum/trie to verify
// that Key/Value is included under ReceiptsRoot — the same MPT
// machinery the teacher's ContractClient family sits on top of when
// parsing on-chain receipts.
func verifyMerkleInclusion(proof *ExecutionProof) error {
	db := memorydb.New()
	defer db.Close()

	for _, node := range proof.ProofNodes {
		key := crypto.Keccak256(node)
		if err := db.Put(key, node); err != nil {
			return err
		}
	}

	got, err := trie.VerifyProof(proof.ReceiptsRoot, proof.Key, db)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, proof.Value) {
		return errProofValueMismatch
	}
	return nil
}
