// Package validator implements the pure checks the Executor and Auction
// Matcher run before acting on an intent: signature recovery, slippage,
// solver eligibility, execution-proof verification, and deadline
// checks. Every function here is pure over its inputs and a
// reputation/chain-state snapshot — no I/O, no logging (spec §7's
// propagation policy: "Pure modules (Math, Validator) return errors
// without logging").
package validator

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/orbital-labs/intents-core/internal/types"
	"github.com/orbital-labs/intents-core/pkg/util"
)

// MinReputationBp is the minimum reputation score (basis points) a
// solver must hold to be eligible for matching.
const MinReputationBp = 3000

// MaxSlippagePriceImpactBp is the maximum allowed implied price impact,
// expressed in basis points of the source amount.
const MaxSlippagePriceImpactBp = 200

// ValidateSignature recovers the signer from the 65-byte (r,s,v)
// signature over the intent's canonical hash and fails with
// ErrInvalidSignature if the recovered address doesn't match
// intent.User.
func ValidateSignature(intent *types.Intent) error {
	if len(intent.Signature) != 65 {
		return types.ErrInvalidSignature
	}

	hash := intent.CanonicalHash()

	sig := normalizeRecoveryID(intent.Signature)
	pubKeyBytes, err := crypto.Ecrecover(hash[:], sig)
	if err != nil {
		return types.ErrInvalidSignature
	}

	pubKey, err := crypto.UnmarshalPubkey(pubKeyBytes)
	if err != nil {
		return types.ErrInvalidSignature
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	if recovered != intent.User {
		return types.ErrInvalidSignature
	}
	return nil
}

// normalizeRecoveryID converts a spec-compliant v ∈ {27,28} signature
// into the {0,1} form go-ethereum's Ecrecover expects, without mutating
// the caller's slice.
func normalizeRecoveryID(sig []byte) []byte {
	out := make([]byte, 65)
	copy(out, sig)
	if out[64] >= 27 {
		out[64] -= 27
	}
	return out
}

// ValidateIntentStructure checks the spec §3 data-model invariant that an
// intent's source and destination differ on at least one axis (token or
// chain) — a same-token, same-chain intent has nothing to execute.
func ValidateIntentStructure(intent *types.Intent) error {
	if !intent.CrossesBoundary() {
		return types.ErrInvalidIntent
	}
	return nil
}

// ValidateSlippage passes if actual >= intent.MinDestAmount and the
// implied price impact (using the intent's expected rate =
// min_dest/source) is <= 200 bp of source; otherwise returns
// ErrSlippageExceeded or ErrExcessivePriceImpact.
func ValidateSlippage(intent *types.Intent, actual *big.Int) error {
	if actual.Cmp(intent.MinDestAmount) < 0 {
		return types.ErrSlippageExceeded
	}

	// expectedRate = min_dest/source (1e18-scaled); impliedRate = actual/source.
	expectedRate := util.DivScaled(intent.MinDestAmount, intent.SourceAmount)
	impliedRate := util.DivScaled(actual, intent.SourceAmount)

	diff := new(big.Int).Sub(impliedRate, expectedRate)
	diff.Abs(diff)

	impactBp := new(big.Int).Mul(diff, big.NewInt(int64(util.BasisPointsDenominator)))
	impactBp.Div(impactBp, expectedRate)

	if impactBp.Int64() > MaxSlippagePriceImpactBp {
		return types.ErrExcessivePriceImpact
	}
	return nil
}

// ValidateSolver checks that solver is registered, not slashed, holds
// available_bond >= max(min_bond, intent.source_amount/10), supports
// both chains, and has a reputation score >= MinReputationBp.
func ValidateSolver(solver *types.Solver, intent *types.Intent, minBond *big.Int) error {
	if solver == nil || !solver.Registered {
		return types.ErrSolverNotRegistered
	}
	if solver.Slashed {
		return types.ErrSolverNotRegistered
	}

	requiredBond := new(big.Int).Div(intent.SourceAmount, big.NewInt(10))
	if requiredBond.Cmp(minBond) < 0 {
		requiredBond = minBond
	}
	if solver.AvailableBond().Cmp(requiredBond) < 0 {
		return types.ErrInsufficientBond
	}

	if !solver.SupportsChain(intent.SourceChain) || !solver.SupportsChain(intent.DestChain) {
		return types.ErrUnsupportedChain
	}

	if solver.ReputationBp < MinReputationBp {
		return types.ErrReputationTooLow
	}
	return nil
}

// ValidateDeadline checks now < intent.Deadline, else ErrIntentExpired.
func ValidateDeadline(intent *types.Intent, now time.Time) error {
	if now.Unix() >= intent.Deadline {
		return types.ErrIntentExpired
	}
	return nil
}

// ChainFinalityBlocks is the chain-specific confirmation depth a
// destination receipt must clear before its proof is considered final.
var ChainFinalityBlocks = map[uint64]uint64{
	1:    64,  // Ethereum mainnet
	10:   120, // Optimism
	8453: 120, // Base
	42161: 20, // Arbitrum One
}

// ExecutionProof bundles the Merkle/MPT inclusion data the destination
// bridge adapter returns for a settled intent: the receipt's embedded
// intent id, the trie key/value/proof triple, the block's receipts
// root, and the chain's current head so confirmations can be computed.
type ExecutionProof struct {
	ChainID          uint64
	BlockNumber      uint64
	ChainHeadNumber  uint64
	ReceiptsRoot     common.Hash
	Key              []byte
	Value            []byte
	ProofNodes       [][]byte
	EmbeddedIntentId types.IntentId
}

// ValidateExecutionProof verifies Merkle/MPT inclusion of a receipt
// referencing intentId in a block, checks block confirmations against
// the chain's finality threshold, and checks the receipt's embedded
// intent id matches. Fails with ErrInvalidMerkleProof, ErrBlockNotFinalized,
// or ErrIntentIdMismatch.
func ValidateExecutionProof(intentId types.IntentId, proof *ExecutionProof) error {
	if proof.EmbeddedIntentId != intentId {
		return types.ErrIntentIdMismatch
	}

	required, ok := ChainFinalityBlocks[proof.ChainID]
	if !ok {
		required = ChainFinalityBlocks[1]
	}
	confirmations := proof.ChainHeadNumber - proof.BlockNumber
	if proof.ChainHeadNumber < proof.BlockNumber || confirmations < required {
		return types.ErrBlockNotFinalized
	}

	if err := verifyMerkleInclusion(proof); err != nil {
		return types.ErrInvalidMerkleProof
	}
	return nil
}
