// Package types holds the wire-level data model shared by every
// component: Intent, Solver, Quote, Auction, ExecutionRecord. Kept
// separate from the root package so internal/ components can depend on
// it without an import cycle back through the Engine; the root package
// re-exports these as type aliases the way the teacher keeps Route,
// MintParams, AMMState in its own root types.go.
package types

import (
	"encoding/binary"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// IntentId is the 32-byte keccak256 canonical hash of an intent.
type IntentId [32]byte

func (id IntentId) Hex() string { return common.Hash(id).Hex() }

// IntentStatus is the intent lifecycle state. Terminal states are
// sticky: once Executed, Cancelled, or Failed, an intent never
// transitions again.
type IntentStatus int

const (
	IntentCreated IntentStatus = iota
	IntentMatched
	IntentExecuting
	IntentExecuted
	IntentCancelled
	IntentFailed
)

func (s IntentStatus) String() string {
	switch s {
	case IntentCreated:
		return "Created"
	case IntentMatched:
		return "Matched"
	case IntentExecuting:
		return "Executing"
	case IntentExecuted:
		return "Executed"
	case IntentCancelled:
		return "Cancelled"
	case IntentFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Intent is immutable once submitted: user address, chain pair, token
// pair, amounts, deadline, nonce, opaque data, and the user's signature
// over the canonical hash.
type Intent struct {
	User           common.Address
	SourceChain    uint64
	DestChain      uint64
	SourceToken    common.Address
	DestToken      common.Address
	SourceAmount   *big.Int
	MinDestAmount  *big.Int
	Deadline       int64 // unix seconds
	Nonce          *big.Int
	Data           []byte
	Signature      []byte // 65-byte (r,s,v) compact form
	Status         IntentStatus
}

// CrossesBoundary reports the invariant that source and destination
// differ by token or by chain (never identical on both axes).
func (i *Intent) CrossesBoundary() bool {
	return i.SourceToken != i.DestToken || i.SourceChain != i.DestChain
}

// CanonicalHash computes keccak256 over the concatenation (in order):
// user(20) || source_chain(u64 BE) || dest_chain(u64 BE) || source_token(20)
// || dest_token(20) || source_amount(u256) || min_dest_amount(u256) ||
// deadline(u64 BE) || nonce(u256) || keccak256(data). This is both the
// signing message and the intent id.
func (i *Intent) CanonicalHash() IntentId {
	var buf []byte
	buf = append(buf, i.User.Bytes()...)
	buf = append(buf, uint64Bytes(i.SourceChain)...)
	buf = append(buf, uint64Bytes(i.DestChain)...)
	buf = append(buf, i.SourceToken.Bytes()...)
	buf = append(buf, i.DestToken.Bytes()...)
	buf = append(buf, common.LeftPadBytes(i.SourceAmount.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(i.MinDestAmount.Bytes(), 32)...)
	buf = append(buf, uint64Bytes(uint64(i.Deadline))...)
	buf = append(buf, common.LeftPadBytes(i.Nonce.Bytes(), 32)...)

	dataHash := crypto.Keccak256(i.Data)
	buf = append(buf, dataHash...)

	var id IntentId
	copy(id[:], crypto.Keccak256(buf))
	return id
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Solver is a bonded off-chain agent eligible to bid on intents.
type Solver struct {
	Address          common.Address
	SupportedChains  []uint64
	FeeBps           int
	Bond             *big.Int
	LockedExposure   *big.Int
	ReputationBp     int
	Registered       bool
	Slashed          bool
	LastActive       time.Time
	CooldownUntil    time.Time
}

// AvailableBond returns the solver's bond net of currently locked
// exposure.
func (s *Solver) AvailableBond() *big.Int {
	return new(big.Int).Sub(s.Bond, s.LockedExposure)
}

// SupportsChain reports whether the solver has declared support for the
// given chain id.
func (s *Solver) SupportsChain(chainID uint64) bool {
	for _, c := range s.SupportedChains {
		if c == chainID {
			return true
		}
	}
	return false
}

// Quote is a solver's bid for an intent, submitted during the auction
// window.
type Quote struct {
	IntentId                  IntentId
	Solver                    common.Address
	DestAmount                *big.Int
	GasEstimate               uint64
	Confidence                float64
	ExecTimeSec               float64
	OrbitalOptimizationFactor float64
	SubmittedAt               time.Time

	// ReputationBpAtSubmission is the solver's reputation score captured
	// at the moment the quote was accepted, since the Matcher scores
	// quotes without re-reading solver state (it was already checked
	// under the auction lock at submission time).
	ReputationBpAtSubmission int
}

// AuctionStatus is the per-intent auction state machine: Open → Closed
// → Awarded | NoBidders.
type AuctionStatus int

const (
	AuctionOpen AuctionStatus = iota
	AuctionClosed
	AuctionAwarded
	AuctionNoBidders
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionOpen:
		return "Open"
	case AuctionClosed:
		return "Closed"
	case AuctionAwarded:
		return "Awarded"
	case AuctionNoBidders:
		return "NoBidders"
	case AuctionCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Auction is the matcher's per-intent record: the open window, the
// quotes received, and (once finalized) the winner.
type Auction struct {
	IntentId IntentId
	Status   AuctionStatus
	OpenedAt time.Time
	ClosesAt time.Time
	Quotes   []Quote
	Winner   *Quote
}

// ExecutionPhase enumerates the 8-phase intent-execution state machine
// (spec §4.6).
type ExecutionPhase int

const (
	PhaseValidate ExecutionPhase = iota + 1
	PhaseMEVDelay
	PhaseLockSource
	PhaseExecuteSourceLeg
	PhaseBridge
	PhaseExecuteDestinationLeg
	PhaseVerifyProof
	PhaseSettle
)

func (p ExecutionPhase) String() string {
	switch p {
	case PhaseValidate:
		return "Validate"
	case PhaseMEVDelay:
		return "MEVDelay"
	case PhaseLockSource:
		return "LockSource"
	case PhaseExecuteSourceLeg:
		return "ExecuteSourceLeg"
	case PhaseBridge:
		return "Bridge"
	case PhaseExecuteDestinationLeg:
		return "ExecuteDestinationLeg"
	case PhaseVerifyProof:
		return "VerifyProof"
	case PhaseSettle:
		return "Settle"
	default:
		return "Unknown"
	}
}

// ExecutionRecord tracks one intent's journey through the executor,
// mirroring the teacher's TransactionRecord/StakingResult pattern of a
// single struct accumulating per-attempt detail for audit purposes.
type ExecutionRecord struct {
	IntentId      IntentId
	Solver        common.Address
	Phase         ExecutionPhase
	Status        IntentStatus
	Retries       int
	SourceTxHash  common.Hash
	DestTxHash    common.Hash
	ActualDest    *big.Int
	FailureReason string
	Retriable     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
