package orbitalintents

import "github.com/orbital-labs/intents-core/internal/types"

// Wire types re-exported at the root so callers of this module depend
// on one stable package path rather than reaching into internal/types
// directly, the way the teacher keeps Route/MintParams/AMMState in its
// own root types.go rather than a pkg/ subpackage.

type (
	Intent          = types.Intent
	IntentId        = types.IntentId
	IntentStatus    = types.IntentStatus
	Solver          = types.Solver
	Quote           = types.Quote
	Auction         = types.Auction
	AuctionStatus   = types.AuctionStatus
	ExecutionPhase  = types.ExecutionPhase
	ExecutionRecord = types.ExecutionRecord
)

const (
	IntentCreated   = types.IntentCreated
	IntentMatched   = types.IntentMatched
	IntentExecuting = types.IntentExecuting
	IntentExecuted  = types.IntentExecuted
	IntentCancelled = types.IntentCancelled
	IntentFailed    = types.IntentFailed
)
