// Package route implements the Route Optimizer: a bounded shortest-path
// search over a token graph where edges are individual pool hops and
// edge weight is a composite cost of gas, price impact, and output.
package route

import (
	"errors"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// ErrNoRoute is returned when no path within MaxHopDepth yields at least
// the intent's minimum destination amount after accounting for
// worst-case slippage.
var ErrNoRoute = errors.New("route: no route")

// MaxHopDepth bounds the number of pool hops a route may use (spec
// §4.3, "Max hop depth 3 (tunable)").
const MaxHopDepth = 3

// CostWeights controls the composite edge-cost formula:
// gas_cost + Alpha*price_impact - Beta*output.
type CostWeights struct {
	Alpha float64
	Beta  float64
}

// DefaultCostWeights matches the teacher's style of a single tunable
// constants block (mirrors DefaultFeeBp/DefaultToleranceBp in
// internal/orbital).
var DefaultCostWeights = CostWeights{Alpha: 1.0, Beta: 0.001}

// Hop is one pool traversal: swap TokenIn for TokenOut through PoolID,
// with the route builder's estimate of output, gas, and price impact.
type Hop struct {
	PoolID        [32]byte
	TokenIn       common.Address
	TokenOut      common.Address
	EstimatedOut  *big.Int
	EstimatedGas  uint64
	PriceImpactBp int
}

// TokenGraph is a directed, weighted graph of tradeable token pairs. A
// node is a token address; an edge is a pool hop. Built fresh per
// routing request from a snapshot of reachable pools (spec §4.3's
// "snapshot of reachable pools" input) — not a long-lived mutable
// structure, matching spec §9's "no lazy initialization, explicit
// init/teardown" guidance for shared state.
type TokenGraph struct {
	g           *simple.WeightedDirectedGraph
	tokenToNode map[common.Address]int64
	nodeToToken map[int64]common.Address
	hopByEdge   map[[2]int64]*Hop
	nextID      int64
}

// NewTokenGraph builds an empty token graph.
func NewTokenGraph() *TokenGraph {
	return &TokenGraph{
		g:           simple.NewWeightedDirectedGraph(0, 0),
		tokenToNode: make(map[common.Address]int64),
		nodeToToken: make(map[int64]common.Address),
		hopByEdge:   make(map[[2]int64]*Hop),
	}
}

func (tg *TokenGraph) nodeFor(token common.Address) int64 {
	if id, ok := tg.tokenToNode[token]; ok {
		return id
	}
	id := tg.nextID
	tg.nextID++
	tg.tokenToNode[token] = id
	tg.nodeToToken[id] = token
	tg.g.AddNode(simple.Node(id))
	return id
}

// AddHop adds a directed edge token_in -> token_out for one candidate
// pool hop, weighted by the composite cost formula.
func (tg *TokenGraph) AddHop(hop Hop, weights CostWeights) {
	from := tg.nodeFor(hop.TokenIn)
	to := tg.nodeFor(hop.TokenOut)

	weight := edgeWeight(hop, weights)

	tg.g.SetWeightedEdge(simple.WeightedEdge{
		F: simple.Node(from),
		T: simple.Node(to),
		W: weight,
	})
	tg.hopByEdge[[2]int64{from, to}] = &hop
}

func edgeWeight(hop Hop, weights CostWeights) float64 {
	gasCost := float64(hop.EstimatedGas)
	impact := float64(hop.PriceImpactBp)
	output := 0.0
	if hop.EstimatedOut != nil {
		output, _ = new(big.Float).SetInt(hop.EstimatedOut).Float64()
	}
	return gasCost + weights.Alpha*impact - weights.Beta*output
}

// FindRoute searches for the lowest-composite-cost path from source to
// dest using at most MaxHopDepth hops (spec §4.3's "bounded Dijkstra").
// The bound is enforced by the search space itself: the graph is
// unrolled into MaxHopDepth+1 hop-count layers (layerWidth, below) so
// that every edge in the unrolled graph advances exactly one layer,
// and the search can only ever reach dest through a path of MaxHopDepth
// hops or fewer. The composite weight is negative whenever Beta*output
// exceeds gas plus Alpha*impact, so the search uses Bellman-Ford
// (gonum's DijkstraFrom panics on negative weights); the unrolled graph
// is acyclic, so it has no negative cycle. This is why a cheaper 4+-hop path never shadows a
// pricier but valid <=3-hop one — the longer path's dest node simply
// doesn't exist within the search space. Returns ErrNoRoute if no such
// path exists or the best one fails to clear minDestAmount after
// worst-case slippage.
func FindRoute(tg *TokenGraph, source, dest common.Address, minDestAmount *big.Int, worstCaseSlippageBp int) ([]Hop, error) {
	sourceID, ok := tg.tokenToNode[source]
	if !ok {
		return nil, ErrNoRoute
	}
	destID, ok := tg.tokenToNode[dest]
	if !ok {
		return nil, ErrNoRoute
	}

	layered := newLayeredGraph(tg, MaxHopDepth)
	shortest, ok := path.BellmanFordFrom(simple.Node(layered.encode(sourceID, 0)), layered.g)
	if !ok {
		return nil, ErrNoRoute
	}

	var bestNodes []graph.Node
	bestWeight := math.Inf(1)
	for depth := 1; depth <= MaxHopDepth; depth++ {
		nodes, weight := shortest.To(layered.encode(destID, depth))
		if len(nodes) == 0 {
			continue
		}
		if weight < bestWeight {
			bestWeight = weight
			bestNodes = nodes
		}
	}
	if bestNodes == nil {
		return nil, ErrNoRoute
	}

	hops := make([]Hop, 0, len(bestNodes)-1)
	for k := 0; k < len(bestNodes)-1; k++ {
		from := layered.decode(bestNodes[k].ID())
		to := layered.decode(bestNodes[k+1].ID())
		hop, ok := tg.hopByEdge[[2]int64{from, to}]
		if !ok {
			return nil, ErrNoRoute
		}
		hops = append(hops, *hop)
	}

	finalOut := finalOutputAfterSlippage(hops, worstCaseSlippageBp)
	if finalOut.Cmp(minDestAmount) < 0 {
		return nil, ErrNoRoute
	}

	return hops, nil
}

// layeredGraph unrolls a TokenGraph into maxDepth+1 copies of its
// nodes, one per hop count reached so far, with edges only running
// from layer L to layer L+1. A node's original id and layer recover
// via decode/encode, a bijection keyed on layerWidth.
type layeredGraph struct {
	g          *simple.WeightedDirectedGraph
	layerWidth int64
}

func (lg *layeredGraph) encode(origID int64, layer int) int64 {
	return origID*lg.layerWidth + int64(layer)
}

func (lg *layeredGraph) decode(layeredID int64) int64 {
	return layeredID / lg.layerWidth
}

func newLayeredGraph(tg *TokenGraph, maxDepth int) *layeredGraph {
	lg := &layeredGraph{
		g:          simple.NewWeightedDirectedGraph(0, 0),
		layerWidth: int64(maxDepth + 1),
	}

	for origID := range tg.nodeToToken {
		for layer := 0; layer <= maxDepth; layer++ {
			lg.g.AddNode(simple.Node(lg.encode(origID, layer)))
		}
	}

	edges := tg.g.WeightedEdges()
	for edges.Next() {
		we := edges.WeightedEdge()
		from, to, weight := we.From().ID(), we.To().ID(), we.Weight()
		for layer := 0; layer < maxDepth; layer++ {
			lg.g.SetWeightedEdge(simple.WeightedEdge{
				F: simple.Node(lg.encode(from, layer)),
				T: simple.Node(lg.encode(to, layer+1)),
				W: weight,
			})
		}
	}

	return lg
}

// finalOutputAfterSlippage applies worstCaseSlippageBp to the last
// hop's estimated output, matching spec §4.3's "accounting for
// worst-case slippage" acceptance criterion.
func finalOutputAfterSlippage(hops []Hop, worstCaseSlippageBp int) *big.Int {
	if len(hops) == 0 {
		return big.NewInt(0)
	}
	last := hops[len(hops)-1].EstimatedOut
	if last == nil {
		return big.NewInt(0)
	}
	adjusted := new(big.Int).Mul(last, big.NewInt(int64(10000-worstCaseSlippageBp)))
	return adjusted.Div(adjusted, big.NewInt(10000))
}
