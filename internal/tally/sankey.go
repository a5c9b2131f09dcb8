package tally

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// Flow is one directed edge of the vote-movement diagram
type Flow struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Flow float64 `json:"flow"`
}

// SankeyData is the complete display-data derivation from a tally result:
// flow edges plus the nodes to style as elected or eliminated.
type SankeyData struct {
	Flows           []Flow   `json:"flows"`
	ElectedNodes    []string `json:"elected_nodes"`
	EliminatedNodes []string `json:"eliminated_nodes"`
}

func nodeID(roundLabel, candidateLabel string) string {
	return roundLabel + " · " + candidateLabel
}

func candidateLabel(cid int64, names map[int64]string) string {
	if name, ok := names[cid]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Candidate %d", cid)
}

// roundFlow renders a decimal as a float rounded to four decimal places,
// the only point where floats appear
func roundFlow(ctx *apd.Context, value *apd.Decimal) float64 {
	quantized := new(apd.Decimal)
	if _, err := ctx.Quantize(quantized, value, -4); err != nil {
		return 0
	}
	f, err := quantized.Float64()
	if err != nil {
		return 0
	}
	return f
}

// BuildSankeyFlows projects a tally result into Sankey flow edges. Nodes are
// "Voters" and "Round N · Name"; an edge carries the vote mass a candidate
// kept between rounds, or the mass that moved from losers to gainers when a
// candidate was elected or eliminated. Pure transform, no side effects.
func BuildSankeyFlows(result *Result, names map[int64]string, votesCast int) *SankeyData {
	data := &SankeyData{
		Flows:           []Flow{},
		ElectedNodes:    []string{},
		EliminatedNodes: []string{},
	}
	if result == nil || len(result.Rounds) == 0 {
		return data
	}

	ctx := apd.BaseContext.WithPrecision(decimalPrecision)

	roundLabels := make([]string, len(result.Rounds))
	roundTotals := make([]map[int64]*apd.Decimal, len(result.Rounds))
	for i := range result.Rounds {
		round := &result.Rounds[i]
		roundLabels[i] = fmt.Sprintf("Round %d", round.Iteration)

		totals := make(map[int64]*apd.Decimal)
		for cidRaw, totalRaw := range round.RetainedTotals {
			cid, err := strconv.ParseInt(cidRaw, 10, 64)
			if err != nil {
				continue
			}
			total, _, err := apd.NewFromString(totalRaw)
			if err != nil || total.Sign() <= 0 {
				continue
			}
			totals[cid] = total
		}
		roundTotals[i] = totals
	}

	// Initial distribution from the Voters node, scaled so the first
	// round's edges sum to the ballots cast
	firstTotals := roundTotals[0]
	totalFirst := apd.New(0, 0)
	for _, total := range firstTotals {
		ctx.Add(totalFirst, totalFirst, total)
	}
	scale := apd.New(1, 0)
	if votesCast > 0 && totalFirst.Sign() > 0 {
		ctx.Quo(scale, apd.New(int64(votesCast), 0), totalFirst)
	}
	for _, cid := range sortedKeys(firstTotals) {
		scaled := new(apd.Decimal)
		ctx.Mul(scaled, firstTotals[cid], scale)
		data.Flows = append(data.Flows, Flow{
			From: "Voters",
			To:   nodeID(roundLabels[0], candidateLabel(cid, names)),
			Flow: roundFlow(ctx, scaled),
		})
	}

	// Continuity edges plus loss-to-gain redistribution between rounds
	for roundIdx := 0; roundIdx < len(roundTotals)-1; roundIdx++ {
		prevTotals := roundTotals[roundIdx]
		nextTotals := roundTotals[roundIdx+1]
		prevLabel := roundLabels[roundIdx]
		nextLabel := roundLabels[roundIdx+1]

		ids := make(map[int64]bool)
		for cid := range prevTotals {
			ids[cid] = true
		}
		for cid := range nextTotals {
			ids[cid] = true
		}

		losses := make(map[int64]*apd.Decimal)
		gains := make(map[int64]*apd.Decimal)
		zero := apd.New(0, 0)

		for _, cid := range sortedKeySet(ids) {
			prevVal := prevTotals[cid]
			if prevVal == nil {
				prevVal = zero
			}
			nextVal := nextTotals[cid]
			if nextVal == nil {
				nextVal = zero
			}

			shared := prevVal
			if nextVal.Cmp(prevVal) < 0 {
				shared = nextVal
			}
			if shared.Sign() > 0 {
				label := candidateLabel(cid, names)
				data.Flows = append(data.Flows, Flow{
					From: nodeID(prevLabel, label),
					To:   nodeID(nextLabel, label),
					Flow: roundFlow(ctx, shared),
				})
			}

			if prevVal.Cmp(shared) > 0 {
				loss := new(apd.Decimal)
				ctx.Sub(loss, prevVal, shared)
				losses[cid] = loss
			}
			if nextVal.Cmp(shared) > 0 {
				gain := new(apd.Decimal)
				ctx.Sub(gain, nextVal, shared)
				gains[cid] = gain
			}
		}

		totalGain := apd.New(0, 0)
		for _, gain := range gains {
			ctx.Add(totalGain, totalGain, gain)
		}
		if len(losses) == 0 || totalGain.Sign() <= 0 {
			continue
		}

		// Each loser's outflow splits across gainers proportionally
		for _, loserCID := range sortedKeys(losses) {
			fromNode := nodeID(prevLabel, candidateLabel(loserCID, names))
			for _, gainerCID := range sortedKeys(gains) {
				flowVal := new(apd.Decimal)
				ctx.Mul(flowVal, losses[loserCID], gains[gainerCID])
				ctx.Quo(flowVal, flowVal, totalGain)
				if flowVal.Sign() <= 0 {
					continue
				}
				data.Flows = append(data.Flows, Flow{
					From: fromNode,
					To:   nodeID(nextLabel, candidateLabel(gainerCID, names)),
					Flow: roundFlow(ctx, flowVal),
				})
			}
		}
	}

	// Elected styling carries forward: once elected, a candidate's node is
	// tagged in every subsequent round too
	electedSoFar := make(map[int64]bool)
	for i := range result.Rounds {
		for _, cid := range result.Rounds[i].Elected {
			electedSoFar[cid] = true
		}
		for _, cid := range sortedKeySet(electedSoFar) {
			data.ElectedNodes = append(data.ElectedNodes, nodeID(roundLabels[i], candidateLabel(cid, names)))
		}
	}

	for i := range result.Rounds {
		if result.Rounds[i].Eliminated == nil {
			continue
		}
		cid := *result.Rounds[i].Eliminated
		data.EliminatedNodes = append(data.EliminatedNodes, nodeID(roundLabels[i], candidateLabel(cid, names)))
	}

	return data
}

func sortedKeys(m map[int64]*apd.Decimal) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedKeySet(m map[int64]bool) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
