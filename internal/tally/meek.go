package tally

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Meek STV runs on exact decimals. Rounding error can change an election
// outcome, so native floats never enter the computation and all persisted
// totals are decimal strings.
const (
	decimalPrecision = 80

	// Infinitesimal added to the Droop quota so a candidate must strictly
	// exceed the exact fraction.
	quotaEpsilon = "1e-70"

	// Keep-factor adjustments below this delta count as converged.
	convergenceTolerance = "1e-50"

	maxConvergencePasses = 500
)

// Candidate is one tabulation input candidate. The tiebreak UUID is the
// deterministic last-resort ordering for eliminations.
type Candidate struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	TiebreakUUID string `json:"tiebreak_uuid"`
}

// Ballot is one weighted ranking. An empty ranking is a valid abstention
// whose weight goes straight to the exhausted pile.
type Ballot struct {
	Ranking []int64 `json:"ranking"`
	Weight  int     `json:"weight"`
}

// ExclusionGroup caps how many of its candidates may be elected. Once the
// cap is hit the group's remaining hopefuls are force-excluded.
type ExclusionGroup struct {
	PublicID     string  `json:"public_id"`
	Name         string  `json:"name"`
	MaxElected   int     `json:"max_elected"`
	CandidateIDs []int64 `json:"candidate_ids"`
}

// BallotFault describes why a single ballot failed validation
type BallotFault struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ValidationError reports every bad ballot at once. The engine refuses to
// tabulate any input set containing a malformed ballot.
type ValidationError struct {
	Faults []BallotFault
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Faults))
	for _, f := range e.Faults {
		parts = append(parts, fmt.Sprintf("ballot %d: %s", f.Index, f.Reason))
	}
	return "invalid ballots: " + strings.Join(parts, "; ")
}

// TieBreak records a deterministic tie resolution during elimination
type TieBreak struct {
	Candidates []int64 `json:"candidates"`
	Selected   int64   `json:"selected"`
	Method     string  `json:"method"`
}

// Round is the audit record of one tabulation round. Totals and factors are
// exact decimal strings keyed by candidate id.
type Round struct {
	Iteration            int               `json:"iteration"`
	Elected              []int64           `json:"elected"`
	Eliminated           *int64            `json:"eliminated"`
	ForcedExclusions     []int64           `json:"forced_exclusions"`
	TieBreaks            []TieBreak        `json:"tie_breaks"`
	EligibleCandidates   []int64           `json:"eligible_candidates"`
	RetentionFactors     map[string]string `json:"retention_factors"`
	RetainedTotals       map[string]string `json:"retained_totals"`
	NumericallyConverged bool              `json:"numerically_converged"`
	MaxRetentionDelta    string            `json:"max_retention_delta"`
	Seats                int               `json:"seats"`
	ElectedTotal         int               `json:"elected_total"`
	CountComplete        bool              `json:"count_complete"`
	AuditText            string            `json:"audit_text"`
	SummaryText          string            `json:"summary_text"`
}

// Result is the complete tabulation outcome
type Result struct {
	Elected        []int64 `json:"elected"`
	Eliminated     []int64 `json:"eliminated"`
	ForcedExcluded []int64 `json:"forced_excluded"`
	Quota          string  `json:"quota"`
	ExhaustedTotal string  `json:"exhausted_total"`
	Rounds         []Round `json:"rounds"`
	Method         string  `json:"method"`
	Seats          int     `json:"seats"`
}

type candidateState int

const (
	stateHopeful candidateState = iota
	stateElected
	stateEliminated
	stateExcluded
)

type tallyRun struct {
	ctx        *apd.Context
	seats      int
	ballots    []Ballot
	candidates []Candidate
	groups     []ExclusionGroup

	order     []int64 // candidate ids in input order
	byID      map[int64]*Candidate
	state     map[int64]candidateState
	keep      map[int64]*apd.Decimal
	epsilon   *apd.Decimal
	tolerance *apd.Decimal

	elected        []int64
	eliminated     []int64
	forcedExcluded []int64
}

// Tally runs Meek STV over the full ballot set. The input is validated as a
// whole first; any malformed ballot aborts the run with a ValidationError
// naming every offender.
func Tally(seats int, ballots []Ballot, candidates []Candidate, groups []ExclusionGroup) (*Result, error) {
	if seats < 1 {
		return nil, fmt.Errorf("seats must be at least 1, got %d", seats)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates to tabulate")
	}

	byID := make(map[int64]*Candidate, len(candidates))
	order := make([]int64, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate candidate id %d", c.ID)
		}
		byID[c.ID] = c
		order = append(order, c.ID)
	}

	if err := validateBallots(ballots, byID); err != nil {
		return nil, err
	}

	for _, g := range groups {
		for _, cid := range g.CandidateIDs {
			if _, ok := byID[cid]; !ok {
				return nil, fmt.Errorf("exclusion group %q references unknown candidate %d", g.Name, cid)
			}
		}
	}

	ctx := apd.BaseContext.WithPrecision(decimalPrecision)

	epsilon, _, err := apd.NewFromString(quotaEpsilon)
	if err != nil {
		return nil, err
	}
	tolerance, _, err := apd.NewFromString(convergenceTolerance)
	if err != nil {
		return nil, err
	}

	run := &tallyRun{
		ctx:        ctx,
		seats:      seats,
		ballots:    ballots,
		candidates: candidates,
		groups:     groups,
		order:      order,
		byID:       byID,
		state:      make(map[int64]candidateState, len(candidates)),
		keep:       make(map[int64]*apd.Decimal, len(candidates)),
		epsilon:    epsilon,
		tolerance:  tolerance,
	}
	for _, cid := range order {
		run.state[cid] = stateHopeful
		run.keep[cid] = apd.New(1, 0)
	}

	return run.execute()
}

func validateBallots(ballots []Ballot, byID map[int64]*Candidate) error {
	var faults []BallotFault
	for i, b := range ballots {
		if b.Weight <= 0 {
			faults = append(faults, BallotFault{Index: i, Reason: fmt.Sprintf("non-positive weight %d", b.Weight)})
			continue
		}
		seen := make(map[int64]bool, len(b.Ranking))
		for _, cid := range b.Ranking {
			if _, ok := byID[cid]; !ok {
				faults = append(faults, BallotFault{Index: i, Reason: fmt.Sprintf("unknown candidate id %d", cid)})
				break
			}
			if seen[cid] {
				faults = append(faults, BallotFault{Index: i, Reason: fmt.Sprintf("duplicate candidate id %d in ranking", cid)})
				break
			}
			seen[cid] = true
		}
	}
	if len(faults) > 0 {
		return &ValidationError{Faults: faults}
	}
	return nil
}

func (r *tallyRun) execute() (*Result, error) {
	result := &Result{Method: "meek", Seats: r.seats}

	// Each round elects, eliminates, or completes the count, so the round
	// count is bounded by the candidate count.
	maxRounds := 2*len(r.candidates) + 2

	var lastQuota, lastExhausted *apd.Decimal

	for iteration := 1; iteration <= maxRounds; iteration++ {
		totals, exhausted, quota, converged, maxDelta, err := r.converge()
		if err != nil {
			return nil, err
		}
		lastQuota, lastExhausted = quota, exhausted

		round := Round{
			Iteration:            iteration,
			Elected:              []int64{},
			ForcedExclusions:     []int64{},
			TieBreaks:            []TieBreak{},
			EligibleCandidates:   r.continuing(),
			RetentionFactors:     r.factorStrings(),
			RetainedTotals:       decimalStrings(totals),
			NumericallyConverged: converged,
			MaxRetentionDelta:    maxDelta.Text('f'),
			Seats:                r.seats,
		}

		// Elect every hopeful at or above quota
		for _, cid := range r.hopefulsByTotalDesc(totals) {
			if len(r.elected) >= r.seats {
				break
			}
			if totals[cid].Cmp(quota) >= 0 {
				r.state[cid] = stateElected
				r.elected = append(r.elected, cid)
				round.Elected = append(round.Elected, cid)
			}
		}

		// Groups at their election cap force-exclude their remaining hopefuls
		round.ForcedExclusions = r.applyForcedExclusions()

		hopefuls := r.hopefuls()
		seatsRemaining := r.seats - len(r.elected)

		switch {
		case seatsRemaining <= 0:
			round.CountComplete = true

		case len(hopefuls) <= seatsRemaining:
			// Everyone left fits; elect them all, still honoring group caps
			for _, cid := range r.hopefulsByTotalDesc(totals) {
				if r.groupAtCap(cid) {
					r.state[cid] = stateExcluded
					r.forcedExcluded = append(r.forcedExcluded, cid)
					round.ForcedExclusions = append(round.ForcedExclusions, cid)
					continue
				}
				r.state[cid] = stateElected
				r.elected = append(r.elected, cid)
				round.Elected = append(round.Elected, cid)
			}
			round.CountComplete = true

		case len(round.Elected) == 0 && len(round.ForcedExclusions) == 0:
			// Nobody reached quota; eliminate the lowest hopeful
			lowest, tie := r.lowestHopeful(totals)
			r.state[lowest] = stateEliminated
			r.eliminated = append(r.eliminated, lowest)
			eliminated := lowest
			round.Eliminated = &eliminated
			if tie != nil {
				round.TieBreaks = append(round.TieBreaks, *tie)
			}
		}

		round.ElectedTotal = len(r.elected)
		round.AuditText = r.auditText(&round, quota, exhausted)
		round.SummaryText = r.summaryText(&round)
		result.Rounds = append(result.Rounds, round)

		if round.CountComplete {
			break
		}
	}

	sort.Slice(r.elected, func(i, j int) bool { return r.elected[i] < r.elected[j] })
	result.Elected = r.elected
	result.Eliminated = r.eliminated
	result.ForcedExcluded = r.forcedExcluded
	if result.Elected == nil {
		result.Elected = []int64{}
	}
	if result.Eliminated == nil {
		result.Eliminated = []int64{}
	}
	if result.ForcedExcluded == nil {
		result.ForcedExcluded = []int64{}
	}
	if lastQuota != nil {
		result.Quota = lastQuota.Text('f')
	}
	if lastExhausted != nil {
		result.ExhaustedTotal = lastExhausted.Text('f')
	}
	return result, nil
}

// converge runs the inner Meek loop: distribute ballot weight down rankings
// through keep factors, recompute the quota, scale elected candidates' keep
// factors toward exactly-at-quota, and repeat until the largest adjustment
// falls under the tolerance.
func (r *tallyRun) converge() (totals map[int64]*apd.Decimal, exhausted, quota *apd.Decimal, converged bool, maxDelta *apd.Decimal, err error) {
	maxDelta = apd.New(0, 0)

	for pass := 0; pass < maxConvergencePasses; pass++ {
		totals, exhausted, err = r.distribute()
		if err != nil {
			return nil, nil, nil, false, nil, err
		}

		quota, err = r.computeQuota(totals)
		if err != nil {
			return nil, nil, nil, false, nil, err
		}

		delta := apd.New(0, 0)
		for _, cid := range r.order {
			if r.state[cid] != stateElected {
				continue
			}
			total := totals[cid]
			if total == nil || total.IsZero() {
				continue
			}

			// newKeep = keep * quota / total, capped at 1
			newKeep := new(apd.Decimal)
			if _, err := r.ctx.Mul(newKeep, r.keep[cid], quota); err != nil {
				return nil, nil, nil, false, nil, err
			}
			if _, err := r.ctx.Quo(newKeep, newKeep, total); err != nil {
				return nil, nil, nil, false, nil, err
			}
			one := apd.New(1, 0)
			if newKeep.Cmp(one) > 0 {
				newKeep = one
			}

			diff := new(apd.Decimal)
			if _, err := r.ctx.Sub(diff, newKeep, r.keep[cid]); err != nil {
				return nil, nil, nil, false, nil, err
			}
			diff.Abs(diff)
			if diff.Cmp(delta) > 0 {
				delta = diff
			}

			r.keep[cid] = newKeep
		}

		maxDelta = delta
		if delta.Cmp(r.tolerance) < 0 {
			return totals, exhausted, quota, true, maxDelta, nil
		}
	}

	return totals, exhausted, quota, false, maxDelta, nil
}

// distribute spills each ballot's weight down its ranking: every continuing
// candidate retains weight*keep and passes the rest on, and whatever falls
// off the end is exhausted.
func (r *tallyRun) distribute() (map[int64]*apd.Decimal, *apd.Decimal, error) {
	totals := make(map[int64]*apd.Decimal, len(r.order))
	for _, cid := range r.order {
		if r.state[cid] == stateHopeful || r.state[cid] == stateElected {
			totals[cid] = apd.New(0, 0)
		}
	}
	exhausted := apd.New(0, 0)

	for i := range r.ballots {
		b := &r.ballots[i]
		remaining := apd.New(int64(b.Weight), 0)

		for _, cid := range b.Ranking {
			if remaining.IsZero() {
				break
			}
			st := r.state[cid]
			if st == stateEliminated || st == stateExcluded {
				continue
			}

			kept := new(apd.Decimal)
			if _, err := r.ctx.Mul(kept, remaining, r.keep[cid]); err != nil {
				return nil, nil, err
			}
			if _, err := r.ctx.Add(totals[cid], totals[cid], kept); err != nil {
				return nil, nil, err
			}
			if _, err := r.ctx.Sub(remaining, remaining, kept); err != nil {
				return nil, nil, err
			}
		}

		if _, err := r.ctx.Add(exhausted, exhausted, remaining); err != nil {
			return nil, nil, err
		}
	}

	return totals, exhausted, nil
}

// computeQuota derives the Droop quota from the currently retained vote:
// (total retained) / (seats + 1) + epsilon.
func (r *tallyRun) computeQuota(totals map[int64]*apd.Decimal) (*apd.Decimal, error) {
	active := apd.New(0, 0)
	for _, total := range totals {
		if _, err := r.ctx.Add(active, active, total); err != nil {
			return nil, err
		}
	}

	quota := new(apd.Decimal)
	if _, err := r.ctx.Quo(quota, active, apd.New(int64(r.seats+1), 0)); err != nil {
		return nil, err
	}
	if _, err := r.ctx.Add(quota, quota, r.epsilon); err != nil {
		return nil, err
	}
	return quota, nil
}

// lowestHopeful picks the hopeful with the smallest retained total,
// breaking exact ties by smallest tiebreak UUID.
func (r *tallyRun) lowestHopeful(totals map[int64]*apd.Decimal) (int64, *TieBreak) {
	hopefuls := r.hopefuls()

	var tied []int64
	for _, cid := range hopefuls {
		if len(tied) == 0 {
			tied = []int64{cid}
			continue
		}
		cmp := totals[cid].Cmp(totals[tied[0]])
		switch {
		case cmp < 0:
			tied = []int64{cid}
		case cmp == 0:
			tied = append(tied, cid)
		}
	}

	if len(tied) == 1 {
		return tied[0], nil
	}

	sort.Slice(tied, func(i, j int) bool { return tied[i] < tied[j] })
	selected := tied[0]
	for _, cid := range tied[1:] {
		if r.byID[cid].TiebreakUUID < r.byID[selected].TiebreakUUID {
			selected = cid
		}
	}

	return selected, &TieBreak{Candidates: tied, Selected: selected, Method: "tiebreak_uuid"}
}

// applyForcedExclusions excludes hopefuls in any exclusion group that has
// reached its elected cap.
func (r *tallyRun) applyForcedExclusions() []int64 {
	excluded := []int64{}
	for _, g := range r.groups {
		electedInGroup := 0
		for _, cid := range g.CandidateIDs {
			if r.state[cid] == stateElected {
				electedInGroup++
			}
		}
		if electedInGroup < g.MaxElected {
			continue
		}
		for _, cid := range g.CandidateIDs {
			if r.state[cid] == stateHopeful {
				r.state[cid] = stateExcluded
				r.forcedExcluded = append(r.forcedExcluded, cid)
				excluded = append(excluded, cid)
			}
		}
	}
	return excluded
}

func (r *tallyRun) groupAtCap(candidateID int64) bool {
	for _, g := range r.groups {
		inGroup := false
		electedInGroup := 0
		for _, cid := range g.CandidateIDs {
			if cid == candidateID {
				inGroup = true
			}
			if r.state[cid] == stateElected {
				electedInGroup++
			}
		}
		if inGroup && electedInGroup >= g.MaxElected {
			return true
		}
	}
	return false
}

func (r *tallyRun) hopefuls() []int64 {
	var out []int64
	for _, cid := range r.order {
		if r.state[cid] == stateHopeful {
			out = append(out, cid)
		}
	}
	return out
}

func (r *tallyRun) continuing() []int64 {
	out := []int64{}
	for _, cid := range r.order {
		if r.state[cid] == stateHopeful || r.state[cid] == stateElected {
			out = append(out, cid)
		}
	}
	return out
}

// hopefulsByTotalDesc orders hopefuls by retained total descending, then by
// tiebreak UUID, so election order is deterministic.
func (r *tallyRun) hopefulsByTotalDesc(totals map[int64]*apd.Decimal) []int64 {
	hopefuls := r.hopefuls()
	sort.Slice(hopefuls, func(i, j int) bool {
		cmp := totals[hopefuls[i]].Cmp(totals[hopefuls[j]])
		if cmp != 0 {
			return cmp > 0
		}
		return r.byID[hopefuls[i]].TiebreakUUID < r.byID[hopefuls[j]].TiebreakUUID
	})
	return hopefuls
}

func (r *tallyRun) factorStrings() map[string]string {
	out := make(map[string]string, len(r.order))
	for _, cid := range r.order {
		if r.state[cid] == stateHopeful || r.state[cid] == stateElected {
			out[strconv.FormatInt(cid, 10)] = r.keep[cid].Text('f')
		}
	}
	return out
}

func decimalStrings(totals map[int64]*apd.Decimal) map[string]string {
	out := make(map[string]string, len(totals))
	for cid, total := range totals {
		out[strconv.FormatInt(cid, 10)] = total.Text('f')
	}
	return out
}

func (r *tallyRun) auditText(round *Round, quota, exhausted *apd.Decimal) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "round %d: quota=%s exhausted=%s", round.Iteration, quota.Text('f'), exhausted.Text('f'))
	if len(round.Elected) > 0 {
		fmt.Fprintf(&sb, " elected=%v", round.Elected)
	}
	if round.Eliminated != nil {
		fmt.Fprintf(&sb, " eliminated=%d", *round.Eliminated)
	}
	if len(round.ForcedExclusions) > 0 {
		fmt.Fprintf(&sb, " forced_exclusions=%v", round.ForcedExclusions)
	}
	for _, tb := range round.TieBreaks {
		fmt.Fprintf(&sb, " tie_break=%v->%d", tb.Candidates, tb.Selected)
	}
	return sb.String()
}

func (r *tallyRun) summaryText(round *Round) string {
	names := func(ids []int64) string {
		parts := make([]string, 0, len(ids))
		for _, cid := range ids {
			parts = append(parts, r.byID[cid].Name)
		}
		return strings.Join(parts, ", ")
	}

	switch {
	case len(round.Elected) > 0 && round.CountComplete:
		return fmt.Sprintf("Elected %s; count complete with %d of %d seats filled.", names(round.Elected), round.ElectedTotal, round.Seats)
	case len(round.Elected) > 0:
		return fmt.Sprintf("Elected %s.", names(round.Elected))
	case round.Eliminated != nil:
		return fmt.Sprintf("No candidate reached quota; eliminated %s.", r.byID[*round.Eliminated].Name)
	case round.CountComplete:
		return fmt.Sprintf("Count complete with %d of %d seats filled.", round.ElectedTotal, round.Seats)
	default:
		return "No change this round."
	}
}
