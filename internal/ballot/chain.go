package ballot

import "fmt"

// ChainLink is the public, content-free view of one ballot's position in an
// election chain. This is what the public ballots export carries per row.
type ChainLink struct {
	BallotHash        string `json:"ballot_hash"`
	PreviousChainHash string `json:"previous_chain_hash"`
	ChainHash         string `json:"chain_hash"`
}

// Export is the public ballots export consumed by the offline chain verifier.
type Export struct {
	ElectionID  int64       `json:"election_id"`
	GenesisHash string      `json:"genesis_hash"`
	ChainHead   string      `json:"chain_head"`
	Ballots     []ChainLink `json:"ballots"`
}

// IntegrityError reports a broken chain: a fork, an orphaned ballot, a hash
// mismatch, or a cycle. It is fatal for the affected operation and must be
// surfaced, never repaired.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return "chain integrity violation: " + e.Reason
}

func integrityErrorf(format string, args ...interface{}) error {
	return &IntegrityError{Reason: fmt.Sprintf(format, args...)}
}

// ReconstructChainOrder recovers the unique total order of an unordered set
// of chain links by walking previous-hash pointers from the genesis hash.
// Every structural defect is an error: two links claiming the same previous
// hash (fork), a link whose chain hash does not recompute, a cycle, or links
// unreachable from genesis. Remaining links are never silently dropped.
func ReconstructChainOrder(links []ChainLink, genesisHash string) ([]ChainLink, error) {
	byPrevious := make(map[string]ChainLink, len(links))
	for _, link := range links {
		if link.PreviousChainHash == "" {
			return nil, integrityErrorf("ballot row missing previous_chain_hash")
		}
		if _, dup := byPrevious[link.PreviousChainHash]; dup {
			return nil, integrityErrorf("fork detected: multiple ballots claim previous_chain_hash=%s", link.PreviousChainHash)
		}
		byPrevious[link.PreviousChainHash] = link
	}

	if len(links) > 0 {
		if _, ok := byPrevious[genesisHash]; !ok {
			return nil, integrityErrorf("missing genesis linkage: no ballot references the election genesis hash")
		}
	}

	ordered := make([]ChainLink, 0, len(links))
	visited := make(map[string]bool, len(links))
	current := genesisHash

	for {
		link, ok := byPrevious[current]
		if !ok {
			break
		}

		if link.BallotHash == "" {
			return nil, integrityErrorf("ballot row missing ballot_hash")
		}
		if link.ChainHash == "" {
			return nil, integrityErrorf("ballot row missing chain_hash")
		}

		computed := ChainNextHash(current, link.BallotHash)
		if computed != link.ChainHash {
			return nil, integrityErrorf(
				"chain hash mismatch for ballot: previous_chain_hash=%s ballot_hash=%s computed=%s exported=%s",
				current, link.BallotHash, computed, link.ChainHash)
		}

		if visited[link.ChainHash] {
			return nil, integrityErrorf("cycle detected in chain")
		}
		visited[link.ChainHash] = true

		ordered = append(ordered, link)
		current = link.ChainHash
	}

	if len(ordered) != len(links) {
		return nil, integrityErrorf(
			"disconnected export: not all ballots are reachable from genesis (reachable=%d total=%d)",
			len(ordered), len(links))
	}

	return ordered, nil
}

// HeadHash returns the chain head implied by an ordered link list, falling
// back to the genesis hash for an empty chain.
func HeadHash(ordered []ChainLink, genesisHash string) string {
	if len(ordered) == 0 {
		return genesisHash
	}
	return ordered[len(ordered)-1].ChainHash
}

// VerifyExport validates a public ballots export end to end: the genesis hash
// matches the election, the links reconstruct into a single chain, and the
// reconstructed head equals the published chain head.
func VerifyExport(export *Export) ([]ChainLink, error) {
	genesis := GenesisChainHash(export.ElectionID)
	if export.GenesisHash != "" && export.GenesisHash != genesis {
		return nil, integrityErrorf("genesis hash mismatch: computed=%s export=%s", genesis, export.GenesisHash)
	}

	ordered, err := ReconstructChainOrder(export.Ballots, genesis)
	if err != nil {
		return nil, err
	}

	if export.ChainHead == "" {
		return nil, integrityErrorf("export missing chain_head")
	}
	if head := HeadHash(ordered, genesis); head != export.ChainHead {
		return nil, integrityErrorf("chain head mismatch: computed=%s expected=%s", head, export.ChainHead)
	}

	return ordered, nil
}
