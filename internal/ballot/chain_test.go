package ballot

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildChain links the given ballot hashes into a valid sequential chain.
func buildChain(electionID int64, ballotHashes []string) []ChainLink {
	links := make([]ChainLink, 0, len(ballotHashes))
	previous := GenesisChainHash(electionID)
	for _, bh := range ballotHashes {
		link := ChainLink{
			BallotHash:        bh,
			PreviousChainHash: previous,
			ChainHash:         ChainNextHash(previous, bh),
		}
		links = append(links, link)
		previous = link.ChainHash
	}
	return links
}

func TestReconstructChainOrderKnownVectors(t *testing.T) {
	links := buildChain(42, []string{
		strings.Repeat("a", 64),
		strings.Repeat("b", 64),
		strings.Repeat("c", 64),
	})

	require.Equal(t, "d26821a9651452f3f384fdedf29259ec819602a9cc4aa80d23a0666febd79f91", GenesisChainHash(42))
	assert.Equal(t, "06ffa844e30b0f03f110f8a9fecc17726eacfd505e4d7391d1be4b205fdd2ee5", links[0].ChainHash)
	assert.Equal(t, "3f3b1252703ef07677443050d0dc47ccd00ba07724bbe2aa9eedacaeab0d18b7", links[1].ChainHash)
	assert.Equal(t, "cf037a250445493fa3481815ea1626ab310708e5a4a53c7e55ba51510e084189", links[2].ChainHash)

	ordered, err := ReconstructChainOrder(links, GenesisChainHash(42))
	require.NoError(t, err)
	assert.Equal(t, links, ordered)
}

func TestReconstructChainOrderIsOrderIndependent(t *testing.T) {
	hashes := make([]string, 20)
	for i := range hashes {
		hashes[i] = ComputeBallotHash(9, "cred", []int64{int64(i + 1)}, 1, fmt.Sprintf("nonce-%d", i))
	}
	links := buildChain(9, hashes)
	genesis := GenesisChainHash(9)
	expectedHead := links[len(links)-1].ChainHash

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]ChainLink, len(links))
		copy(shuffled, links)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		ordered, err := ReconstructChainOrder(shuffled, genesis)
		require.NoError(t, err)
		assert.Equal(t, links, ordered)
		assert.Equal(t, expectedHead, HeadHash(ordered, genesis))
	}
}

func TestReconstructChainOrderEmpty(t *testing.T) {
	genesis := GenesisChainHash(5)
	ordered, err := ReconstructChainOrder(nil, genesis)
	require.NoError(t, err)
	assert.Empty(t, ordered)
	assert.Equal(t, genesis, HeadHash(ordered, genesis))
}

func TestReconstructChainOrderDetectsFork(t *testing.T) {
	links := buildChain(3, []string{strings.Repeat("a", 64), strings.Repeat("b", 64)})

	forked := append(links, ChainLink{
		BallotHash:        strings.Repeat("d", 64),
		PreviousChainHash: links[0].PreviousChainHash,
		ChainHash:         ChainNextHash(links[0].PreviousChainHash, strings.Repeat("d", 64)),
	})

	_, err := ReconstructChainOrder(forked, GenesisChainHash(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fork detected")

	var integrity *IntegrityError
	assert.ErrorAs(t, err, &integrity)
}

func TestReconstructChainOrderDetectsMissingGenesis(t *testing.T) {
	links := buildChain(3, []string{strings.Repeat("a", 64)})
	links[0].PreviousChainHash = strings.Repeat("0", 64)
	links[0].ChainHash = ChainNextHash(links[0].PreviousChainHash, links[0].BallotHash)

	_, err := ReconstructChainOrder(links, GenesisChainHash(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing genesis linkage")
}

func TestReconstructChainOrderDetectsTamperedHash(t *testing.T) {
	links := buildChain(3, []string{strings.Repeat("a", 64), strings.Repeat("b", 64)})
	links[1].BallotHash = strings.Repeat("e", 64) // content swapped after linking

	_, err := ReconstructChainOrder(links, GenesisChainHash(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain hash mismatch")
}

func TestReconstructChainOrderDetectsOrphans(t *testing.T) {
	links := buildChain(3, []string{strings.Repeat("a", 64), strings.Repeat("b", 64)})

	orphan := ChainLink{
		BallotHash:        strings.Repeat("f", 64),
		PreviousChainHash: strings.Repeat("1", 64),
		ChainHash:         ChainNextHash(strings.Repeat("1", 64), strings.Repeat("f", 64)),
	}

	_, err := ReconstructChainOrder(append(links, orphan), GenesisChainHash(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disconnected export")
}

func TestVerifyExport(t *testing.T) {
	links := buildChain(11, []string{strings.Repeat("a", 64), strings.Repeat("b", 64)})
	export := &Export{
		ElectionID:  11,
		GenesisHash: GenesisChainHash(11),
		ChainHead:   links[1].ChainHash,
		Ballots:     links,
	}

	ordered, err := VerifyExport(export)
	require.NoError(t, err)
	assert.Len(t, ordered, 2)

	export.ChainHead = strings.Repeat("9", 64)
	_, err = VerifyExport(export)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain head mismatch")

	export.ChainHead = links[1].ChainHash
	export.GenesisHash = strings.Repeat("8", 64)
	_, err = VerifyExport(export)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "genesis hash mismatch")
}
