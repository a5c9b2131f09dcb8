package ballot

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// canonicalPayload is the exact hashed form of a ballot. Field order matches
// lexicographic key order so the serialized JSON is byte-identical to the
// published verifier scripts; do not reorder or rename fields.
type canonicalPayload struct {
	CredentialPublicID string  `json:"credential_public_id"`
	ElectionID         int64   `json:"election_id"`
	Nonce              string  `json:"nonce"`
	Ranking            []int64 `json:"ranking"`
	Weight             int     `json:"weight"`
}

// CanonicalBallotJSON serializes ballot fields in the canonical wire form:
// sorted keys, compact separators, UTF-8, no HTML escaping. An empty ranking
// always serializes as [] so abstentions hash consistently.
//
// The string inputs must be ASCII (credential ids are base64url, nonces are
// hex). encoding/json escapes U+2028 and U+2029 even with SetEscapeHTML(false),
// so non-ASCII input could diverge from other canonicalizers.
func CanonicalBallotJSON(electionID int64, credentialPublicID string, ranking []int64, weight int, nonce string) []byte {
	if ranking == nil {
		ranking = []int64{}
	}

	payload := canonicalPayload{
		CredentialPublicID: credentialPublicID,
		ElectionID:         electionID,
		Nonce:              nonce,
		Ranking:            ranking,
		Weight:             weight,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		// A flat struct of ints and strings cannot fail to encode.
		panic(err)
	}

	return bytes.TrimRight(buf.Bytes(), "\n")
}

// ComputeBallotHash returns the lowercase SHA-256 hex digest of the canonical
// ballot JSON. Voters recompute this independently from receipt data, so the
// output must stay stable across releases.
func ComputeBallotHash(electionID int64, credentialPublicID string, ranking []int64, weight int, nonce string) string {
	sum := sha256.Sum256(CanonicalBallotJSON(electionID, credentialPublicID, ranking, weight, nonce))
	return hex.EncodeToString(sum[:])
}

// GenesisChainHash returns the deterministic per-election seed hash for the
// ballot chain. The seed string is part of the public verification contract
// and must never change.
func GenesisChainHash(electionID int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("election:%d. alex estuvo aquí, dejándose el alma.", electionID)))
	return hex.EncodeToString(sum[:])
}

// ChainNextHash links a ballot into the election chain:
// SHA256(previous_chain_hash ":" ballot_hash), hex strings joined by a colon.
func ChainNextHash(previousChainHash, ballotHash string) string {
	sum := sha256.Sum256([]byte(previousChainHash + ":" + ballotHash))
	return hex.EncodeToString(sum[:])
}

// NewNonce returns a 32-character random hex string included in the ballot
// hash input so identical re-submissions get distinct receipts. The nonce is
// handed to the voter and intentionally never stored.
func NewNonce() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate ballot nonce: %v", err)
	}
	return hex.EncodeToString(raw), nil
}
