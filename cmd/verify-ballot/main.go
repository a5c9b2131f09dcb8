// Command verify-ballot recomputes a ballot hash from the literal values on a
// voter's receipt and compares it against the published hash. It depends only
// on the canonical hashing rules, so it can be audited and run without
// trusting the election server.
//
// Exit codes: 0 hash matches, 2 hash mismatch, 1 malformed input.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"election-ledger/internal/ballot"
)

const (
	exitMatch     = 0
	exitMalformed = 1
	exitMismatch  = 2
)

func main() {
	var (
		electionID   = flag.Int64("election", 0, "election id from the receipt")
		credentialID = flag.String("credential", "", "credential public id from the receipt")
		rankingArg   = flag.String("ranking", "", "comma-separated candidate ids in preference order (empty for an abstention)")
		weight       = flag.Int("weight", 0, "ballot weight from the receipt")
		nonce        = flag.String("nonce", "", "32-character hex nonce from the receipt")
		expected     = flag.String("hash", "", "ballot hash printed on the receipt")
	)
	flag.Parse()

	if *electionID <= 0 {
		fail("election id must be a positive integer")
	}
	if *credentialID == "" {
		fail("credential public id is required")
	}
	if *weight <= 0 {
		fail("weight must be a positive integer")
	}
	if len(*nonce) != 32 || !isHex(*nonce) {
		fail("nonce must be a 32-character hex string")
	}
	if len(*expected) != 64 || !isHex(*expected) {
		fail("expected hash must be a 64-character hex string")
	}

	ranking, err := parseRanking(*rankingArg)
	if err != nil {
		fail(err.Error())
	}

	computed := ballot.ComputeBallotHash(*electionID, *credentialID, ranking, *weight, *nonce)

	fmt.Printf("election:     %d\n", *electionID)
	fmt.Printf("credential:   %s\n", *credentialID)
	fmt.Printf("ranking:      %v\n", ranking)
	fmt.Printf("weight:       %d\n", *weight)
	fmt.Printf("computed:     %s\n", computed)
	fmt.Printf("receipt hash: %s\n", strings.ToLower(*expected))

	if computed != strings.ToLower(*expected) {
		fmt.Println("RESULT: MISMATCH - the receipt hash does not match these values")
		os.Exit(exitMismatch)
	}

	fmt.Println("RESULT: MATCH - the ballot is exactly what the receipt describes")
	os.Exit(exitMatch)
}

func parseRanking(arg string) ([]int64, error) {
	if strings.TrimSpace(arg) == "" {
		return []int64{}, nil
	}
	parts := strings.Split(arg, ",")
	ranking := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("ranking entry %q is not a positive integer", p)
		}
		ranking = append(ranking, id)
	}
	return ranking, nil
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "error:", msg)
	flag.Usage()
	os.Exit(exitMalformed)
}
