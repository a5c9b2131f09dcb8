package election

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"election-ledger/internal/ballot"
	"election-ledger/internal/database"
	"election-ledger/internal/database/repositories"
	"election-ledger/internal/eligibility"
	"election-ledger/internal/tally"
	"election-ledger/pkg/config"
	"election-ledger/pkg/logger"
)

// Audit log actions written by the service. The public export only exposes
// the actions listed in publicAuditActions.
const (
	ActionElectionCreated    = "election_created"
	ActionElectionOpened     = "election_opened"
	ActionElectionExtended   = "election_extended"
	ActionElectionClosed     = "election_closed"
	ActionElectionCloseFail  = "election_close_failed"
	ActionCredentialsIssued  = "credentials_issued"
	ActionCandidateNominated = "candidate_nominated"
	ActionGroupDefined       = "exclusion_group_defined"
	ActionBallotSubmitted    = "ballot_submitted"
	ActionQuorumReached      = "quorum_reached"
	ActionTallyRound         = "tally_round"
	ActionTallyCompleted     = "tally_completed"
	ActionTallyFailed        = "tally_failed"
)

var publicAuditActions = map[string]bool{
	ActionElectionCreated:  true,
	ActionElectionOpened:   true,
	ActionElectionExtended: true,
	ActionElectionClosed:   true,
	ActionQuorumReached:    true,
	ActionTallyRound:       true,
	ActionTallyCompleted:   true,
}

// Receipt is returned to the voter after a successful submission. Together
// with the saved nonce and ranking it lets the voter re-derive the ballot
// hash offline.
type Receipt struct {
	ElectionID         int64     `json:"election_id"`
	CredentialPublicID string    `json:"credential_public_id"`
	BallotHash         string    `json:"ballot_hash"`
	PreviousChainHash  string    `json:"previous_chain_hash"`
	ChainHash          string    `json:"chain_hash"`
	Nonce              string    `json:"nonce"`
	Ranking            []int64   `json:"ranking"`
	Weight             int       `json:"weight"`
	SubmittedAt        time.Time `json:"submitted_at"`
}

// ReceiptStatus is the public receipt lookup result. It reveals existence,
// submission time, and whether the ballot still counts. Never the ranking.
type ReceiptStatus struct {
	Exists      bool       `json:"exists"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	IsCounted   bool       `json:"is_counted"`
	Superseded  bool       `json:"superseded"`
}

// PublicBallot is one row of the public ballots export. The ranking shows
// candidate names so the published count is independently recomputable.
type PublicBallot struct {
	Position          int       `json:"position"`
	BallotHash        string    `json:"ballot_hash"`
	PreviousChainHash string    `json:"previous_chain_hash"`
	ChainHash         string    `json:"chain_hash"`
	Ranking           []string  `json:"ranking"`
	Weight            int       `json:"weight"`
	IsCounted         bool      `json:"is_counted"`
	Superseded        bool      `json:"superseded"`
	CreatedAt         time.Time `json:"created_at"`
}

// AuditEntry is one row of the public audit export
type AuditEntry struct {
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditExport is the public audit trail plus the tabulation metadata needed
// to reproduce the count.
type AuditExport struct {
	ElectionID int64        `json:"election_id"`
	Algorithm  string       `json:"algorithm"`
	Entries    []AuditEntry `json:"entries"`
}

// EligibilityReport pairs both eligibility views. They are built from the
// same facts and can never disagree.
type EligibilityReport struct {
	Eligible   []eligibility.EligibleVoter   `json:"eligible"`
	Ineligible []eligibility.IneligibleVoter `json:"ineligible"`
}

// LiveStatus is the websocket status frame: chain head plus turnout
type LiveStatus struct {
	ElectionID   int64               `json:"election_id"`
	Status       string              `json:"status"`
	ChainHead    string              `json:"chain_head"`
	BallotsTotal int                 `json:"ballots_total"`
	BallotsFinal int                 `json:"ballots_final"`
	Quorum       *tally.QuorumStatus `json:"quorum,omitempty"`
	ObservedAt   time.Time           `json:"observed_at"`
}

// Service implements the election lifecycle and the voting path on top of
// the repositories. All mutating operations write audit log entries.
type Service struct {
	cfg         *config.Config
	log         *logger.Logger
	elections   *repositories.ElectionRepository
	ballots     *repositories.BallotRepository
	candidates  *repositories.CandidateRepository
	credentials *repositories.CredentialRepository
	memberships *repositories.MembershipRepository
	users       *repositories.UserRepository
	audit       *repositories.AuditLogRepository
	eligibility *eligibility.Engine
}

func NewService(db *sql.DB, cfg *config.Config, log *logger.Logger) *Service {
	locker := database.NewElectionLocker()
	memberships := repositories.NewMembershipRepository(db)
	users := repositories.NewUserRepository(db)

	return &Service{
		cfg:         cfg,
		log:         log,
		elections:   repositories.NewElectionRepository(db),
		ballots:     repositories.NewBallotRepository(db, locker, cfg.Election.AppendLockTimeout),
		candidates:  repositories.NewCandidateRepository(db),
		credentials: repositories.NewCredentialRepository(db),
		memberships: memberships,
		users:       users,
		audit:       repositories.NewAuditLogRepository(db),
		eligibility: eligibility.NewEngine(memberships, users, cfg.Election.MinMembershipAgeDays),
	}
}

// GetElection loads an election or reports it missing
func (s *Service) GetElection(electionID int64) (*database.Election, error) {
	election, err := s.elections.GetElectionByID(electionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(KindNotFound, fmt.Sprintf("election %d not found", electionID))
	}
	if err != nil {
		return nil, wrapError(KindInternal, "load election", err)
	}
	return election, nil
}

// ListElections returns elections newest first
func (s *Service) ListElections(limit, offset int) ([]database.Election, error) {
	return s.elections.ListElections(limit, offset)
}

// Candidates lists an election's candidates
func (s *Service) Candidates(electionID int64) ([]database.Candidate, error) {
	candidates, err := s.candidates.ListByElection(electionID)
	if err != nil {
		return nil, wrapError(KindInternal, "list candidates", err)
	}
	return candidates, nil
}

// CreateElection validates and persists a new draft election
func (s *Service) CreateElection(election *database.Election, actorID string) error {
	switch {
	case election.Name == "":
		return newError(KindValidation, "election name is required")
	case election.Seats < 1:
		return newError(KindValidation, "an election needs at least one seat")
	case !election.EndDatetime.After(election.StartDatetime):
		return newError(KindValidation, "end datetime must be after start datetime")
	case election.QuorumPct < 0 || election.QuorumPct > 100:
		return newError(KindValidation, "quorum percent must be between 0 and 100")
	}

	election.Status = database.ElectionStatusDraft
	if err := s.elections.CreateElection(election); err != nil {
		return wrapError(KindInternal, "create election", err)
	}

	s.writeAudit(election.ID, ActionElectionCreated, actorID, map[string]interface{}{
		"name":  election.Name,
		"seats": election.Seats,
	})
	return nil
}

// NominateCandidate adds a candidate to a draft election, enforcing the
// self-nomination policy.
func (s *Service) NominateCandidate(candidate *database.Candidate, actorID string) error {
	election, err := s.GetElection(candidate.ElectionID)
	if err != nil {
		return err
	}
	if election.Status != database.ElectionStatusDraft {
		return newError(KindPolicy, "candidates can only be nominated while the election is a draft")
	}
	if candidate.Name == "" {
		return newError(KindValidation, "candidate name is required")
	}
	if !s.cfg.Election.AllowSelfNomination && eligibility.IsSelfNomination(candidate.UserID, candidate.NominatedByUserID) {
		return newError(KindPolicy, "self-nomination is not allowed")
	}
	if candidate.TiebreakUUID == "" {
		candidate.TiebreakUUID = uuid.NewString()
	}

	if err := s.candidates.Insert(candidate); err != nil {
		return wrapError(KindInternal, "insert candidate", err)
	}

	s.writeAudit(candidate.ElectionID, ActionCandidateNominated, actorID, map[string]interface{}{
		"candidate": candidate.Name,
	})
	return nil
}

// CreateExclusionGroup defines a cap on how many candidates from one group
// may be elected. Groups are fixed once the election opens.
func (s *Service) CreateExclusionGroup(group *database.ExclusionGroup, actorID string) error {
	election, err := s.GetElection(group.ElectionID)
	if err != nil {
		return err
	}
	if election.Status != database.ElectionStatusDraft {
		return newError(KindPolicy, "exclusion groups can only be defined while the election is a draft")
	}
	if group.Name == "" {
		return newError(KindValidation, "exclusion group name is required")
	}
	if group.MaxElected < 1 {
		return newError(KindValidation, "exclusion group max_elected must be at least 1")
	}

	if err := s.candidates.InsertExclusionGroup(group); err != nil {
		return wrapError(KindInternal, "insert exclusion group", err)
	}

	s.writeAudit(group.ElectionID, ActionGroupDefined, actorID, map[string]interface{}{
		"exclusion_group": group.Name,
		"max_elected":     group.MaxElected,
	})
	return nil
}

// IssueCredentials freezes the eligibility snapshot of a draft election into
// voting credentials. Refuses to run twice; the snapshot is immutable once
// taken.
func (s *Service) IssueCredentials(electionID int64, actorID string) (int, error) {
	election, err := s.GetElection(electionID)
	if err != nil {
		return 0, err
	}
	if election.Status != database.ElectionStatusDraft {
		return 0, newError(KindPolicy, "credentials are issued while the election is a draft")
	}

	existing, err := s.credentials.CountByElection(electionID)
	if err != nil {
		return 0, wrapError(KindInternal, "count credentials", err)
	}
	if existing > 0 {
		return 0, newError(KindPolicy, "credentials have already been issued for this election")
	}

	voters, err := s.eligibility.EligibleVoters(election)
	if err != nil {
		var sourceErr *eligibility.SourceError
		if errors.As(err, &sourceErr) {
			return 0, wrapError(KindTransient, "membership source unreachable", err)
		}
		return 0, wrapError(KindInternal, "compute eligible voters", err)
	}

	credentials := make([]database.VotingCredential, 0, len(voters))
	for _, voter := range voters {
		userID := voter.UserID
		publicID, err := newPublicID()
		if err != nil {
			return 0, wrapError(KindInternal, "generate credential id", err)
		}
		credentials = append(credentials, database.VotingCredential{
			ElectionID: electionID,
			UserID:     &userID,
			PublicID:   publicID,
			Weight:     voter.Weight,
		})
	}

	// The batch insert is transactional; a public id collision fails the
	// whole batch and a retry regenerates every id.
	var issueErr error
	for attempt := 0; attempt < 3; attempt++ {
		if issueErr = s.credentials.IssueBatch(credentials); issueErr == nil {
			break
		}
		for i := range credentials {
			publicID, err := newPublicID()
			if err != nil {
				return 0, wrapError(KindInternal, "generate credential id", err)
			}
			credentials[i].PublicID = publicID
		}
	}
	if issueErr != nil {
		return 0, wrapError(KindInternal, "issue credentials", issueErr)
	}

	s.writeAudit(electionID, ActionCredentialsIssued, actorID, map[string]interface{}{
		"count": len(credentials),
	})
	return len(credentials), nil
}

// OpenElection moves a draft election to active. Credentials are issued
// first if no snapshot exists yet.
func (s *Service) OpenElection(electionID int64, actorID string) error {
	election, err := s.GetElection(electionID)
	if err != nil {
		return err
	}
	if election.Status != database.ElectionStatusDraft {
		return newError(KindPolicy, "only a draft election can be opened")
	}

	candidates, err := s.candidates.ListByElection(electionID)
	if err != nil {
		return wrapError(KindInternal, "list candidates", err)
	}
	if len(candidates) == 0 {
		return newError(KindPolicy, "an election needs at least one candidate before opening")
	}

	issued, err := s.credentials.CountByElection(electionID)
	if err != nil {
		return wrapError(KindInternal, "count credentials", err)
	}
	if issued == 0 {
		if _, err := s.IssueCredentials(electionID, actorID); err != nil {
			return err
		}
	}

	if err := s.elections.TransitionStatus(electionID, database.ElectionStatusDraft, database.ElectionStatusActive); err != nil {
		return wrapError(KindPolicy, "open election", err)
	}

	s.log.ChainLogger("election_opened", electionID, ballot.GenesisChainHash(electionID), "chain initialized at genesis")
	s.writeAudit(electionID, ActionElectionOpened, actorID, map[string]interface{}{
		"genesis_hash": ballot.GenesisChainHash(electionID),
	})
	return nil
}

// ExtendEndDatetime pushes an active election's end later. The new end must
// be in the future and later than the current end.
func (s *Service) ExtendEndDatetime(electionID int64, newEnd time.Time, actorID string) error {
	election, err := s.GetElection(electionID)
	if err != nil {
		return err
	}
	if election.Status != database.ElectionStatusActive {
		return newError(KindPolicy, "only an active election can be extended")
	}
	if !newEnd.After(time.Now().UTC()) {
		return newError(KindValidation, "new end datetime must be in the future")
	}

	if err := s.elections.ExtendEndDatetime(electionID, newEnd); err != nil {
		return wrapError(KindValidation, "extend election", err)
	}

	s.writeAudit(electionID, ActionElectionExtended, actorID, map[string]interface{}{
		"previous_end": election.EndDatetime.Format(time.RFC3339),
		"new_end":      newEnd.Format(time.RFC3339),
	})
	return nil
}

// SubmitBallot appends one ballot to the election ledger and returns the
// voter's receipt. A credential that already voted supersedes its earlier
// ballot; the old ballot stays in the chain uncounted.
func (s *Service) SubmitBallot(electionID int64, credentialPublicID string, ranking []int64) (*Receipt, error) {
	election, err := s.GetElection(electionID)
	if err != nil {
		return nil, err
	}
	if election.Status != database.ElectionStatusActive {
		return nil, newError(KindPolicy, "election is not open for voting")
	}
	now := time.Now().UTC()
	if now.Before(election.StartDatetime) {
		return nil, newError(KindPolicy, "voting has not started yet")
	}
	if now.After(election.EndDatetime) {
		return nil, newError(KindPolicy, "voting has ended")
	}

	credential, err := s.credentials.GetByPublicID(electionID, credentialPublicID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(KindPolicy, "unknown voting credential")
	}
	if err != nil {
		return nil, wrapError(KindInternal, "load credential", err)
	}

	candidates, err := s.candidates.ListByElection(electionID)
	if err != nil {
		return nil, wrapError(KindInternal, "list candidates", err)
	}
	sanitized, err := validateRanking(ranking, candidates)
	if err != nil {
		return nil, err
	}

	nonce, err := ballot.NewNonce()
	if err != nil {
		return nil, wrapError(KindInternal, "generate nonce", err)
	}

	rankingJSON, err := json.Marshal(sanitized)
	if err != nil {
		return nil, wrapError(KindInternal, "encode ranking", err)
	}

	record := &database.Ballot{
		ElectionID:         electionID,
		CredentialPublicID: credential.PublicID,
		RankingJSON:        string(rankingJSON),
		Weight:             credential.Weight,
		BallotHash:         ballot.ComputeBallotHash(electionID, credential.PublicID, sanitized, credential.Weight, nonce),
		IsCounted:          true,
	}

	if err := s.ballots.Append(record); err != nil {
		if errors.Is(err, database.ErrLockTimeout) {
			return nil, wrapError(KindTransient, "ledger busy, retry the submission", err)
		}
		var integrityErr *ballot.IntegrityError
		if errors.As(err, &integrityErr) {
			s.log.ChainLogger("chain_violation", electionID, "", integrityErr.Reason)
			return nil, wrapError(KindIntegrity, "ballot ledger integrity violation", err)
		}
		return nil, wrapError(KindInternal, "append ballot", err)
	}

	if err := s.credentials.MarkUsed(credential.ID); err != nil {
		s.log.Error("mark credential used: %v", err)
	}

	s.log.BallotLogger("ballot_submitted", electionID, credential.PublicID, record.BallotHash, "appended to ledger")
	s.writeAudit(electionID, ActionBallotSubmitted, "voter", map[string]interface{}{
		"ballot_hash": record.BallotHash,
		"chain_hash":  record.ChainHash,
	})
	s.maybeRecordQuorum(election)

	return &Receipt{
		ElectionID:         electionID,
		CredentialPublicID: credential.PublicID,
		BallotHash:         record.BallotHash,
		PreviousChainHash:  record.PreviousChainHash,
		ChainHash:          record.ChainHash,
		Nonce:              nonce,
		Ranking:            sanitized,
		Weight:             credential.Weight,
		SubmittedAt:        now,
	}, nil
}

// maybeRecordQuorum writes the quorum_reached audit entry the first time
// turnout crosses both quorum thresholds. Later submissions never repeat it.
func (s *Service) maybeRecordQuorum(election *database.Election) {
	if election.QuorumPct <= 0 {
		return
	}

	status, err := s.computeQuorum(election)
	if err != nil || !status.QuorumMet {
		return
	}

	prior, err := s.audit.GetAuditLogs(1, 0, ActionQuorumReached, &election.ID, nil, nil)
	if err != nil || len(prior) > 0 {
		return
	}

	s.writeAudit(election.ID, ActionQuorumReached, "system", status)
}

// QuorumStatus reports turnout against the quorum. Draft elections have no
// credential snapshot yet, so the eligibility engine provides the
// denominators.
func (s *Service) QuorumStatus(electionID int64) (*tally.QuorumStatus, error) {
	election, err := s.GetElection(electionID)
	if err != nil {
		return nil, err
	}
	return s.computeQuorum(election)
}

func (s *Service) computeQuorum(election *database.Election) (*tally.QuorumStatus, error) {
	var eligibleCount, eligibleWeight int
	if election.Status == database.ElectionStatusDraft {
		voters, err := s.eligibility.EligibleVoters(election)
		if err != nil {
			return nil, wrapError(KindTransient, "membership source unreachable", err)
		}
		for _, voter := range voters {
			eligibleCount++
			eligibleWeight += voter.Weight
		}
	} else {
		var err error
		eligibleCount, eligibleWeight, err = s.credentials.EligibleTotals(election.ID)
		if err != nil {
			return nil, wrapError(KindInternal, "credential totals", err)
		}
	}

	participatingCount, participatingWeight, err := s.ballots.CountedTotals(election.ID)
	if err != nil {
		return nil, wrapError(KindInternal, "ballot totals", err)
	}

	status := tally.ComputeQuorum(election.QuorumPct, eligibleCount, eligibleWeight, participatingCount, participatingWeight)
	return &status, nil
}

// CloseElection ends voting and anonymizes the credential snapshot. The
// chain head at close time goes into the audit trail.
func (s *Service) CloseElection(electionID int64, actorID string) error {
	election, err := s.GetElection(electionID)
	if err != nil {
		return err
	}
	if election.Status != database.ElectionStatusActive {
		return newError(KindPolicy, "only an active election can be closed")
	}

	chainHead, err := s.ballots.LatestChainHeadHash(electionID)
	if err != nil {
		chainHead = ballot.GenesisChainHash(electionID)
	}

	if err := s.elections.TransitionStatus(electionID, database.ElectionStatusActive, database.ElectionStatusClosed); err != nil {
		s.writeAudit(electionID, ActionElectionCloseFail, actorID, map[string]interface{}{
			"error": err.Error(),
		})
		return wrapError(KindPolicy, "close election", err)
	}

	if err := s.credentials.ScrubUserLinks(electionID); err != nil {
		s.writeAudit(electionID, ActionElectionCloseFail, actorID, map[string]interface{}{
			"error": "anonymization failed: " + err.Error(),
		})
		return wrapError(KindInternal, "anonymize credentials", err)
	}
	if err := s.elections.MarkAnonymized(electionID); err != nil {
		return wrapError(KindInternal, "mark anonymized", err)
	}

	s.log.ChainLogger("election_closed", electionID, chainHead, "chain frozen")
	s.writeAudit(electionID, ActionElectionClosed, actorID, map[string]interface{}{
		"chain_head": chainHead,
	})
	return nil
}

// TallyElection runs the count over the final ballots of a closed election
// and persists the result. A failed tally is audited and the election stays
// closed, so the operation is retryable.
func (s *Service) TallyElection(electionID int64, actorID string) (*tally.Result, error) {
	election, err := s.GetElection(electionID)
	if err != nil {
		return nil, err
	}
	if election.Status != database.ElectionStatusClosed {
		return nil, newError(KindPolicy, "only a closed election can be tallied")
	}

	candidates, err := s.candidates.ListByElection(electionID)
	if err != nil {
		return nil, wrapError(KindInternal, "list candidates", err)
	}
	tallyCandidates := make([]tally.Candidate, 0, len(candidates))
	for _, c := range candidates {
		tallyCandidates = append(tallyCandidates, tally.Candidate{
			ID:           c.ID,
			Name:         c.Name,
			TiebreakUUID: c.TiebreakUUID,
		})
	}

	ballots, err := s.loadTallyBallots(electionID)
	if err != nil {
		return nil, err
	}

	groups, err := s.loadExclusionGroups(electionID, candidates)
	if err != nil {
		return nil, err
	}

	result, err := tally.Tally(election.Seats, ballots, tallyCandidates, groups)
	if err != nil {
		s.writeAudit(electionID, ActionTallyFailed, actorID, map[string]interface{}{
			"error": err.Error(),
		})
		var validationErr *tally.ValidationError
		if errors.As(err, &validationErr) {
			return nil, wrapError(KindValidation, "ballot set failed validation", err)
		}
		return nil, wrapError(KindInternal, "tabulate", err)
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, wrapError(KindInternal, "encode result", err)
	}
	if err := s.elections.SetResult(electionID, string(resultJSON)); err != nil {
		s.writeAudit(electionID, ActionTallyFailed, actorID, map[string]interface{}{
			"error": err.Error(),
		})
		return nil, wrapError(KindPolicy, "persist result", err)
	}

	for i := range result.Rounds {
		s.log.TallyLogger("tally_round", electionID, result.Rounds[i].Iteration, result.Rounds[i].SummaryText)
		s.writeAudit(electionID, ActionTallyRound, actorID, result.Rounds[i])
	}
	s.writeAudit(electionID, ActionTallyCompleted, actorID, map[string]interface{}{
		"elected": result.Elected,
		"quota":   result.Quota,
		"rounds":  len(result.Rounds),
	})

	return result, nil
}

func (s *Service) loadTallyBallots(electionID int64) ([]tally.Ballot, error) {
	rows, err := s.ballots.ListCounted(electionID)
	if err != nil {
		return nil, wrapError(KindInternal, "list ballots", err)
	}

	ballots := make([]tally.Ballot, 0, len(rows))
	for i := range rows {
		var ranking []int64
		if err := json.Unmarshal([]byte(rows[i].RankingJSON), &ranking); err != nil {
			return nil, wrapError(KindIntegrity, fmt.Sprintf("ballot %s has malformed ranking", rows[i].BallotHash), err)
		}
		ballots = append(ballots, tally.Ballot{Ranking: ranking, Weight: rows[i].Weight})
	}
	return ballots, nil
}

func (s *Service) loadExclusionGroups(electionID int64, candidates []database.Candidate) ([]tally.ExclusionGroup, error) {
	rows, err := s.candidates.ListExclusionGroups(electionID)
	if err != nil {
		return nil, wrapError(KindInternal, "list exclusion groups", err)
	}

	groups := make([]tally.ExclusionGroup, 0, len(rows))
	for _, g := range rows {
		group := tally.ExclusionGroup{
			PublicID:   strconv.FormatInt(g.ID, 10),
			Name:       g.Name,
			MaxElected: g.MaxElected,
		}
		for _, c := range candidates {
			if c.ExclusionGroupID != nil && *c.ExclusionGroupID == g.ID {
				group.CandidateIDs = append(group.CandidateIDs, c.ID)
			}
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// Results returns the persisted tally of a tallied election
func (s *Service) Results(electionID int64) (*tally.Result, error) {
	election, err := s.GetElection(electionID)
	if err != nil {
		return nil, err
	}
	if election.Status != database.ElectionStatusTallied || election.ResultJSON == nil {
		return nil, newError(KindPolicy, "election has not been tallied")
	}

	var result tally.Result
	if err := json.Unmarshal([]byte(*election.ResultJSON), &result); err != nil {
		return nil, wrapError(KindInternal, "decode stored result", err)
	}
	return &result, nil
}

// SankeyData projects the stored tally into vote-flow display data
func (s *Service) SankeyData(electionID int64) (*tally.SankeyData, error) {
	result, err := s.Results(electionID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.candidates.ListByElection(electionID)
	if err != nil {
		return nil, wrapError(KindInternal, "list candidates", err)
	}
	names := make(map[int64]string, len(candidates))
	for _, c := range candidates {
		names[c.ID] = c.Name
	}

	votesCast, _, err := s.ballots.CountedTotals(electionID)
	if err != nil {
		return nil, wrapError(KindInternal, "ballot totals", err)
	}

	return tally.BuildSankeyFlows(result, names, votesCast), nil
}

// ChainExport rebuilds and verifies the full ballot chain for offline
// verification. Any structural defect aborts the export.
func (s *Service) ChainExport(electionID int64) (*ballot.Export, error) {
	if _, err := s.GetElection(electionID); err != nil {
		return nil, err
	}

	links, err := s.ballots.ChainLinks(electionID)
	if err != nil {
		return nil, wrapError(KindInternal, "load chain links", err)
	}

	genesis := ballot.GenesisChainHash(electionID)
	ordered, err := ballot.ReconstructChainOrder(links, genesis)
	if err != nil {
		s.log.ChainLogger("chain_violation", electionID, "", err.Error())
		return nil, wrapError(KindIntegrity, "chain reconstruction failed", err)
	}

	return &ballot.Export{
		ElectionID:  electionID,
		GenesisHash: genesis,
		ChainHead:   ballot.HeadHash(ordered, genesis),
		Ballots:     ordered,
	}, nil
}

// PublicBallots is the full public ballots export, superseded ballots
// included, with rankings resolved to candidate names.
func (s *Service) PublicBallots(electionID int64) ([]PublicBallot, error) {
	if _, err := s.GetElection(electionID); err != nil {
		return nil, err
	}

	rows, err := s.ballots.ListAll(electionID)
	if err != nil {
		return nil, wrapError(KindInternal, "list ballots", err)
	}

	candidates, err := s.candidates.ListByElection(electionID)
	if err != nil {
		return nil, wrapError(KindInternal, "list candidates", err)
	}
	names := make(map[int64]string, len(candidates))
	for _, c := range candidates {
		names[c.ID] = c.Name
	}

	export := make([]PublicBallot, 0, len(rows))
	for i := range rows {
		var ranking []int64
		if err := json.Unmarshal([]byte(rows[i].RankingJSON), &ranking); err != nil {
			return nil, wrapError(KindIntegrity, fmt.Sprintf("ballot %s has malformed ranking", rows[i].BallotHash), err)
		}
		rankingNames := make([]string, 0, len(ranking))
		for _, cid := range ranking {
			if name, ok := names[cid]; ok {
				rankingNames = append(rankingNames, name)
			} else {
				rankingNames = append(rankingNames, strconv.FormatInt(cid, 10))
			}
		}

		export = append(export, PublicBallot{
			Position:          i + 1,
			BallotHash:        rows[i].BallotHash,
			PreviousChainHash: rows[i].PreviousChainHash,
			ChainHash:         rows[i].ChainHash,
			Ranking:           rankingNames,
			Weight:            rows[i].Weight,
			IsCounted:         rows[i].IsCounted,
			Superseded:        rows[i].SupersededByID != nil,
			CreatedAt:         rows[i].CreatedAt,
		})
	}
	return export, nil
}

// LookupReceipt answers a public receipt query. Only existence, submission
// time, and counted state are revealed.
func (s *Service) LookupReceipt(electionID int64, ballotHash string) (*ReceiptStatus, error) {
	if _, err := s.GetElection(electionID); err != nil {
		return nil, err
	}

	record, err := s.ballots.GetByBallotHash(electionID, ballotHash)
	if errors.Is(err, sql.ErrNoRows) {
		return &ReceiptStatus{Exists: false}, nil
	}
	if err != nil {
		return nil, wrapError(KindInternal, "receipt lookup", err)
	}

	submittedAt := record.CreatedAt
	return &ReceiptStatus{
		Exists:      true,
		SubmittedAt: &submittedAt,
		IsCounted:   record.IsCounted,
		Superseded:  record.SupersededByID != nil,
	}, nil
}

// PublicAuditExport returns the public slice of the audit trail plus the
// tabulation algorithm identifier.
func (s *Service) PublicAuditExport(electionID int64, limit, offset int) (*AuditExport, error) {
	if _, err := s.GetElection(electionID); err != nil {
		return nil, err
	}

	logs, err := s.audit.GetAuditLogsByElection(electionID, limit, offset)
	if err != nil {
		return nil, wrapError(KindInternal, "load audit logs", err)
	}

	entries := make([]AuditEntry, 0, len(logs))
	for _, entry := range logs {
		if !publicAuditActions[entry.Action] {
			continue
		}
		entries = append(entries, AuditEntry{
			Action:    entry.Action,
			Details:   entry.Details,
			CreatedAt: entry.CreatedAt,
		})
	}

	return &AuditExport{
		ElectionID: electionID,
		Algorithm:  "meek",
		Entries:    entries,
	}, nil
}

// EligibilityStatus builds both eligibility views for an election
func (s *Service) EligibilityStatus(electionID int64) (*EligibilityReport, error) {
	election, err := s.GetElection(electionID)
	if err != nil {
		return nil, err
	}

	eligible, err := s.eligibility.EligibleVoters(election)
	if err != nil {
		return nil, wrapError(KindTransient, "membership source unreachable", err)
	}
	ineligible, err := s.eligibility.IneligibleVotersWithReasons(election)
	if err != nil {
		return nil, wrapError(KindTransient, "membership source unreachable", err)
	}

	return &EligibilityReport{Eligible: eligible, Ineligible: ineligible}, nil
}

// Status assembles the live status frame pushed over the websocket feed
func (s *Service) Status(electionID int64) (*LiveStatus, error) {
	election, err := s.GetElection(electionID)
	if err != nil {
		return nil, err
	}

	chainHead, err := s.ballots.LatestChainHeadHash(electionID)
	if err != nil {
		chainHead = ballot.GenesisChainHash(electionID)
	}

	total, err := s.ballots.CountByElection(electionID)
	if err != nil {
		return nil, wrapError(KindInternal, "count ballots", err)
	}
	finalCount, _, err := s.ballots.CountedTotals(electionID)
	if err != nil {
		return nil, wrapError(KindInternal, "ballot totals", err)
	}

	status := &LiveStatus{
		ElectionID:   electionID,
		Status:       election.Status,
		ChainHead:    chainHead,
		BallotsTotal: total,
		BallotsFinal: finalCount,
		ObservedAt:   time.Now().UTC(),
	}
	if election.QuorumPct > 0 {
		if quorum, err := s.computeQuorum(election); err == nil {
			status.Quorum = quorum
		}
	}
	return status, nil
}

// writeAudit persists one audit entry with a JSON details payload. Audit
// failures are logged, never fatal to the operation they describe.
func (s *Service) writeAudit(electionID int64, action, actorID string, details interface{}) {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte("{}")
	}
	entry := &database.AuditLog{
		ElectionID: &electionID,
		Action:     action,
		ActorID:    actorID,
		Details:    string(payload),
	}
	if err := s.audit.InsertAuditLog(entry); err != nil {
		s.log.Error("audit write failed for %s: %v", action, err)
	}
}

// newPublicID generates a 43-character urlsafe credential identifier
func newPublicID() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// validateRanking rejects rankings naming unknown or repeated candidate ids.
// The voter gets the error instead of a receipt for a rewritten ballot. The
// returned slice is never nil; an empty ranking is a valid abstention.
func validateRanking(ranking []int64, candidates []database.Candidate) ([]int64, error) {
	valid := make(map[int64]bool, len(candidates))
	for _, c := range candidates {
		valid[c.ID] = true
	}

	seen := make(map[int64]bool, len(ranking))
	for _, cid := range ranking {
		if !valid[cid] {
			return nil, newError(KindValidation, fmt.Sprintf("ranking names unknown candidate %d", cid))
		}
		if seen[cid] {
			return nil, newError(KindValidation, fmt.Sprintf("ranking names candidate %d more than once", cid))
		}
		seen[cid] = true
	}

	if ranking == nil {
		return []int64{}, nil
	}
	return ranking, nil
}
