package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"election-ledger/internal/api/interfaces"
	"election-ledger/internal/api/models"
	"election-ledger/internal/database"
)

// parseElectionID extracts and validates the :id path parameter
func parseElectionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		respondError(c, models.NewAPIError(models.ErrCodeInvalidRequest,
			"Invalid election id", http.StatusBadRequest))
		return 0, false
	}
	return id, true
}

func electionResponse(e *database.Election, candidates []database.Candidate) models.ElectionResponse {
	resp := models.ElectionResponse{
		ID:            e.ID,
		Name:          e.Name,
		Description:   e.Description,
		Seats:         e.Seats,
		StartDatetime: e.StartDatetime.Unix(),
		EndDatetime:   e.EndDatetime.Unix(),
		Status:        e.Status,
		QuorumPct:     e.QuorumPct,
		Anonymized:    e.Anonymized,
	}
	for _, candidate := range candidates {
		resp.Candidates = append(resp.Candidates, models.CandidateInfo{
			ID:        candidate.ID,
			Name:      candidate.Name,
			Statement: candidate.Statement,
		})
	}
	return resp
}

// ListElections returns elections newest first
func ListElections(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paginationParams(c, 50)

		elections, err := services.ElectionService().ListElections(limit, offset)
		if err != nil {
			respondDomainError(c, services, err)
			return
		}

		resp := make([]models.ElectionResponse, 0, len(elections))
		for i := range elections {
			resp = append(resp, electionResponse(&elections[i], nil))
		}
		respondOK(c, resp)
	}
}

// GetElectionDetails returns one election with its candidates
func GetElectionDetails(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		election, err := services.ElectionService().GetElection(electionID)
		if err != nil {
			respondDomainError(c, services, err)
			return
		}

		candidates, err := services.ElectionService().Candidates(electionID)
		if err != nil {
			respondDomainError(c, services, err)
			return
		}

		respondOK(c, electionResponse(election, candidates))
	}
}

// GetElectionResults returns the persisted tally of a tallied election
func GetElectionResults(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		result, err := services.ElectionService().Results(electionID)
		if err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, result)
	}
}

// GetSankeyData returns the vote-flow projection of a tallied election
func GetSankeyData(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		data, err := services.ElectionService().SankeyData(electionID)
		if err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, data)
	}
}

// GetQuorumStatus reports turnout against the election's quorum
func GetQuorumStatus(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		status, err := services.ElectionService().QuorumStatus(electionID)
		if err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, status)
	}
}

// CreateElection creates a new draft election
func CreateElection(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateElectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewAPIError(models.ErrCodeInvalidRequest,
				"Invalid request format: "+err.Error(), http.StatusBadRequest))
			return
		}

		election := &database.Election{
			Name:          req.Name,
			Description:   req.Description,
			Seats:         req.Seats,
			StartDatetime: req.StartDatetime,
			EndDatetime:   req.EndDatetime,
			QuorumPct:     req.QuorumPct,
		}
		if err := services.ElectionService().CreateElection(election, actorID(c)); err != nil {
			respondDomainError(c, services, err)
			return
		}

		services.GetLogger().Info("Election created: %s (id %d)", election.Name, election.ID)
		c.JSON(http.StatusCreated, models.BaseResponse{
			Success:   true,
			Data:      electionResponse(election, nil),
			Timestamp: time.Now().Unix(),
		})
	}
}

// NominateCandidate adds a candidate to a draft election
func NominateCandidate(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		var req models.NominateCandidateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewAPIError(models.ErrCodeInvalidRequest,
				"Invalid request format: "+err.Error(), http.StatusBadRequest))
			return
		}

		candidate := &database.Candidate{
			ElectionID:        electionID,
			Name:              req.Name,
			Statement:         req.Statement,
			UserID:            req.UserID,
			NominatedByUserID: req.NominatedByUserID,
			ExclusionGroupID:  req.ExclusionGroupID,
		}
		if err := services.ElectionService().NominateCandidate(candidate, actorID(c)); err != nil {
			respondDomainError(c, services, err)
			return
		}

		c.JSON(http.StatusCreated, models.BaseResponse{
			Success: true,
			Data: models.CandidateInfo{
				ID:        candidate.ID,
				Name:      candidate.Name,
				Statement: candidate.Statement,
			},
			Timestamp: time.Now().Unix(),
		})
	}
}

// CreateExclusionGroup defines a cap on how many candidates from one group
// may be elected
func CreateExclusionGroup(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		var req models.CreateExclusionGroupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewAPIError(models.ErrCodeInvalidRequest,
				"Invalid request format: "+err.Error(), http.StatusBadRequest))
			return
		}

		group := &database.ExclusionGroup{
			ElectionID: electionID,
			Name:       req.Name,
			MaxElected: req.MaxElected,
		}
		if err := services.ElectionService().CreateExclusionGroup(group, actorID(c)); err != nil {
			respondDomainError(c, services, err)
			return
		}

		c.JSON(http.StatusCreated, models.BaseResponse{
			Success:   true,
			Data:      group,
			Timestamp: time.Now().Unix(),
		})
	}
}

// IssueCredentials freezes the eligibility snapshot into voting credentials
func IssueCredentials(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		count, err := services.ElectionService().IssueCredentials(electionID, actorID(c))
		if err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, gin.H{"issued": count})
	}
}

// OpenElection transitions a draft election to active
func OpenElection(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		if err := services.ElectionService().OpenElection(electionID, actorID(c)); err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, gin.H{"status": database.ElectionStatusActive})
	}
}

// ExtendElection pushes an active election's end datetime later
func ExtendElection(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		var req models.ExtendElectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewAPIError(models.ErrCodeInvalidRequest,
				"Invalid request format: "+err.Error(), http.StatusBadRequest))
			return
		}

		if err := services.ElectionService().ExtendEndDatetime(electionID, req.NewEndDatetime, actorID(c)); err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, gin.H{"new_end_datetime": req.NewEndDatetime.Unix()})
	}
}

// CloseElection ends voting and anonymizes the credential snapshot
func CloseElection(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		if err := services.ElectionService().CloseElection(electionID, actorID(c)); err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, gin.H{"status": database.ElectionStatusClosed})
	}
}

// TallyElection runs the count over a closed election
func TallyElection(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		result, err := services.ElectionService().TallyElection(electionID, actorID(c))
		if err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, result)
	}
}

// GetEligibilityReport returns both eligibility views for an election
func GetEligibilityReport(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		report, err := services.ElectionService().EligibilityStatus(electionID)
		if err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, report)
	}
}
