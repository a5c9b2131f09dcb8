package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"election-ledger/internal/api/interfaces"
	"election-ledger/internal/api/models"
)

// respondOK writes a successful BaseResponse envelope
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, models.BaseResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().Unix(),
		RequestID: c.GetString("request_id"),
	})
}

// respondError writes a structured API error
func respondError(c *gin.Context, apiErr *models.APIError) {
	c.JSON(apiErr.StatusCode, models.BaseResponse{
		Success: false,
		Error: &models.ErrorInfo{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
		Timestamp: time.Now().Unix(),
		RequestID: c.GetString("request_id"),
	})
}

// respondDomainError logs and maps a domain error onto the wire
func respondDomainError(c *gin.Context, services interfaces.Services, err error) {
	apiErr := models.FromDomainError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		services.GetLogger().Error("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	respondError(c, apiErr)
}

// actorID identifies the authenticated caller for the audit trail
func actorID(c *gin.Context) string {
	if userID := c.GetString("user_id"); userID != "" {
		return userID
	}
	return "anonymous"
}

func paginationParams(c *gin.Context, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := parsePositiveInt(c.Query("limit")); err == nil && v <= 500 {
		limit = v
	}
	if v, err := parsePositiveInt(c.Query("offset")); err == nil {
		offset = v
	}
	return limit, offset
}

// SubmitBallot appends a voter's ballot to the election ledger and returns
// the verification receipt. Submitting again with the same credential
// supersedes the earlier ballot.
func SubmitBallot(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		var req models.SubmitBallotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewAPIError(models.ErrCodeInvalidRequest,
				"Invalid request format: "+err.Error(), http.StatusBadRequest))
			return
		}

		receipt, err := services.ElectionService().SubmitBallot(electionID, req.CredentialPublicID, req.Ranking)
		if err != nil {
			respondDomainError(c, services, err)
			return
		}

		c.JSON(http.StatusCreated, models.BaseResponse{
			Success:   true,
			Message:   "Ballot recorded. Keep the receipt to verify your ballot later.",
			Data:      receipt,
			Timestamp: time.Now().Unix(),
			RequestID: c.GetString("request_id"),
		})
	}
}

// LookupReceipt answers whether a ballot hash exists in the ledger. Only
// existence, submission time, and counted state are revealed; this endpoint
// sits behind a tight rate limit.
func LookupReceipt(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		var req models.ReceiptLookupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewAPIError(models.ErrCodeInvalidRequest,
				"Invalid request format: "+err.Error(), http.StatusBadRequest))
			return
		}

		status, err := services.ElectionService().LookupReceipt(electionID, req.BallotHash)
		if err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, status)
	}
}
