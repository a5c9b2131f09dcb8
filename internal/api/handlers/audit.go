package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"election-ledger/internal/api/interfaces"
	"election-ledger/internal/api/models"
)

func parsePositiveInt(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, strconv.ErrRange
	}
	return v, nil
}

// GetPublicBallots returns the full ballots export, superseded ballots
// included, for independent recount and chain verification.
func GetPublicBallots(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		ballots, err := services.ElectionService().PublicBallots(electionID)
		if err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, ballots)
	}
}

// GetChainExport returns the verified hash chain for offline verification
func GetChainExport(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		export, err := services.ElectionService().ChainExport(electionID)
		if err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, export)
	}
}

// GetPublicAuditLog returns the public slice of an election's audit trail
func GetPublicAuditLog(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}
		limit, offset := paginationParams(c, 200)

		export, err := services.ElectionService().PublicAuditExport(electionID, limit, offset)
		if err != nil {
			respondDomainError(c, services, err)
			return
		}
		respondOK(c, export)
	}
}

// GetAuditLogs returns filtered audit log entries for administrators
func GetAuditLogs(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paginationParams(c, 100)
		action := c.Query("action")

		var electionID *int64
		if raw := c.Query("election_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				respondError(c, models.NewAPIError(models.ErrCodeInvalidRequest,
					"Invalid election_id filter", http.StatusBadRequest))
				return
			}
			electionID = &id
		}

		var startTime, endTime *time.Time
		if raw := c.Query("start_time"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				respondError(c, models.NewAPIError(models.ErrCodeInvalidRequest,
					"start_time must be RFC3339", http.StatusBadRequest))
				return
			}
			startTime = &t
		}
		if raw := c.Query("end_time"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				respondError(c, models.NewAPIError(models.ErrCodeInvalidRequest,
					"end_time must be RFC3339", http.StatusBadRequest))
				return
			}
			endTime = &t
		}

		logs, err := services.AuditLogRepository().GetAuditLogs(limit, offset, action, electionID, startTime, endTime)
		if err != nil {
			services.GetLogger().Error("Failed to fetch audit logs: %v", err)
			respondError(c, models.NewAPIError(models.ErrCodeInternalError,
				"Failed to fetch audit logs", http.StatusInternalServerError))
			return
		}
		respondOK(c, logs)
	}
}
