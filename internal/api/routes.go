package api

import (
	"github.com/gin-gonic/gin"

	"election-ledger/internal/api/handlers"
	"election-ledger/internal/api/interfaces"
	"election-ledger/internal/api/middlewares"
)

// SetupRoutes configures all API routes with proper middleware
func SetupRoutes(router *gin.Engine, services interfaces.Services) {
	cfg := services.GetConfig()

	// Global middleware
	router.Use(middlewares.Recovery())
	router.Use(middlewares.CORS(cfg.API.CORS))
	router.Use(middlewares.Security())
	router.Use(middlewares.RequestLogging(services.GetLogger()))
	router.Use(middlewares.RateLimit(cfg.API.RateLimit))

	// Health check (no auth required)
	router.GET("/health", handlers.HealthCheck(services))
	router.GET("/ping", handlers.HealthCheck(services))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		setupPublicRoutes(v1, services)
		setupAdminRoutes(v1, services)
		setupWebSocketRoutes(v1, services)
	}
}

// setupPublicRoutes configures routes that don't require authentication.
// Everything a voter or auditor needs is public: ballots are pseudonymous
// and the chain and audit exports are published for independent checking.
func setupPublicRoutes(rg *gin.RouterGroup, services interfaces.Services) {
	cfg := services.GetConfig()

	rg.POST("/auth/login", handlers.Login(services))

	elections := rg.Group("/elections")
	{
		elections.GET("", handlers.ListElections(services))
		elections.GET("/:id", handlers.GetElectionDetails(services))
		elections.GET("/:id/results", handlers.GetElectionResults(services))
		elections.GET("/:id/results/sankey", handlers.GetSankeyData(services))
		elections.GET("/:id/quorum", handlers.GetQuorumStatus(services))

		// Published integrity artifacts
		elections.GET("/:id/ballots", handlers.GetPublicBallots(services))
		elections.GET("/:id/chain", handlers.GetChainExport(services))
		elections.GET("/:id/audit", handlers.GetPublicAuditLog(services))

		// Vote submission authenticates by credential public id, not session
		elections.POST("/:id/vote", handlers.SubmitBallot(services))

		// Tight per-IP limit to discourage receipt probing
		elections.POST("/:id/receipt",
			middlewares.ReceiptLookupLimit(cfg.API.ReceiptLookupLimit, cfg.API.ReceiptLookupWindow),
			handlers.LookupReceipt(services))
	}
}

// setupAdminRoutes configures admin-only routes
func setupAdminRoutes(rg *gin.RouterGroup, services interfaces.Services) {
	admin := rg.Group("/admin")
	admin.Use(middlewares.AuthRequired(services))
	admin.Use(middlewares.AdminRequired(services))
	{
		elections := admin.Group("/elections")
		{
			elections.POST("", handlers.CreateElection(services))
			elections.POST("/:id/candidates", handlers.NominateCandidate(services))
			elections.POST("/:id/exclusion-groups", handlers.CreateExclusionGroup(services))
			elections.POST("/:id/credentials", handlers.IssueCredentials(services))
			elections.POST("/:id/open", handlers.OpenElection(services))
			elections.POST("/:id/extend", handlers.ExtendElection(services))
			elections.POST("/:id/close", handlers.CloseElection(services))
			elections.POST("/:id/tally", handlers.TallyElection(services))
			elections.GET("/:id/eligibility", handlers.GetEligibilityReport(services))
		}

		admin.GET("/audit/logs", handlers.GetAuditLogs(services))
	}
}

// setupWebSocketRoutes configures WebSocket endpoints
func setupWebSocketRoutes(rg *gin.RouterGroup, services interfaces.Services) {
	ws := rg.Group("/ws")
	{
		ws.GET("/elections/:id/status", handlers.ElectionStatusWebSocket(services))
	}
}
