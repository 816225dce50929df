package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/workchain-backend/internal/config"
	"github.com/ignatzorin/workchain-backend/internal/http/handlers"
	"github.com/ignatzorin/workchain-backend/internal/http/middleware"
	"github.com/ignatzorin/workchain-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	jobHandler *handlers.JobHandler,
	disputeHandler *handlers.DisputeHandler,
	escrowHandler *handlers.EscrowHandler,
	profileHandler *handlers.ProfileHandler,
	ratingHandler *handlers.RatingHandler,
	withdrawalHandler *handlers.WithdrawalHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/jobs", jobHandler.ListJobs)
	api.GET("/jobs/:id", middleware.UUIDValidator("id"), jobHandler.GetJob)
	api.GET("/jobs/:id/history", middleware.UUIDValidator("id"), jobHandler.JobHistory)
	api.GET("/jobs/:id/escrow", middleware.UUIDValidator("id"), escrowHandler.GetJobEscrow)
	api.GET("/jobs/:id/dispute", middleware.UUIDValidator("id"), disputeHandler.GetJobDispute)
	api.GET("/jobs/:id/ratings", middleware.UUIDValidator("id"), ratingHandler.GetJobRating)
	api.GET("/disputes", disputeHandler.ListDisputes)
	api.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.GetDispute)
	api.GET("/disputes/:id/votes", middleware.UUIDValidator("id"), disputeHandler.ListVotes)
	api.GET("/disputes/:id/tally", middleware.UUIDValidator("id"), disputeHandler.GetTally)
	api.GET("/profiles/top", profileHandler.ListTop)
	api.GET("/profiles/:address", profileHandler.GetProfile)
	api.GET("/profiles/:address/history", profileHandler.GetHistory)
	api.GET("/profiles/:address/skills/verifications", profileHandler.ListSkillVerifications)
	api.GET("/ratings/:address", ratingHandler.ListRatings)
	api.GET("/ratings/:address/aggregates", ratingHandler.GetAggregates)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.POST("/jobs", jobHandler.CreateJob)
		protected.POST("/jobs/:id/apply", middleware.UUIDValidator("id"), jobHandler.Apply)
		protected.GET("/jobs/:id/applications", middleware.UUIDValidator("id"), jobHandler.ListApplications)
		protected.POST("/jobs/:id/accept", middleware.UUIDValidator("id"), jobHandler.AcceptApplication)
		protected.POST("/jobs/:id/complete", middleware.UUIDValidator("id"), jobHandler.MarkComplete)
		protected.POST("/jobs/:id/pay", middleware.UUIDValidator("id"), jobHandler.ApproveAndPay)
		protected.POST("/jobs/:id/expire", middleware.UUIDValidator("id"), jobHandler.ExpireJob)
		protected.POST("/jobs/:id/dispute", middleware.UUIDValidator("id"), disputeHandler.RaiseDispute)
		protected.POST("/jobs/:id/ratings", middleware.UUIDValidator("id"), ratingHandler.CreateRating)

		protected.POST("/disputes/:id/votes", middleware.UUIDValidator("id"), disputeHandler.CastVote)
		protected.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.Resolve)

		protected.GET("/balance", escrowHandler.GetBalance)
		protected.POST("/balance/deposit", escrowHandler.Deposit)
		protected.GET("/balance/transactions", escrowHandler.ListTransactions)

		protected.POST("/withdrawals", withdrawalHandler.CreateWithdrawal)
		protected.GET("/withdrawals", withdrawalHandler.ListWithdrawals)

		protected.GET("/profiles/me", profileHandler.GetMyProfile)
		protected.PUT("/profiles/me/skills", profileHandler.UpdateSkills)
		protected.POST("/profiles/:address/skills/verify", profileHandler.VerifySkill)

		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.GET("/notifications/unread", notificationHandler.CountUnread)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllRead)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkRead)
	}

	return r
}
