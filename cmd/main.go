package main

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"trust-service/internal/authz"
	"trust-service/internal/handler"
	"trust-service/internal/middleware"
	"trust-service/internal/model"
	"trust-service/internal/principal"
	"trust-service/pkg/config"
	"trust-service/pkg/database"
	"trust-service/pkg/jwtutil"
	"trust-service/pkg/logger"
	"trust-service/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting trust service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	if err := database.MigrateModels(
		&model.User{},
		&model.Business{},
		&model.BusinessMembership{},
		&model.Lead{},
		&model.Conversation{},
		&model.Message{},
		&model.ClaimRequest{},
		&model.AdvisorNote{},
		&model.AdvisorNoteRevision{},
		&model.Review{},
		&model.ReviewDispute{},
		&model.ReviewReply{},
		&model.TrustDisclosure{},
		&model.TrustConsent{},
		&model.Listing{},
		&model.AuditEvent{},
	); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database migrations complete")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Wire the policy engine: resolver, ownership index, enforcement point
	resolver := principal.NewResolver(principal.NewGormMembershipSource(db))
	enforcer := authz.New(db, authz.NewOwnershipIndex(db))
	handler.Init(enforcer)
	log.Info("Policy engine initialized")

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/login", handler.Login)
	auth.POST("/register", handler.Register)

	// API routes - every request carries a resolved principal; anonymous
	// requests flow through and the policy table decides what they see.
	api := e.Group("/api")
	api.Use(middleware.PrincipalMiddleware(resolver))

	// Listings: public read, gated badge writes, admin disclosures
	api.GET("/listings/:id", handler.GetListing)
	api.POST("/listings", handler.CreateListing, middleware.RequireAuthenticated)
	api.PATCH("/listings/:id/badges", handler.UpdateBadge, middleware.RequireAuthenticated)
	api.POST("/listings/:id/disclosures", handler.ActivateDisclosure, middleware.RequireAuthenticated)
	api.POST("/disclosures/:disclosure_id/deactivate", handler.DeactivateDisclosure, middleware.RequireAuthenticated)

	// Leads
	api.POST("/leads", handler.CreateLead, middleware.RequireAuthenticated)
	api.GET("/leads/:id", handler.GetLead, middleware.RequireAuthenticated)
	api.GET("/businesses/:business_id/leads", handler.ListBusinessLeads, middleware.RequireAuthenticated)
	api.PATCH("/leads/:id/status", handler.UpdateLeadStatus, middleware.RequireAuthenticated)

	// Conversations
	api.POST("/conversations", handler.CreateConversation, middleware.RequireAuthenticated)
	api.GET("/conversations/:id", handler.GetConversation, middleware.RequireAuthenticated)
	api.POST("/conversations/:id/messages", handler.AppendMessage, middleware.RequireAuthenticated)

	// Claim requests
	api.POST("/claims", handler.CreateClaim, middleware.RequireAuthenticated)
	api.GET("/claims/:id", handler.GetClaim, middleware.RequireAuthenticated)
	api.POST("/claims/:id/decision", handler.DecideClaim, middleware.RequireAuthenticated)

	// Advisor notes
	api.POST("/notes", handler.CreateNote, middleware.RequireAuthenticated)
	api.GET("/notes/:id", handler.GetNote, middleware.RequireAuthenticated)
	api.PATCH("/notes/:id", handler.UpdateNote, middleware.RequireAuthenticated)

	// Reviews, disputes, replies: published content is public
	api.POST("/reviews", handler.CreateReview, middleware.RequireAuthenticated)
	api.GET("/reviews/:id", handler.GetReview)
	api.POST("/reviews/:id/moderate", handler.ModerateReview, middleware.RequireAuthenticated)
	api.POST("/reviews/:id/disputes", handler.CreateDispute, middleware.RequireAuthenticated)
	api.GET("/disputes/:dispute_id", handler.GetDispute, middleware.RequireAuthenticated)
	api.POST("/reviews/:id/replies", handler.CreateReply, middleware.RequireAuthenticated)
	api.GET("/replies/:reply_id", handler.GetReply)

	// Trust consents
	api.POST("/consents", handler.RecordConsent, middleware.RequireAuthenticated)
	api.GET("/consents", handler.ListMyConsents, middleware.RequireAuthenticated)

	// Business memberships
	api.POST("/memberships", handler.InviteMember, middleware.RequireAuthenticated)
	api.POST("/memberships/:id/accept", handler.AcceptInvitation, middleware.RequireAuthenticated)
	api.POST("/memberships/:id/revoke", handler.RevokeMembership, middleware.RequireAuthenticated)

	// Users
	api.GET("/users/:id", handler.GetUser, middleware.RequireAuthenticated)
	api.PATCH("/users/:id/role", handler.ChangeRole, middleware.RequireAuthenticated)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
