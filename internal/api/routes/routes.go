package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/escrow-service/escrow_service/internal/api/handlers"
	"github.com/escrow-service/escrow_service/internal/api/middleware"
	"github.com/escrow-service/escrow_service/internal/domain/entities"
	"github.com/escrow-service/escrow_service/internal/domain/services/funding"
	"github.com/escrow-service/escrow_service/internal/domain/services/settlement"
	"github.com/escrow-service/escrow_service/internal/domain/services/stats"
	"github.com/escrow-service/escrow_service/internal/infrastructure/cache"
	"github.com/escrow-service/escrow_service/internal/infrastructure/config"
	"github.com/escrow-service/escrow_service/pkg/logger"
	"github.com/escrow-service/escrow_service/pkg/tracing"
)

// Deps carries everything the router needs.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *sqlx.DB
	Redis      cache.RedisClient
	Settlement *settlement.Service
	Funding    *funding.Service
	Stats      *stats.Service
}

// SetupRoutes configures all application routes
func SetupRoutes(deps *Deps) *gin.Engine {
	if deps.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// request bodies validate token types at the binding layer
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("tokentype", func(fl validator.FieldLevel) bool {
			return entities.TokenType(fl.Field().String()).Valid()
		})
	}

	// Global middleware - order matters
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(deps.Config.Server.RateLimitPerMin))
	router.Use(middleware.SecurityHeaders())

	settlementHandlers := handlers.NewSettlementHandlers(deps.Settlement, deps.Logger)
	statsHandlers := handlers.NewStatsHandlers(deps.Stats, deps.Logger)
	escrowHandlers := handlers.NewEscrowHandlers(deps.Funding, deps.Logger)
	healthHandlers := handlers.NewHealthHandlers(deps.DB, deps.Redis)

	// Health checks and metrics (no auth required)
	router.GET("/health", healthHandlers.Health)
	router.GET("/ready", healthHandlers.Ready)
	router.GET("/live", healthHandlers.Live)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Read-only game state
	router.GET("/escrow/balances", escrowHandlers.GetBalances)
	router.GET("/transactions/:correlationId", settlementHandlers.GetTransaction)
	router.GET("/stats/:address", statsHandlers.GetStats)
	router.GET("/stats/:address/transactions", statsHandlers.PlayerTransactions)
	router.GET("/leaderboard", statsHandlers.Leaderboard)

	// Mutating settlement routes, gated by the shared API key when one is
	// configured
	mutating := router.Group("/", middleware.APIKey(deps.Config.Server.APIKey))
	{
		mutating.POST("/payout", settlementHandlers.Payout)
		mutating.POST("/payout/withdraw", settlementHandlers.Withdraw)
		mutating.POST("/stats", statsHandlers.ApplyDeltas)
		mutating.POST("/referral", statsHandlers.ApplyReferral)
	}

	return router
}
