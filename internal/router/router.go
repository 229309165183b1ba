package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maninjwa/stock-count-backend/internal/app"
	"github.com/maninjwa/stock-count-backend/internal/handler"
	"github.com/maninjwa/stock-count-backend/internal/middleware"
)

// New returns a configured Gin engine serving a.
func New(a *app.App) *gin.Engine {
	cfg := a.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(cfg.RateLimitPerMinute))

	svc := a.Services

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(svc.Auth)
	usersH := handler.NewUsersHandler(svc.Users, svc.Assignments)
	stockCountsH := handler.NewStockCountsHandler(svc.StockCounts, svc.Areas, svc.Reports)
	areasH := handler.NewAreasHandler(svc.Areas, svc.Assignments, svc.Comparisons)
	assignmentsH := handler.NewAssignmentsHandler(svc.Assignments, svc.Sessions)
	sessionsH := handler.NewSessionsHandler(svc.Sessions)
	comparisonsH := handler.NewComparisonsHandler(svc.Comparisons, svc.Discrepancies)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(a.DB, a.Redis))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes. Authorization is decided per operation by the policy
	// engine inside the services.
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		v1.GET("/me", usersH.Me)
		v1.GET("/me/assignments", assignmentsH.Mine)

		users := v1.Group("/users")
		{
			users.POST("", usersH.Create)
			users.GET("", usersH.List)
			users.GET("/:id", usersH.Get)
			users.PATCH("/:id", usersH.Update)
			users.DELETE("/:id", usersH.Delete)
			users.GET("/:id/assignments", usersH.Assignments)
		}

		stockCounts := v1.Group("/stock-counts")
		{
			stockCounts.POST("", stockCountsH.Create)
			stockCounts.GET("", stockCountsH.List)
			stockCounts.GET("/:id", stockCountsH.Get)
			stockCounts.PATCH("/:id", stockCountsH.Update)
			stockCounts.DELETE("/:id", stockCountsH.Delete)
			stockCounts.POST("/:id/transition", stockCountsH.Transition)
			stockCounts.GET("/:id/areas", stockCountsH.Areas)
			stockCounts.GET("/:id/report", stockCountsH.Report)
		}

		areas := v1.Group("/areas")
		{
			areas.POST("", areasH.Create)
			areas.GET("/:id", areasH.Get)
			areas.PATCH("/:id", areasH.Update)
			areas.DELETE("/:id", areasH.Delete)
			areas.POST("/:id/transition", areasH.Transition)
			areas.POST("/:id/reconcile", areasH.Reconcile)
			areas.GET("/:id/assignments", areasH.Assignments)
			areas.GET("/:id/comparisons", areasH.Comparisons)
		}

		assignments := v1.Group("/assignments")
		{
			assignments.POST("", assignmentsH.Create)
			assignments.GET("/:id", assignmentsH.Get)
			assignments.PATCH("/:id", assignmentsH.Update)
			assignments.DELETE("/:id", assignmentsH.Delete)
			assignments.POST("/:id/transition", assignmentsH.Transition)
			assignments.POST("/:id/submit", assignmentsH.Submit)
			assignments.GET("/:id/sessions", assignmentsH.Sessions)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", sessionsH.Start)
			sessions.GET("/:id", sessionsH.Get)
			sessions.DELETE("/:id", sessionsH.Delete)
			sessions.POST("/:id/pause", sessionsH.Pause)
			sessions.POST("/:id/resume", sessionsH.Resume)
			sessions.POST("/:id/complete", sessionsH.Complete)
			sessions.GET("/:id/items", sessionsH.ListItems)
			sessions.POST("/:id/items", sessionsH.AddItem)
		}

		items := v1.Group("/items")
		{
			items.GET("", sessionsH.FindItems)
			items.GET("/:id", sessionsH.GetItem)
			items.PATCH("/:id", sessionsH.UpdateItem)
			items.DELETE("/:id", sessionsH.DeleteItem)
		}

		comparisons := v1.Group("/comparisons")
		{
			comparisons.GET("/:id", comparisonsH.Get)
			comparisons.DELETE("/:id", comparisonsH.Delete)
			comparisons.GET("/:id/discrepancies", comparisonsH.Discrepancies)
		}

		discrepancies := v1.Group("/discrepancies")
		{
			discrepancies.GET("/:id", comparisonsH.GetDiscrepancy)
			discrepancies.POST("/:id/resolve", comparisonsH.ResolveDiscrepancy)
			discrepancies.POST("/:id/approve", comparisonsH.ApproveDiscrepancy)
			discrepancies.POST("/:id/transition", comparisonsH.TransitionDiscrepancy)
		}
	}

	return r
}
