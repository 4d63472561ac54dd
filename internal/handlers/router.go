package handlers

import (
	"html/template"
	"net/http"
	"time"

	"screener-web/config"
	"screener-web/internal/middleware"
	"screener-web/internal/services"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine for the web UI and the JSON API.
func NewRouter(cfg *config.Config, svcs *services.Services, tmpl *template.Template) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := NewHandlers(svcs, tmpl)

	router := gin.New()
	router.SetHTMLTemplate(tmpl)

	// Global middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORSMiddleware(cfg.CORSList))
	router.Use(middleware.ErrorMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		checks := svcs.Health.CheckOverall(c.Request.Context())
		status := http.StatusOK
		state := "ok"
		if !services.Healthy(checks) {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":  state,
			"service": "screener-web",
			"time":    time.Now().UTC(),
			"checks":  checks,
		})
	})

	// Pages
	router.GET("/", h.Screener.Index)
	router.GET("/screener", h.Screener.Show)
	router.POST("/screener/run", h.Screener.Run)
	router.GET("/screener/runs/:id", h.Screener.ShowRun)
	router.GET("/backtests", h.Backtest.Show)
	router.POST("/backtests/run", h.Backtest.Run)
	router.GET("/backtests/runs/:id", h.Backtest.ShowRun)
	router.GET("/performance", h.Backtest.Performance)

	// Status view
	ui := router.Group("/ui/status")
	{
		ui.GET("", h.Status.Fragment)
		ui.POST("/stop", h.Status.Stop)
		ui.GET("/ws", h.Status.Stream)
	}

	// JSON API
	api := router.Group("/api")
	{
		api.GET("/watchlists", h.API.Watchlists)

		screener := api.Group("/screener")
		{
			screener.GET("/status", h.API.Status)
			screener.POST("/stop", h.API.Stop)
			screener.POST("/run", h.API.RunScreener)
			screener.GET("/:id", h.API.ScreenerRun)
		}

		backtest := api.Group("/backtest")
		{
			backtest.GET("/strategies", h.API.Strategies)
			backtest.POST("/run", h.API.RunBacktest)
			backtest.GET("/:id", h.API.BacktestRun)
		}
	}

	return router
}
