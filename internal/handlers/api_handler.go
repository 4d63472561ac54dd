package handlers

import (
	"net/http"
	"strconv"

	"screener-web/internal/models"
	"screener-web/pkg/errors"

	"github.com/gin-gonic/gin"
)

// APIHandler exposes the backend operations as JSON under /api so scripts
// get the same error envelope as the rest of the front-end.
type APIHandler struct {
	*BaseHandler
}

func NewAPIHandler(base *BaseHandler) *APIHandler {
	return &APIHandler{BaseHandler: base}
}

// Watchlists
// GET /api/watchlists
func (h *APIHandler) Watchlists(c *gin.Context) {
	names, err := h.services.Watchlists.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, names)
}

// Status
// GET /api/screener/status
func (h *APIHandler) Status(c *gin.Context) {
	status, err := h.services.Backend().Status(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Stop
// POST /api/screener/stop
func (h *APIHandler) Stop(c *gin.Context) {
	if err := h.services.Backend().Stop(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

// RunScreener
// POST /api/screener/run
func (h *APIHandler) RunScreener(c *gin.Context) {
	var req models.ScreenerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.WrapError(err, errors.ErrValidation.Code, err.Error(), errors.ErrValidation.Status))
		return
	}

	run, err := h.services.Screener.Run(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, run.Response)
}

// ScreenerRun
// GET /api/screener/:id
func (h *APIHandler) ScreenerRun(c *gin.Context) {
	runID, ok := runIDParam(c)
	if !ok {
		return
	}

	run, err := h.services.Screener.Results(c.Request.Context(), runID, "")
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, run.Response)
}

// RunBacktest
// POST /api/backtest/run
func (h *APIHandler) RunBacktest(c *gin.Context) {
	var req models.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.WrapError(err, errors.ErrValidation.Code, err.Error(), errors.ErrValidation.Status))
		return
	}

	run, err := h.services.Backtest.Run(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, run.Response)
}

// BacktestRun
// GET /api/backtest/:id
func (h *APIHandler) BacktestRun(c *gin.Context) {
	runID, ok := runIDParam(c)
	if !ok {
		return
	}

	run, err := h.services.Backtest.Results(c.Request.Context(), runID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, run.Response)
}

// Strategies
// GET /api/backtest/strategies
func (h *APIHandler) Strategies(c *gin.Context) {
	strategies, err := h.services.Backtest.Strategies(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, strategies)
}

func runIDParam(c *gin.Context) (int64, bool) {
	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(errors.NewError(errors.ErrValidation.Code, "Invalid run ID", errors.ErrValidation.Status))
		return 0, false
	}
	return runID, true
}
