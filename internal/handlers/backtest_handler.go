package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"screener-web/internal/models"
	"screener-web/internal/services"
	"screener-web/pkg/errors"

	fylogger "github.com/FyersDev/trading-logger-go"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type BacktestHandler struct {
	*BaseHandler
}

func NewBacktestHandler(base *BaseHandler) *BacktestHandler {
	return &BacktestHandler{BaseHandler: base}
}

type backtestForm struct {
	StrategyType  string  `form:"strategy_type"`
	WatchlistName string  `form:"watchlist_name"`
	Symbols       string  `form:"symbols"`
	GapThreshold  float64 `form:"gap_threshold"`
	ExitDays      int     `form:"exit_days"`
	StartDate     string  `form:"start_date"`
	EndDate       string  `form:"end_date"`
}

func defaultBacktestForm() backtestForm {
	return backtestForm{
		StrategyType: string(models.StrategyMeanReversion),
		GapThreshold: -0.03,
		ExitDays:     5,
	}
}

// ParseSymbols splits a comma separated symbol list, upper-cased and deduplicated.
func ParseSymbols(raw string) []string {
	symbols := lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})
	return lo.Uniq(lo.Compact(symbols))
}

func (f backtestForm) request() (models.BacktestRequest, error) {
	req := models.BacktestRequest{
		WatchlistName: f.WatchlistName,
		Symbols:       ParseSymbols(f.Symbols),
		StartDate:     f.StartDate,
		EndDate:       f.EndDate,
	}
	switch models.StrategyType(f.StrategyType) {
	case models.StrategyMeanReversion:
		req.Params = models.MeanReversionParams{GapThreshold: f.GapThreshold, ExitDays: f.ExitDays}
	default:
		return req, errors.NewError(errors.ErrValidation.Code, "Unknown strategy: "+f.StrategyType, errors.ErrValidation.Status)
	}
	return req, nil
}

type summaryView struct {
	TotalSymbols int
	TotalTrades  int
	WinRate      string
	AvgReturn    string
}

type backtestPage struct {
	Page
	Form       backtestForm
	Strategies []models.Strategy
	Watchlists []string
	Run        *services.BacktestRun
	Summary    *summaryView
	Message    string
}

type backtestRunPage struct {
	Page
	RunID   int64
	Run     *services.BacktestRun
	Summary *summaryView
	Message string
}

func summarize(resp *models.BacktestResponse) *summaryView {
	if resp == nil || resp.Summary == nil {
		return nil
	}
	return &summaryView{
		TotalSymbols: resp.Summary.TotalSymbols,
		TotalTrades:  resp.Summary.TotalTrades,
		WinRate:      services.FormatRatioPercent(resp.Summary.WinRate),
		AvgReturn:    services.FormatDecimal(resp.Summary.AvgReturn),
	}
}

// Show renders the backtest form.
// GET /backtests
func (h *BacktestHandler) Show(c *gin.Context) {
	c.HTML(http.StatusOK, "backtests.html", h.newPage(c, defaultBacktestForm()))
}

// Run submits a backtest and renders its results.
// POST /backtests/run
func (h *BacktestHandler) Run(c *gin.Context) {
	form := defaultBacktestForm()
	if err := c.ShouldBind(&form); err != nil {
		data := h.newPage(c, form)
		data.Error = "Invalid form input: " + err.Error()
		c.HTML(http.StatusBadRequest, "backtests.html", data)
		return
	}

	data := h.newPage(c, form)

	req, err := form.request()
	if err == nil {
		data.Run, err = h.services.Backtest.Run(c.Request.Context(), req)
	}
	if err != nil {
		status, msg := pageError(err)
		fylogger.ErrorLog(c.Request.Context(), "backtest run failed", err, map[string]interface{}{
			"strategy": form.StrategyType,
		})
		data.Error = msg
		c.HTML(status, "backtests.html", data)
		return
	}

	data.Summary = summarize(data.Run.Response)
	data.Message = models.MessageOf(data.Run.Response.Message)
	c.HTML(http.StatusOK, "backtests.html", data)
}

// ShowRun renders a previous backtest run.
// GET /backtests/runs/:id
func (h *BacktestHandler) ShowRun(c *gin.Context) {
	data := backtestRunPage{Page: Page{Title: "Backtest run", Nav: "backtests"}}

	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		data.Error = "Invalid run ID"
		c.HTML(http.StatusBadRequest, "backtest_run.html", data)
		return
	}
	data.RunID = runID

	run, err := h.services.Backtest.Results(c.Request.Context(), runID)
	if err != nil {
		status, msg := pageError(err)
		data.Error = msg
		c.HTML(status, "backtest_run.html", data)
		return
	}

	data.Run = run
	data.Summary = summarize(run.Response)
	data.Message = models.MessageOf(run.Response.Message)
	c.HTML(http.StatusOK, "backtest_run.html", data)
}

// Performance is not built yet.
// GET /performance
func (h *BacktestHandler) Performance(c *gin.Context) {
	c.HTML(http.StatusOK, "placeholder.html", Page{Title: "Performance", Nav: "performance"})
}

func (h *BacktestHandler) newPage(c *gin.Context, form backtestForm) backtestPage {
	data := backtestPage{
		Page: Page{Title: "Backtests", Nav: "backtests"},
		Form: form,
	}

	var problems []string
	strategies, err := h.services.Backtest.Strategies(c.Request.Context())
	if err != nil {
		_, msg := pageError(err)
		problems = append(problems, "Could not load strategies: "+msg)
	}
	watchlists, err := h.services.Watchlists.List(c.Request.Context())
	if err != nil {
		_, msg := pageError(err)
		problems = append(problems, "Could not load watchlists: "+msg)
	}

	data.Strategies = strategies
	data.Watchlists = watchlists
	data.Error = strings.Join(problems, " ")
	return data
}
