package handlers

import (
	"net/http"
	"strconv"

	"screener-web/internal/models"
	"screener-web/internal/services"
	"screener-web/pkg/errors"

	fylogger "github.com/FyersDev/trading-logger-go"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type ScreenerHandler struct {
	*BaseHandler
}

func NewScreenerHandler(base *BaseHandler) *ScreenerHandler {
	return &ScreenerHandler{BaseHandler: base}
}

// screenerForm mirrors the screener form. Parameters of every type are kept
// so switching type in the browser does not lose values.
type screenerForm struct {
	WatchlistName string  `form:"watchlist_name"`
	ScreenerType  string  `form:"screener_type"`
	RocThreshold  float64 `form:"roc_threshold"`
	EMAPeriod     int     `form:"ema_period"`
	MinPrice      float64 `form:"min_price"`
	MinVolume     int64   `form:"min_volume"`
	StartDate     string  `form:"start_date"`
	EndDate       string  `form:"end_date"`
}

func defaultScreenerForm() screenerForm {
	return screenerForm{
		ScreenerType: string(models.ScreenerROC130),
		RocThreshold: 40,
		EMAPeriod:    20,
		MinPrice:     5,
		MinVolume:    100000,
	}
}

func (f screenerForm) request() (models.ScreenerRequest, error) {
	req := models.ScreenerRequest{
		WatchlistName: f.WatchlistName,
		StartDate:     f.StartDate,
		EndDate:       f.EndDate,
	}
	switch models.ScreenerType(f.ScreenerType) {
	case models.ScreenerROC130:
		req.Params = models.ROC130Params{RocThreshold: f.RocThreshold}
	case models.ScreenerEMATouch:
		req.Params = models.EMATouchParams{EMAPeriod: f.EMAPeriod, MinPrice: f.MinPrice, MinVolume: f.MinVolume}
	default:
		return req, errors.NewError(errors.ErrValidation.Code, "Unknown screener type: "+f.ScreenerType, errors.ErrValidation.Status)
	}
	return req, nil
}

type typeOption struct {
	Value string
	Label string
}

type screenerPage struct {
	Page
	Form       screenerForm
	Watchlists []string
	Types      []typeOption
	Run        *services.ScreenerRun
	Message    string
}

type screenerRunPage struct {
	Page
	RunID   int64
	Run     *services.ScreenerRun
	Message string
}

// Index redirects to the screener page.
// GET /
func (h *ScreenerHandler) Index(c *gin.Context) {
	c.Redirect(http.StatusFound, "/screener")
}

// Show renders the screener form.
// GET /screener
func (h *ScreenerHandler) Show(c *gin.Context) {
	data := h.newPage(c, defaultScreenerForm())
	c.HTML(http.StatusOK, "screener.html", data)
}

// Run submits the form and renders the results below it.
// POST /screener/run
func (h *ScreenerHandler) Run(c *gin.Context) {
	form := defaultScreenerForm()
	if err := c.ShouldBind(&form); err != nil {
		data := h.newPage(c, form)
		data.Error = "Invalid form input: " + err.Error()
		c.HTML(http.StatusBadRequest, "screener.html", data)
		return
	}

	data := h.newPage(c, form)

	req, err := form.request()
	if err == nil {
		data.Run, err = h.services.Screener.Run(c.Request.Context(), req)
	}
	if err != nil {
		status, msg := pageError(err)
		fylogger.ErrorLog(c.Request.Context(), "screener run failed", err, map[string]interface{}{
			"watchlist": form.WatchlistName,
			"type":      form.ScreenerType,
		})
		data.Error = msg
		c.HTML(status, "screener.html", data)
		return
	}

	data.Message = models.MessageOf(data.Run.Response.Message)
	c.HTML(http.StatusOK, "screener.html", data)
}

// ShowRun renders the results of a previous run. The optional type query
// parameter selects the table layout.
// GET /screener/runs/:id
func (h *ScreenerHandler) ShowRun(c *gin.Context) {
	data := screenerRunPage{Page: Page{Title: "Screener run", Nav: "screener"}}

	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		data.Error = "Invalid run ID"
		c.HTML(http.StatusBadRequest, "screener_run.html", data)
		return
	}
	data.RunID = runID

	run, err := h.services.Screener.Results(c.Request.Context(), runID, models.ScreenerType(c.Query("type")))
	if err != nil {
		status, msg := pageError(err)
		data.Error = msg
		c.HTML(status, "screener_run.html", data)
		return
	}

	data.Run = run
	data.Message = models.MessageOf(run.Response.Message)
	c.HTML(http.StatusOK, "screener_run.html", data)
}

func (h *ScreenerHandler) newPage(c *gin.Context, form screenerForm) screenerPage {
	data := screenerPage{
		Page: Page{Title: "Screener", Nav: "screener"},
		Form: form,
		Types: lo.Map(models.ScreenerTypes, func(t models.ScreenerType, _ int) typeOption {
			return typeOption{Value: string(t), Label: t.Label()}
		}),
	}

	watchlists, err := h.services.Watchlists.List(c.Request.Context())
	if err != nil {
		_, msg := pageError(err)
		data.Error = "Could not load watchlists: " + msg
		watchlists = []string{}
	}
	data.Watchlists = watchlists
	return data
}
