// Package mcptools exposes the screener backend as MCP tools.
package mcptools

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"screener-web/internal/models"
	"screener-web/internal/poller"
	"screener-web/internal/services"
	"screener-web/pkg/backend"
	"screener-web/pkg/errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Toolset binds the MCP tool handlers to one backend.
type Toolset struct {
	client     *backend.Client
	watchlists *services.WatchlistService
	screener   *services.ScreenerService
	backtest   *services.BacktestService
}

func NewToolset(client *backend.Client, watchlists *services.WatchlistService) *Toolset {
	return &Toolset{
		client:     client,
		watchlists: watchlists,
		screener:   services.NewScreenerService(client),
		backtest:   services.NewBacktestService(client),
	}
}

// numberArg normalizes a numeric argument. JSON numbers usually arrive as
// float64, but other numeric types are accepted too.
func numberArg(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case json.Number:
		return v.Float64()
	default:
		return 0, fmt.Errorf("unsupported number type %T", raw)
	}
}

// args wraps the tool arguments map with typed accessors.
type args map[string]interface{}

func argsOf(request mcp.CallToolRequest) (args, bool) {
	if request.Params.Arguments == nil {
		return args{}, true
	}
	m, ok := request.Params.Arguments.(map[string]interface{})
	return m, ok
}

func (a args) str(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a args) num(key string, def float64) (float64, error) {
	raw, ok := a[key]
	if !ok || raw == nil {
		return def, nil
	}
	v, err := numberArg(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: %w", key, err)
	}
	return v, nil
}

// maxWholeArg is the largest integer a JSON number carries exactly.
const maxWholeArg = 1 << 53

// whole reads an integer argument, rejecting fractions and values outside [0, limit].
func (a args) whole(key string, def, limit int64) (int64, error) {
	v, err := a.num(key, float64(def))
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("invalid %s parameter: %v is not a whole number", key, v)
	}
	if v < 0 || v > float64(limit) {
		return 0, fmt.Errorf("invalid %s parameter: %v is out of range", key, v)
	}
	return int64(v), nil
}

func toolError(err error) *mcp.CallToolResult {
	appErr := errors.As(err)
	return mcp.NewToolResultError(fmt.Sprintf("%s (%s)", appErr.Message, appErr.Code))
}

func writeTable(b *strings.Builder, t services.ResultTable) {
	if len(t.Rows) == 0 {
		b.WriteString("No results.\n")
		return
	}
	header := []string{"symbol"}
	for _, col := range t.Columns {
		header = append(header, col.Key)
	}
	b.WriteString(strings.Join(header, " | ") + "\n")
	for _, row := range t.Rows {
		b.WriteString(row.Symbol + " | " + strings.Join(row.Cells, " | ") + "\n")
	}
}

var ListWatchlistsTool = mcp.Tool{
	Name:        "list_watchlists",
	Description: "List the names of the watchlists stored in the screener backend. Use one of them as watchlist_name for run_screener or run_backtest.",
	InputSchema: mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{},
	},
}

func (t *Toolset) HandleListWatchlists(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := t.watchlists.List(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("No watchlists found."), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

var RunScreenerTool = mcp.Tool{
	Name: "run_screener",
	Description: `Run a stock screener over a watchlist and return the matching symbols.

Screener types:
- roc130: symbols whose 130-day rate of change exceeded roc_threshold percent on the last two days. Default roc_threshold=40.
- ema_touch: symbols touching their EMA. Defaults: ema_period=20, min_price=5, min_volume=100000.

Runs can take a while; use screener_status to follow progress.`,
	InputSchema: mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"watchlist_name": map[string]interface{}{
				"type":        "string",
				"description": "Watchlist to screen, see list_watchlists.",
			},
			"screener_type": map[string]interface{}{
				"type":        "string",
				"enum":        []string{string(models.ScreenerROC130), string(models.ScreenerEMATouch)},
				"description": "Screener algorithm.",
				"default":     string(models.ScreenerROC130),
			},
			"roc_threshold": map[string]interface{}{
				"type":        "number",
				"description": "roc130 only: threshold in percent (0-100).",
				"default":     40,
			},
			"ema_period": map[string]interface{}{
				"type":        "integer",
				"description": "ema_touch only: EMA period.",
				"default":     20,
			},
			"min_price": map[string]interface{}{
				"type":        "number",
				"description": "ema_touch only: minimum price.",
				"default":     5,
			},
			"min_volume": map[string]interface{}{
				"type":        "integer",
				"description": "ema_touch only: minimum volume.",
				"default":     100000,
			},
		},
		Required: []string{"watchlist_name"},
	},
}

func (t *Toolset) HandleRunScreener(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, ok := argsOf(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}

	watchlist := a.str("watchlist_name")
	if watchlist == "" {
		return mcp.NewToolResultError("watchlist_name parameter is required"), nil
	}

	screenerType := models.ScreenerType(a.str("screener_type"))
	if screenerType == "" {
		screenerType = models.ScreenerROC130
	}

	params, err := screenerParams(screenerType, a)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	run, err := t.screener.Run(ctx, models.ScreenerRequest{WatchlistName: watchlist, Params: params})
	if err != nil {
		return toolError(err), nil
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("Screener: %s, watchlist: %s\n", screenerType.Label(), watchlist))
	if run.RunID != nil {
		response.WriteString(fmt.Sprintf("Run ID: %d\n", *run.RunID))
	}
	if msg := models.MessageOf(run.Response.Message); msg != "" {
		response.WriteString(msg + "\n")
	}
	response.WriteString(fmt.Sprintf("Found %d matching symbols:\n\n", len(run.Table.Rows)))
	writeTable(&response, run.Table)
	return mcp.NewToolResultText(response.String()), nil
}

func screenerParams(t models.ScreenerType, a args) (models.ScreenerParams, error) {
	switch t {
	case models.ScreenerROC130:
		threshold, err := a.num("roc_threshold", 40)
		if err != nil {
			return nil, err
		}
		return models.ROC130Params{RocThreshold: threshold}, nil
	case models.ScreenerEMATouch:
		period, err := a.whole("ema_period", 20, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		minPrice, err := a.num("min_price", 5)
		if err != nil {
			return nil, err
		}
		minVolume, err := a.whole("min_volume", 100000, maxWholeArg)
		if err != nil {
			return nil, err
		}
		return models.EMATouchParams{EMAPeriod: int(period), MinPrice: minPrice, MinVolume: minVolume}, nil
	default:
		return nil, fmt.Errorf("unknown screener_type %q", t)
	}
}

var ScreenerStatusTool = mcp.Tool{
	Name:        "screener_status",
	Description: "Report the progress of the screener job currently running in the backend: state, processed and total symbols, current symbol.",
	InputSchema: mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{},
	},
}

func (t *Toolset) HandleScreenerStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view := poller.New(t.client).Refresh(ctx)
	if view.FetchError != "" {
		return mcp.NewToolResultError("status unavailable: " + view.FetchError), nil
	}
	if !view.Visible() {
		return mcp.NewToolResultText("No screener job running (state: idle)."), nil
	}
	return mcp.NewToolResultText(view.Line()), nil
}

var StopScreenerTool = mcp.Tool{
	Name:        "stop_screener",
	Description: "Ask the backend to stop the screener job that is currently running.",
	InputSchema: mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{},
	},
}

func (t *Toolset) HandleStopScreener(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := poller.New(t.client)
	if view := p.Refresh(ctx); view.FetchError != "" {
		return mcp.NewToolResultError("status unavailable: " + view.FetchError), nil
	}

	if err := p.Cancel(ctx); err != nil {
		if stderrors.Is(err, poller.ErrNotRunning) {
			return mcp.NewToolResultText("No screener job running, nothing to stop."), nil
		}
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Stop requested. " + p.Snapshot().Line()), nil
}

var GetScreenerResultsTool = mcp.Tool{
	Name:        "get_screener_results",
	Description: "Fetch the results of a previous screener run by its run ID.",
	InputSchema: mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"run_id": map[string]interface{}{
				"type":        "integer",
				"description": "Run ID returned by run_screener.",
			},
			"screener_type": map[string]interface{}{
				"type":        "string",
				"enum":        []string{string(models.ScreenerROC130), string(models.ScreenerEMATouch)},
				"description": "Screener type of the run, selects the result columns.",
			},
		},
		Required: []string{"run_id"},
	},
}

func (t *Toolset) HandleGetScreenerResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, ok := argsOf(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	if _, ok := a["run_id"]; !ok {
		return mcp.NewToolResultError("run_id parameter is required"), nil
	}
	runID, err := a.num("run_id", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	run, err := t.screener.Results(ctx, int64(runID), models.ScreenerType(a.str("screener_type")))
	if err != nil {
		return toolError(err), nil
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("Run ID: %d, %d symbols:\n\n", int64(runID), len(run.Table.Rows)))
	writeTable(&response, run.Table)
	return mcp.NewToolResultText(response.String()), nil
}

var RunBacktestTool = mcp.Tool{
	Name: "run_backtest",
	Description: `Run a backtest of a trading strategy over a watchlist or a list of symbols.

Strategies:
- mean_reversion: buys after a gap down below gap_threshold (e.g. -0.03 for -3%) and exits after exit_days. Defaults: gap_threshold=-0.03, exit_days=5.

Either watchlist_name or symbols is required.`,
	InputSchema: mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"strategy_type": map[string]interface{}{
				"type":        "string",
				"enum":        []string{string(models.StrategyMeanReversion)},
				"description": "Strategy to test.",
				"default":     string(models.StrategyMeanReversion),
			},
			"watchlist_name": map[string]interface{}{
				"type":        "string",
				"description": "Watchlist to test.",
			},
			"symbols": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Explicit symbols to test.",
			},
			"gap_threshold": map[string]interface{}{
				"type":        "number",
				"description": "mean_reversion: negative gap threshold.",
				"default":     -0.03,
			},
			"exit_days": map[string]interface{}{
				"type":        "integer",
				"description": "mean_reversion: holding period in days.",
				"default":     5,
			},
			"start_date": map[string]interface{}{
				"type":        "string",
				"description": "Optional start date, YYYY-MM-DD.",
			},
			"end_date": map[string]interface{}{
				"type":        "string",
				"description": "Optional end date, YYYY-MM-DD.",
			},
		},
	},
}

func (t *Toolset) HandleRunBacktest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, ok := argsOf(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}

	strategy := models.StrategyType(a.str("strategy_type"))
	if strategy == "" {
		strategy = models.StrategyMeanReversion
	}
	if strategy != models.StrategyMeanReversion {
		return mcp.NewToolResultError(fmt.Sprintf("unknown strategy_type %q", strategy)), nil
	}

	gap, err := a.num("gap_threshold", -0.03)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	exitDays, err := a.whole("exit_days", 5, math.MaxInt32)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var symbols []string
	if raw, ok := a["symbols"].([]interface{}); ok {
		for _, s := range raw {
			if sym, ok := s.(string); ok && sym != "" {
				symbols = append(symbols, strings.ToUpper(sym))
			}
		}
	}

	run, err := t.backtest.Run(ctx, models.BacktestRequest{
		Params:        models.MeanReversionParams{GapThreshold: gap, ExitDays: int(exitDays)},
		Symbols:       symbols,
		WatchlistName: a.str("watchlist_name"),
		StartDate:     a.str("start_date"),
		EndDate:       a.str("end_date"),
	})
	if err != nil {
		return toolError(err), nil
	}

	var response strings.Builder
	if run.RunID != nil {
		response.WriteString(fmt.Sprintf("Run ID: %d\n", *run.RunID))
	}
	if s := run.Response.Summary; s != nil {
		response.WriteString(fmt.Sprintf("Summary: %d symbols, %d trades, win rate %s, avg return %s\n\n",
			s.TotalSymbols, s.TotalTrades, services.FormatRatioPercent(s.WinRate), services.FormatDecimal(s.AvgReturn)))
	}
	writeTable(&response, run.Table)
	return mcp.NewToolResultText(response.String()), nil
}

// MCPServer wraps the MCP server with SSE support
type MCPServer struct {
	mcpServer *server.MCPServer
	sseServer *server.SSEServer
}

// NewMCPServer creates a new MCP server with every screener tool registered
func NewMCPServer(tools *Toolset) *MCPServer {
	mcpServer := server.NewMCPServer(
		"Screener MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	// Register tools
	mcpServer.AddTool(ListWatchlistsTool, tools.HandleListWatchlists)
	mcpServer.AddTool(RunScreenerTool, tools.HandleRunScreener)
	mcpServer.AddTool(ScreenerStatusTool, tools.HandleScreenerStatus)
	mcpServer.AddTool(StopScreenerTool, tools.HandleStopScreener)
	mcpServer.AddTool(GetScreenerResultsTool, tools.HandleGetScreenerResults)
	mcpServer.AddTool(RunBacktestTool, tools.HandleRunBacktest)

	return &MCPServer{
		mcpServer: mcpServer,
	}
}

// InitSSE creates the SSE server for addr. StartSSE calls it when needed.
func (s *MCPServer) InitSSE(addr string) {
	s.sseServer = server.NewSSEServer(s.mcpServer,
		server.WithBaseURL(fmt.Sprintf("http://%s", addr)),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAliveInterval(30*time.Second),
	)
}

// StartSSE starts the SSE server on the specified address
func (s *MCPServer) StartSSE(addr string) error {
	if s.sseServer == nil {
		s.InitSSE(addr)
	}

	log.Printf("Starting MCP SSE server on %s", addr)
	log.Printf("SSE endpoint: %s/sse", addr)
	log.Printf("Message endpoint: %s/message", addr)

	return s.sseServer.Start(addr)
}

// Shutdown stops the SSE server if it was started.
func (s *MCPServer) Shutdown(ctx context.Context) error {
	if s.sseServer == nil {
		return nil
	}
	return s.sseServer.Shutdown(ctx)
}

// StartStdio starts the server in stdio mode (for CLI tools)
func (s *MCPServer) StartStdio() error {
	log.Println("Starting MCP server in stdio mode")
	return server.ServeStdio(s.mcpServer)
}
