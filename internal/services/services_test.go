package services_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"screener-web/internal/models"
	"screener-web/internal/services"
	"screener-web/pkg/backend"
	"screener-web/pkg/errors"
	"screener-web/pkg/memorydb"
)

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	setKeys []string
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) GetJSON(_ context.Context, key string, out interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return c.getErr
	}
	raw, ok := c.data[key]
	if !ok {
		return memorydb.ErrMiss
	}
	return json.Unmarshal(raw, out)
}

func (c *memCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.setKeys = append(c.setKeys, key)
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func watchlistBackend(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/watchlists", r.URL.Path)
		*calls++
		_, _ = w.Write([]byte(`["tech","energy","banks"]`))
	}))
	t.Cleanup(svc.Close)
	return svc
}

func TestWatchlistsAreCached(t *testing.T) {
	var calls int
	svc := watchlistBackend(t, &calls)
	cache := newMemCache()

	watchlists := services.NewWatchlistService(backend.NewClient(svc.URL, nil, time.Second), cache, time.Minute)

	first, err := watchlists.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"tech", "energy", "banks"}, first)

	second, err := watchlists.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, calls)

	require.NoError(t, watchlists.Invalidate(context.Background()))
	_, err = watchlists.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestWatchlistCacheFailureFallsThrough(t *testing.T) {
	var calls int
	svc := watchlistBackend(t, &calls)
	cache := newMemCache()
	cache.getErr = stderrors.New("connection refused")

	watchlists := services.NewWatchlistService(backend.NewClient(svc.URL, nil, time.Second), cache, time.Minute)

	names, err := watchlists.List(context.Background())
	require.NoError(t, err)
	require.Len(t, names, 3)
	require.Equal(t, 1, calls)
}

func TestWatchlistsWithoutCache(t *testing.T) {
	var calls int
	svc := watchlistBackend(t, &calls)

	watchlists := services.NewWatchlistService(backend.NewClient(svc.URL, nil, time.Second), nil, 0)
	for i := 0; i < 2; i++ {
		_, err := watchlists.List(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 2, calls)
	require.NoError(t, watchlists.Invalidate(context.Background()))
}

func TestScreenerTableROC130(t *testing.T) {
	results := []models.ScreenerResultItem{
		{Symbol: "AAPL", Data: json.RawMessage(`{"roc_yesterday":41.5,"roc_day_before":12.345}`)},
		{Symbol: "MSFT", Data: json.RawMessage(`{"roc_yesterday":55}`)},
	}

	table := services.ScreenerTable(models.ScreenerROC130, results)
	require.Len(t, table.Columns, 2)
	require.Equal(t, "roc_yesterday", table.Columns[0].Key)
	require.Equal(t, []services.ResultRow{
		{Symbol: "AAPL", Cells: []string{"41.50%", "12.35%"}},
		{Symbol: "MSFT", Cells: []string{"55.00%", "-"}},
	}, table.Rows)
}

func TestScreenerTableDiscoversColumns(t *testing.T) {
	results := []models.ScreenerResultItem{
		{Symbol: "XOM", Data: json.RawMessage(`{"price":101.2,"ema":99}`)},
		{Symbol: "CVX", Data: json.RawMessage(`{"volume":250000,"ema":140.456,"note":"touch"}`)},
	}

	table := services.ScreenerTable(models.ScreenerEMATouch, results)
	keys := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		keys = append(keys, col.Key)
	}
	require.Equal(t, []string{"ema", "note", "price", "volume"}, keys)
	require.Equal(t, []string{"99.00", "-", "101.20", "-"}, table.Rows[0].Cells)
	require.Equal(t, []string{"140.46", "touch", "-", "250000.00"}, table.Rows[1].Cells)
}

func TestBacktestTable(t *testing.T) {
	sharpe := 1.234
	table := services.BacktestTable([]models.BacktestResultItem{
		{Symbol: "AAPL", TotalTrades: 4, WinRate: 0.75, AvgReturn: 2.5, MaxDrawdown: -3.1, SharpeRatio: &sharpe},
		{Symbol: "TSLA", TotalTrades: 0},
	})

	require.Len(t, table.Columns, 5)
	require.Equal(t, []string{"4", "75.00%", "2.50", "-3.10", "1.23"}, table.Rows[0].Cells)
	require.Equal(t, "-", table.Rows[1].Cells[4])
}

func TestScreenerRun(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/screener/run", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","run_id":7,"results":[{"symbol":"AAPL","data":{"roc_yesterday":44,"roc_day_before":41}}]}`))
	}))
	defer svc.Close()

	screener := services.NewScreenerService(backend.NewClient(svc.URL, nil, time.Second))
	run, err := screener.Run(context.Background(), models.ScreenerRequest{
		WatchlistName: "tech",
		Params:        models.ROC130Params{RocThreshold: 40},
	})
	require.NoError(t, err)
	require.NotNil(t, run.RunID)
	require.EqualValues(t, 7, *run.RunID)
	require.Equal(t, []string{"44.00%", "41.00%"}, run.Table.Rows[0].Cells)
}

func TestScreenerRunValidation(t *testing.T) {
	screener := services.NewScreenerService(backend.NewClient("http://127.0.0.1:1", nil, time.Second))

	_, err := screener.Run(context.Background(), models.ScreenerRequest{
		WatchlistName: "tech",
		Params:        models.ROC130Params{RocThreshold: 150},
	})
	require.ErrorIs(t, err, errors.ErrValidation)

	_, err = screener.Results(context.Background(), 0, models.ScreenerROC130)
	require.ErrorIs(t, err, errors.ErrValidation)
}

func TestBacktestStrategiesFallback(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer svc.Close()

	backtests := services.NewBacktestService(backend.NewClient(svc.URL, nil, time.Second))
	strategies, err := backtests.Strategies(context.Background())
	require.NoError(t, err)
	require.Len(t, strategies, 1)
	require.Equal(t, string(models.StrategyMeanReversion), strategies[0].ID)
}

func TestBacktestRun(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/backtest/run", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","run_id":3,"summary":{"total_symbols":1,"total_trades":2,"win_rate":0.5,"avg_return":1.2},"results":[{"symbol":"AAPL","total_trades":2,"win_rate":0.5,"avg_return":1.2,"max_drawdown":-2,"trades":[]}]}`))
	}))
	defer svc.Close()

	backtests := services.NewBacktestService(backend.NewClient(svc.URL, nil, time.Second))

	_, err := backtests.Run(context.Background(), models.BacktestRequest{
		Params: models.MeanReversionParams{GapThreshold: -0.03, ExitDays: 5},
	})
	require.ErrorIs(t, err, errors.ErrValidation)

	run, err := backtests.Run(context.Background(), models.BacktestRequest{
		Params:  models.MeanReversionParams{GapThreshold: -0.03, ExitDays: 5},
		Symbols: []string{"AAPL"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, run.Response.Summary.TotalTrades)
	require.Equal(t, "50.00%", run.Table.Rows[0].Cells[1])
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	health := services.NewHealthService(pinger{}, nil)
	status := health.CheckOverall(context.Background())
	require.Len(t, status, 1)
	require.True(t, services.Healthy(status))

	health = services.NewHealthService(pinger{}, pinger{err: stderrors.New("down")})
	status = health.CheckOverall(context.Background())
	require.Equal(t, "error", status["redis"].Status)
	require.False(t, services.Healthy(status))
}
