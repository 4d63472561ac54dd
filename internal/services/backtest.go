package services

import (
	"context"

	"screener-web/internal/models"
	"screener-web/pkg/backend"
	"screener-web/pkg/errors"

	fylogger "github.com/FyersDev/trading-logger-go"
)

// defaultStrategies is shown when the backend has no strategy catalog endpoint.
var defaultStrategies = []models.Strategy{
	{
		ID:          string(models.StrategyMeanReversion),
		Name:        "Mean Reversion",
		Description: "Buys reversals after strong downward gaps",
		Parameters: []models.StrategyParameter{
			{Name: "gap_threshold", Type: "float", Default: -0.03, Description: "Gap down threshold, e.g. -0.03 for -3%"},
			{Name: "exit_days", Type: "int", Default: 5, Description: "Days until exit"},
		},
	},
}

type BacktestRun struct {
	RunID    *int64
	Response *models.BacktestResponse
	Table    ResultTable
}

type BacktestService struct {
	client *backend.Client
}

func NewBacktestService(client *backend.Client) *BacktestService {
	return &BacktestService{client: client}
}

func (s *BacktestService) Run(ctx context.Context, req models.BacktestRequest) (*BacktestRun, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.ErrValidation.Code, err.Error(), errors.ErrValidation.Status)
	}

	resp, err := s.client.RunBacktest(ctx, req)
	if err != nil {
		return nil, err
	}

	fylogger.InfoLog(ctx, "backtest run submitted", map[string]interface{}{
		"strategy":  string(req.Params.Strategy()),
		"watchlist": req.WatchlistName,
		"symbols":   len(req.Symbols),
	})

	return &BacktestRun{RunID: resp.RunID, Response: resp, Table: BacktestTable(resp.Results)}, nil
}

func (s *BacktestService) Results(ctx context.Context, runID int64) (*BacktestRun, error) {
	if runID <= 0 {
		return nil, errors.NewError(errors.ErrValidation.Code, "Invalid run ID", errors.ErrValidation.Status)
	}

	resp, err := s.client.BacktestRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &BacktestRun{RunID: resp.RunID, Response: resp, Table: BacktestTable(resp.Results)}, nil
}

// Strategies returns the backend catalog, falling back to the built-in
// list when the backend does not serve one.
func (s *BacktestService) Strategies(ctx context.Context) ([]models.Strategy, error) {
	strategies, err := s.client.Strategies(ctx)
	if err != nil {
		if errors.As(err).Code == errors.ErrNotFound.Code {
			return defaultStrategies, nil
		}
		return nil, err
	}
	if len(strategies) == 0 {
		return defaultStrategies, nil
	}
	return strategies, nil
}
