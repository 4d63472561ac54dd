package services

import (
	"context"

	"screener-web/internal/models"
	"screener-web/pkg/backend"
	"screener-web/pkg/errors"

	fylogger "github.com/FyersDev/trading-logger-go"
)

// ScreenerRun is a submitted or fetched run together with its table.
type ScreenerRun struct {
	RunID    *int64
	Type     models.ScreenerType
	Response *models.ScreenerResponse
	Table    ResultTable
}

type ScreenerService struct {
	client *backend.Client
}

func NewScreenerService(client *backend.Client) *ScreenerService {
	return &ScreenerService{client: client}
}

// Run validates req and submits it to the backend.
func (s *ScreenerService) Run(ctx context.Context, req models.ScreenerRequest) (*ScreenerRun, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.ErrValidation.Code, err.Error(), errors.ErrValidation.Status)
	}

	resp, err := s.client.RunScreener(ctx, req)
	if err != nil {
		return nil, err
	}

	fylogger.InfoLog(ctx, "screener run submitted", map[string]interface{}{
		"watchlist": req.WatchlistName,
		"type":      string(req.Params.Type()),
		"results":   len(resp.Results),
	})

	return &ScreenerRun{
		RunID:    resp.RunID,
		Type:     req.Params.Type(),
		Response: resp,
		Table:    ScreenerTable(req.Params.Type(), resp.Results),
	}, nil
}

// Results fetches a previous run. The backend does not echo the screener
// type, so t selects the table layout; empty means generic columns.
func (s *ScreenerService) Results(ctx context.Context, runID int64, t models.ScreenerType) (*ScreenerRun, error) {
	if runID <= 0 {
		return nil, errors.NewError(errors.ErrValidation.Code, "Invalid run ID", errors.ErrValidation.Status)
	}

	resp, err := s.client.ScreenerRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	return &ScreenerRun{
		RunID:    resp.RunID,
		Type:     t,
		Response: resp,
		Table:    ScreenerTable(t, resp.Results),
	}, nil
}
