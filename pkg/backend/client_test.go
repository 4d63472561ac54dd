package backend_test

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"screener-web/internal/models"
	"screener-web/pkg/backend"
	"screener-web/pkg/errors"
)

func TestStatus(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/screener/status", r.URL.Path)
		require.NotEmpty(t, r.Header.Get(backend.RequestIDHeader))

		_, _ = w.Write([]byte(`{"status":"screening","progress":{"total_symbols":10,"processed_symbols":4,"current_symbol":"MSFT"},"is_running":true}`))
	}))
	defer svc.Close()

	client := backend.NewClient(svc.URL, nil, 5*time.Second)
	status, err := client.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.StateScreening, status.State)
	require.Equal(t, "MSFT", status.Current())
	require.Equal(t, 4, status.Progress.Processed)
}

func TestRequestIDIsForwarded(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "req-123", r.Header.Get(backend.RequestIDHeader))
		w.WriteHeader(http.StatusOK)
	}))
	defer svc.Close()

	client := backend.NewClient(svc.URL, nil, 5*time.Second)
	require.NoError(t, client.Stop(backend.WithRequestID(context.Background(), "req-123")))
}

func TestErrorClassification(t *testing.T) {
	testcases := []struct {
		name         string
		responseCode int
		responseBody string
		wantCode     string
	}{
		{
			name:         "server error is unavailable",
			responseCode: http.StatusInternalServerError,
			responseBody: `{"detail":"Fehler"}`,
			wantCode:     errors.ErrBackendUnavailable.Code,
		},
		{
			name:         "missing run is not found",
			responseCode: http.StatusNotFound,
			wantCode:     errors.ErrNotFound.Code,
		},
		{
			name:         "application error status is rejected",
			responseCode: http.StatusOK,
			responseBody: `{"status":"error","message":"Screener foo nicht gefunden."}`,
			wantCode:     errors.ErrBackendRejected.Code,
		},
		{
			name:         "bare message is rejected",
			responseCode: http.StatusOK,
			responseBody: `{"status":"","message":"no data"}`,
			wantCode:     errors.ErrBackendRejected.Code,
		},
		{
			name:         "garbage body is unavailable",
			responseCode: http.StatusOK,
			responseBody: `<html>`,
			wantCode:     errors.ErrBackendUnavailable.Code,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.responseCode)
				_, _ = w.Write([]byte(tc.responseBody))
			}))
			defer svc.Close()

			client := backend.NewClient(svc.URL, nil, 5*time.Second)
			_, err := client.ScreenerRun(context.Background(), 7)
			require.Error(t, err)
			require.Equal(t, tc.wantCode, errors.As(err).Code)
		})
	}
}

func TestRejectedCarriesBackendMessage(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"Strategie foo nicht gefunden."}`))
	}))
	defer svc.Close()

	client := backend.NewClient(svc.URL, nil, 5*time.Second)
	_, err := client.RunBacktest(context.Background(), models.BacktestRequest{
		Params:        models.MeanReversionParams{GapThreshold: -0.03, ExitDays: 5},
		WatchlistName: "Dow 30",
	})
	require.True(t, stderrors.Is(err, errors.ErrBackendRejected))
	require.Equal(t, "Strategie foo nicht gefunden.", errors.As(err).Message)
}

func TestRunScreenerSendsTaggedRequest(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/screener/run", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"watchlist_name":"S&P 500","screener_type":"roc130","parameters":{"roc_threshold":40}}`, string(body))

		_, _ = w.Write([]byte(`{"status":"success","run_id":12,"results":[{"symbol":"NVDA","data":{"roc_yesterday":41.5,"roc_day_before":38.2}}]}`))
	}))
	defer svc.Close()

	client := backend.NewClient(svc.URL, nil, 5*time.Second)
	resp, err := client.RunScreener(context.Background(), models.ScreenerRequest{
		WatchlistName: "S&P 500",
		Params:        models.ROC130Params{RocThreshold: 40},
	})
	require.NoError(t, err)
	require.Equal(t, int64(12), *resp.RunID)
	require.Len(t, resp.Results, 1)
	require.Equal(t, "NVDA", resp.Results[0].Symbol)
}

func TestWatchlistsKeepOrder(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["S&P 500","Nasdaq 100","Dow 30"]`))
	}))
	defer svc.Close()

	client := backend.NewClient(svc.URL, nil, 5*time.Second)
	names, err := client.Watchlists(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"S&P 500", "Nasdaq 100", "Dow 30"}, names)
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, stderrors.New("connection refused")
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	client := backend.NewClient("http://backend.invalid", failingDoer{}, 0)
	err := client.Stop(context.Background())
	require.True(t, stderrors.Is(err, errors.ErrBackendUnavailable))
	require.ErrorContains(t, err, "connection refused")
}
