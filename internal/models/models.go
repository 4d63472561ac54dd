package models

import (
	"encoding/json"
	"math"
)

// State is the lifecycle stage reported by the screener backend.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateDownloading  State = "downloading"
	StateScreening    State = "screening"
	StateRunning      State = "running"
	StateStopping     State = "stopping"
	StateCompleted    State = "completed"
	StateError        State = "error"
)

// IsTerminal reports whether polling should stop once this state is seen.
// Unknown states are treated as in progress.
func (s State) IsTerminal() bool {
	switch s {
	case StateIdle, StateCompleted, StateError:
		return true
	default:
		return false
	}
}

// Progress models
type Progress struct {
	Total        int     `json:"total_symbols"`
	Processed    int     `json:"processed_symbols"`
	CurrentItem  *string `json:"current_symbol"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// Percent returns processed/total*100 clamped to [0,100], or 0 when total is 0.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Processed) / float64(p.Total) * 100
	return math.Max(0, math.Min(100, pct))
}

// JobStatus is replaced wholesale on every poll; it is never patched.
type JobStatus struct {
	State     State    `json:"status"`
	Progress  Progress `json:"progress"`
	IsRunning bool     `json:"is_running"`
}

// Current returns the symbol currently processed, or "".
func (s *JobStatus) Current() string {
	if s == nil || s.Progress.CurrentItem == nil {
		return ""
	}
	return *s.Progress.CurrentItem
}

// ErrorMessage returns the backend-reported job error, or "".
func (s *JobStatus) ErrorMessage() string {
	if s == nil || s.Progress.ErrorMessage == nil {
		return ""
	}
	return *s.Progress.ErrorMessage
}

// Screener run models
type ScreenerResultItem struct {
	Symbol string          `json:"symbol"`
	Data   json.RawMessage `json:"data"`
}

type ScreenerResponse struct {
	Status  string               `json:"status"`
	RunID   *int64               `json:"run_id,omitempty"`
	Results []ScreenerResultItem `json:"results,omitempty"`
	Message *string              `json:"message,omitempty"`
}

// Backtest models
type BacktestTradeItem struct {
	EntryDate         string  `json:"entry_date"`
	EntryPrice        float64 `json:"entry_price"`
	ExitDate          string  `json:"exit_date"`
	ExitPrice         float64 `json:"exit_price"`
	ProfitLoss        float64 `json:"profit_loss"`
	ProfitLossPercent float64 `json:"profit_loss_percent"`
}

type BacktestResultItem struct {
	Symbol      string              `json:"symbol"`
	TotalTrades int                 `json:"total_trades"`
	WinRate     float64             `json:"win_rate"`
	AvgReturn   float64             `json:"avg_return"`
	MaxDrawdown float64             `json:"max_drawdown"`
	SharpeRatio *float64            `json:"sharpe_ratio,omitempty"`
	Trades      []BacktestTradeItem `json:"trades"`
}

type BacktestSummary struct {
	TotalSymbols int     `json:"total_symbols"`
	TotalTrades  int     `json:"total_trades"`
	WinRate      float64 `json:"win_rate"`
	AvgReturn    float64 `json:"avg_return"`
}

type BacktestResponse struct {
	Status  string               `json:"status"`
	RunID   *int64               `json:"run_id,omitempty"`
	Summary *BacktestSummary     `json:"summary,omitempty"`
	Results []BacktestResultItem `json:"results,omitempty"`
	Message *string              `json:"message,omitempty"`
}

// Strategy catalog models
type StrategyParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Default     interface{} `json:"default"`
	Description string      `json:"description"`
}

type Strategy struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Parameters  []StrategyParameter `json:"parameters"`
}

// MessageOf dereferences an optional backend message.
func MessageOf(msg *string) string {
	if msg == nil {
		return ""
	}
	return *msg
}
