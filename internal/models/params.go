package models

import (
	"encoding/json"
	"fmt"
)

// ScreenerType selects the backend screener module.
type ScreenerType string

const (
	ScreenerROC130   ScreenerType = "roc130"
	ScreenerEMATouch ScreenerType = "ema_touch"
)

// ScreenerTypes lists the screeners offered in forms, in display order.
var ScreenerTypes = []ScreenerType{ScreenerROC130, ScreenerEMATouch}

// Label is the human name shown in forms and tables.
func (t ScreenerType) Label() string {
	switch t {
	case ScreenerROC130:
		return "ROC130"
	case ScreenerEMATouch:
		return "EMA Touch"
	default:
		return string(t)
	}
}

// ScreenerParams is the parameter record of one screener type.
type ScreenerParams interface {
	Type() ScreenerType
	Validate() error
}

type ROC130Params struct {
	RocThreshold float64 `json:"roc_threshold"`
}

func (ROC130Params) Type() ScreenerType { return ScreenerROC130 }

func (p ROC130Params) Validate() error {
	if p.RocThreshold < 0 || p.RocThreshold > 100 {
		return fmt.Errorf("roc_threshold must be between 0 and 100, got %v", p.RocThreshold)
	}
	return nil
}

type EMATouchParams struct {
	EMAPeriod int     `json:"ema_period"`
	MinPrice  float64 `json:"min_price"`
	MinVolume int64   `json:"min_volume"`
}

func (EMATouchParams) Type() ScreenerType { return ScreenerEMATouch }

func (p EMATouchParams) Validate() error {
	if p.EMAPeriod < 1 {
		return fmt.Errorf("ema_period must be positive, got %d", p.EMAPeriod)
	}
	if p.MinPrice < 0 {
		return fmt.Errorf("min_price must not be negative, got %v", p.MinPrice)
	}
	if p.MinVolume < 0 {
		return fmt.Errorf("min_volume must not be negative, got %d", p.MinVolume)
	}
	return nil
}

// DefaultScreenerParams returns the form defaults for t.
func DefaultScreenerParams(t ScreenerType) (ScreenerParams, error) {
	switch t {
	case ScreenerROC130:
		return ROC130Params{RocThreshold: 40}, nil
	case ScreenerEMATouch:
		return EMATouchParams{EMAPeriod: 20, MinPrice: 5, MinVolume: 100000}, nil
	default:
		return nil, fmt.Errorf("unknown screener type %q", t)
	}
}

// ScreenerRequest is submitted to POST /api/screener/run.
type ScreenerRequest struct {
	WatchlistName string
	Params        ScreenerParams
	StartDate     string
	EndDate       string
}

type screenerRequestWire struct {
	WatchlistName string          `json:"watchlist_name"`
	ScreenerType  ScreenerType    `json:"screener_type"`
	Parameters    json.RawMessage `json:"parameters"`
	StartDate     string          `json:"start_date,omitempty"`
	EndDate       string          `json:"end_date,omitempty"`
}

// Validate checks the fields the backend cannot do without.
func (r ScreenerRequest) Validate() error {
	if r.WatchlistName == "" {
		return fmt.Errorf("watchlist_name is required")
	}
	if r.Params == nil {
		return fmt.Errorf("parameters are required")
	}
	return r.Params.Validate()
}

func (r ScreenerRequest) MarshalJSON() ([]byte, error) {
	if r.Params == nil {
		return nil, fmt.Errorf("screener request without parameters")
	}
	params, err := json.Marshal(r.Params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(screenerRequestWire{
		WatchlistName: r.WatchlistName,
		ScreenerType:  r.Params.Type(),
		Parameters:    params,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
	})
}

// UnmarshalJSON decodes parameters into the record matching screener_type.
// Missing parameter fields keep their defaults.
func (r *ScreenerRequest) UnmarshalJSON(data []byte) error {
	var wire screenerRequestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var params ScreenerParams
	switch wire.ScreenerType {
	case ScreenerROC130:
		p := ROC130Params{RocThreshold: 40}
		if err := decodeParams(wire.Parameters, &p); err != nil {
			return err
		}
		params = p
	case ScreenerEMATouch:
		p := EMATouchParams{EMAPeriod: 20, MinPrice: 5, MinVolume: 100000}
		if err := decodeParams(wire.Parameters, &p); err != nil {
			return err
		}
		params = p
	default:
		return fmt.Errorf("unknown screener type %q", wire.ScreenerType)
	}

	*r = ScreenerRequest{
		WatchlistName: wire.WatchlistName,
		Params:        params,
		StartDate:     wire.StartDate,
		EndDate:       wire.EndDate,
	}
	return nil
}

// StrategyType selects the backend backtest strategy.
type StrategyType string

const StrategyMeanReversion StrategyType = "mean_reversion"

// StrategyParams is the parameter record of one backtest strategy.
type StrategyParams interface {
	Strategy() StrategyType
	Validate() error
}

type MeanReversionParams struct {
	GapThreshold float64 `json:"gap_threshold"`
	ExitDays     int     `json:"exit_days"`
}

func (MeanReversionParams) Strategy() StrategyType { return StrategyMeanReversion }

func (p MeanReversionParams) Validate() error {
	if p.GapThreshold >= 0 {
		return fmt.Errorf("gap_threshold must be negative, got %v", p.GapThreshold)
	}
	if p.ExitDays < 1 {
		return fmt.Errorf("exit_days must be positive, got %d", p.ExitDays)
	}
	return nil
}

// DefaultStrategyParams returns the form defaults for s.
func DefaultStrategyParams(s StrategyType) (StrategyParams, error) {
	switch s {
	case StrategyMeanReversion:
		return MeanReversionParams{GapThreshold: -0.03, ExitDays: 5}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", s)
	}
}

// BacktestRequest is submitted to POST /api/backtest/run.
type BacktestRequest struct {
	Params        StrategyParams
	Symbols       []string
	WatchlistName string
	StartDate     string
	EndDate       string
}

type backtestRequestWire struct {
	StrategyType  StrategyType    `json:"strategy_type"`
	Parameters    json.RawMessage `json:"parameters"`
	Symbols       []string        `json:"symbols,omitempty"`
	WatchlistName string          `json:"watchlist_name,omitempty"`
	StartDate     string          `json:"start_date,omitempty"`
	EndDate       string          `json:"end_date,omitempty"`
}

func (r BacktestRequest) Validate() error {
	if r.Params == nil {
		return fmt.Errorf("parameters are required")
	}
	if r.WatchlistName == "" && len(r.Symbols) == 0 {
		return fmt.Errorf("either watchlist_name or symbols is required")
	}
	return r.Params.Validate()
}

func (r BacktestRequest) MarshalJSON() ([]byte, error) {
	if r.Params == nil {
		return nil, fmt.Errorf("backtest request without parameters")
	}
	params, err := json.Marshal(r.Params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(backtestRequestWire{
		StrategyType:  r.Params.Strategy(),
		Parameters:    params,
		Symbols:       r.Symbols,
		WatchlistName: r.WatchlistName,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
	})
}

func (r *BacktestRequest) UnmarshalJSON(data []byte) error {
	var wire backtestRequestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var params StrategyParams
	switch wire.StrategyType {
	case StrategyMeanReversion:
		p := MeanReversionParams{GapThreshold: -0.03, ExitDays: 5}
		if err := decodeParams(wire.Parameters, &p); err != nil {
			return err
		}
		params = p
	default:
		return fmt.Errorf("unknown strategy %q", wire.StrategyType)
	}

	*r = BacktestRequest{
		Params:        params,
		Symbols:       wire.Symbols,
		WatchlistName: wire.WatchlistName,
		StartDate:     wire.StartDate,
		EndDate:       wire.EndDate,
	}
	return nil
}

func decodeParams(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}
