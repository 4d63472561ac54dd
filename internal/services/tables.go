package services

import (
	"sort"
	"strconv"

	"screener-web/internal/models"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Column describes one result table column read from a result's data object.
type Column struct {
	Key     string
	Label   string
	Percent bool
}

type ResultRow struct {
	Symbol string
	Cells  []string
}

// ResultTable is a rendered-ready screener or backtest result table.
type ResultTable struct {
	Columns []Column
	Rows    []ResultRow
}

var screenerColumns = map[models.ScreenerType][]Column{
	models.ScreenerROC130: {
		{Key: "roc_yesterday", Label: "ROC (yesterday)", Percent: true},
		{Key: "roc_day_before", Label: "ROC (day before)", Percent: true},
	},
}

// ScreenerTable lays out screener results. Known screener types get fixed
// columns; others show every key found in the data objects, sorted.
func ScreenerTable(t models.ScreenerType, results []models.ScreenerResultItem) ResultTable {
	columns, ok := screenerColumns[t]
	if !ok {
		columns = discoverColumns(results)
	}

	rows := lo.Map(results, func(item models.ScreenerResultItem, _ int) ResultRow {
		return ResultRow{
			Symbol: item.Symbol,
			Cells: lo.Map(columns, func(col Column, _ int) string {
				return formatCell(gjson.GetBytes(item.Data, col.Key), col.Percent)
			}),
		}
	})
	return ResultTable{Columns: columns, Rows: rows}
}

func discoverColumns(results []models.ScreenerResultItem) []Column {
	var keys []string
	for _, item := range results {
		gjson.ParseBytes(item.Data).ForEach(func(key, _ gjson.Result) bool {
			keys = append(keys, key.String())
			return true
		})
	}
	keys = lo.Uniq(keys)
	sort.Strings(keys)
	return lo.Map(keys, func(key string, _ int) Column {
		return Column{Key: key, Label: key}
	})
}

func formatCell(v gjson.Result, percent bool) string {
	switch v.Type {
	case gjson.Null:
		return "-"
	case gjson.Number:
		out := FormatDecimal(v.Float())
		if percent {
			out += "%"
		}
		return out
	default:
		return v.String()
	}
}

// FormatDecimal renders v with two decimals, half away from zero.
func FormatDecimal(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatRatioPercent renders a 0..1 ratio as a percentage with two decimals.
func FormatRatioPercent(v float64) string {
	return decimal.NewFromFloat(v).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

var backtestColumns = []Column{
	{Key: "total_trades", Label: "Trades"},
	{Key: "win_rate", Label: "Win rate"},
	{Key: "avg_return", Label: "Avg return"},
	{Key: "max_drawdown", Label: "Max drawdown"},
	{Key: "sharpe_ratio", Label: "Sharpe"},
}

// BacktestTable lays out per-symbol backtest results.
func BacktestTable(results []models.BacktestResultItem) ResultTable {
	rows := lo.Map(results, func(item models.BacktestResultItem, _ int) ResultRow {
		sharpe := "-"
		if item.SharpeRatio != nil {
			sharpe = FormatDecimal(*item.SharpeRatio)
		}
		return ResultRow{
			Symbol: item.Symbol,
			Cells: []string{
				strconv.Itoa(item.TotalTrades),
				FormatRatioPercent(item.WinRate),
				FormatDecimal(item.AvgReturn),
				FormatDecimal(item.MaxDrawdown),
				sharpe,
			},
		}
	})
	return ResultTable{Columns: backtestColumns, Rows: rows}
}
