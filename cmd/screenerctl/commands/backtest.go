package commands

import (
	"fmt"
	"strings"

	"github.com/alexeyco/simpletable"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"screener-web/internal/models"
	"screener-web/internal/services"
)

func init() {
	registry = append(registry, Backtest, Strategies)
}

func Backtest() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "run and inspect backtests",
		Subcommands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run a backtest on a watchlist or a list of symbols",
				Action: RunBacktest,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "strategy", Aliases: []string{"s"}, Usage: "strategy id", Value: string(models.StrategyMeanReversion)},
					&cli.StringFlag{Name: "watchlist", Aliases: []string{"w"}, Usage: "watchlist name"},
					&cli.StringSliceFlag{Name: "symbol", Usage: "symbol to test, repeatable"},
					&cli.Float64Flag{Name: "gap-threshold", Usage: "mean_reversion: gap down threshold", Value: -0.03},
					&cli.IntFlag{Name: "exit-days", Usage: "mean_reversion: days until exit", Value: 5},
					&cli.StringFlag{Name: "start", Usage: "start date (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "end", Usage: "end date (YYYY-MM-DD)"},
				},
			},
			{
				Name:      "results",
				Usage:     "show the results of a previous backtest run",
				Action:    BacktestResults,
				ArgsUsage: "<run id>",
			},
		},
	}
}

func Strategies() *cli.Command {
	return &cli.Command{
		Name:   "strategies",
		Usage:  "list the backtest strategies and their parameters",
		Action: ListStrategies,
	}
}

func RunBacktest(c *cli.Context) error {
	var params models.StrategyParams
	switch s := models.StrategyType(c.String("strategy")); s {
	case models.StrategyMeanReversion:
		params = models.MeanReversionParams{GapThreshold: c.Float64("gap-threshold"), ExitDays: c.Int("exit-days")}
	default:
		return fmt.Errorf("invalid strategy: %s", s)
	}

	symbols := lo.Uniq(lo.Compact(lo.Map(c.StringSlice("symbol"), func(s string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})))

	svc := services.NewBacktestService(clientFrom(c))
	run, err := svc.Run(c.Context, models.BacktestRequest{
		Params:        params,
		Symbols:       symbols,
		WatchlistName: c.String("watchlist"),
		StartDate:     c.String("start"),
		EndDate:       c.String("end"),
	})
	if err != nil {
		return userError(err)
	}

	printBacktest(c, run)
	return nil
}

func BacktestResults(c *cli.Context) error {
	runID, err := runIDArg(c)
	if err != nil {
		return err
	}

	svc := services.NewBacktestService(clientFrom(c))
	run, err := svc.Results(c.Context, runID)
	if err != nil {
		return userError(err)
	}

	printBacktest(c, run)
	return nil
}

func printBacktest(c *cli.Context, run *services.BacktestRun) {
	w := c.App.Writer
	if run.RunID != nil {
		fmt.Fprintf(w, "run %d\n", *run.RunID)
	}
	if s := run.Response.Summary; s != nil {
		fmt.Fprintf(w, "%d symbols, %d trades, win rate %s, avg return %s\n",
			s.TotalSymbols, s.TotalTrades, services.FormatRatioPercent(s.WinRate), services.FormatDecimal(s.AvgReturn))
	}
	printResultTable(w, run.Table)
}

func ListStrategies(c *cli.Context) error {
	svc := services.NewBacktestService(clientFrom(c))
	strategies, err := svc.Strategies(c.Context)
	if err != nil {
		return userError(err)
	}

	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "Strategy"},
			{Align: simpletable.AlignCenter, Text: "Parameter"},
			{Align: simpletable.AlignCenter, Text: "Default"},
			{Align: simpletable.AlignCenter, Text: "Description"},
		},
	}
	for _, s := range strategies {
		for _, p := range s.Parameters {
			table.Body.Cells = append(table.Body.Cells, []*simpletable.Cell{
				{Align: simpletable.AlignLeft, Text: s.ID},
				{Align: simpletable.AlignLeft, Text: p.Name},
				{Align: simpletable.AlignRight, Text: fmt.Sprint(p.Default)},
				{Align: simpletable.AlignLeft, Text: p.Description},
			})
		}
	}

	table.SetStyle(simpletable.StyleCompactLite)
	fmt.Fprintln(c.App.Writer, table.String())
	return nil
}
