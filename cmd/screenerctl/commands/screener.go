package commands

import (
	"fmt"
	"strconv"

	"github.com/alexeyco/simpletable"
	"github.com/urfave/cli/v2"

	"screener-web/internal/models"
	"screener-web/internal/services"
)

func init() {
	registry = append(registry, Watchlists, Run, Results)
}

func Watchlists() *cli.Command {
	return &cli.Command{
		Name:   "watchlists",
		Usage:  "list the watchlists known to the backend",
		Action: ListWatchlists,
	}
}

func Run() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "run a screener against a watchlist",
		Action: RunScreener,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "watchlist", Aliases: []string{"w"}, Usage: "watchlist name", Required: true},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "screener type: roc130 or ema_touch", Value: string(models.ScreenerROC130)},
			&cli.Float64Flag{Name: "roc-threshold", Usage: "roc130: minimum rate of change in percent", Value: 40},
			&cli.IntFlag{Name: "ema-period", Usage: "ema_touch: EMA period", Value: 20},
			&cli.Float64Flag{Name: "min-price", Usage: "ema_touch: minimum price", Value: 5},
			&cli.Int64Flag{Name: "min-volume", Usage: "ema_touch: minimum volume", Value: 100000},
			&cli.StringFlag{Name: "start", Usage: "start date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "end", Usage: "end date (YYYY-MM-DD)"},
		},
	}
}

func Results() *cli.Command {
	return &cli.Command{
		Name:      "results",
		Usage:     "show the results of a previous screener run",
		Action:    ScreenerResults,
		ArgsUsage: "<run id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "screener type, selects the columns"},
		},
	}
}

func ListWatchlists(c *cli.Context) error {
	svc := services.NewWatchlistService(clientFrom(c), nil, 0)
	names, err := svc.List(c.Context)
	if err != nil {
		return userError(err)
	}

	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "#"},
			{Align: simpletable.AlignCenter, Text: "Watchlist"},
		},
	}
	for i, name := range names {
		table.Body.Cells = append(table.Body.Cells, []*simpletable.Cell{
			{Align: simpletable.AlignRight, Text: strconv.Itoa(i + 1)},
			{Align: simpletable.AlignLeft, Text: name},
		})
	}

	table.SetStyle(simpletable.StyleCompactLite)
	fmt.Fprintln(c.App.Writer, table.String())
	return nil
}

func screenerParams(c *cli.Context) (models.ScreenerParams, error) {
	switch t := models.ScreenerType(c.String("type")); t {
	case models.ScreenerROC130:
		return models.ROC130Params{RocThreshold: c.Float64("roc-threshold")}, nil
	case models.ScreenerEMATouch:
		return models.EMATouchParams{
			EMAPeriod: c.Int("ema-period"),
			MinPrice:  c.Float64("min-price"),
			MinVolume: c.Int64("min-volume"),
		}, nil
	default:
		return nil, fmt.Errorf("invalid screener type: %s", t)
	}
}

func RunScreener(c *cli.Context) error {
	params, err := screenerParams(c)
	if err != nil {
		return err
	}

	svc := services.NewScreenerService(clientFrom(c))
	run, err := svc.Run(c.Context, models.ScreenerRequest{
		WatchlistName: c.String("watchlist"),
		Params:        params,
		StartDate:     c.String("start"),
		EndDate:       c.String("end"),
	})
	if err != nil {
		return userError(err)
	}

	if run.RunID != nil {
		fmt.Fprintf(c.App.Writer, "run %d: %d matches\n", *run.RunID, len(run.Table.Rows))
	}
	if msg := models.MessageOf(run.Response.Message); msg != "" {
		fmt.Fprintln(c.App.Writer, msg)
	}
	printResultTable(c.App.Writer, run.Table)
	return nil
}

func ScreenerResults(c *cli.Context) error {
	runID, err := runIDArg(c)
	if err != nil {
		return err
	}

	svc := services.NewScreenerService(clientFrom(c))
	run, err := svc.Results(c.Context, runID, models.ScreenerType(c.String("type")))
	if err != nil {
		return userError(err)
	}

	printResultTable(c.App.Writer, run.Table)
	return nil
}
