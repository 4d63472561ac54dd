// Package commands holds the screenerctl subcommands.
package commands

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/alexeyco/simpletable"
	"github.com/urfave/cli/v2"

	"screener-web/internal/services"
	"screener-web/pkg/backend"
	"screener-web/pkg/errors"
)

// registry collects the subcommand constructors; each app gets fresh
// *cli.Command values because cli mutates them during setup.
var registry []func() *cli.Command

// DefaultList returns every screenerctl subcommand.
func DefaultList() []*cli.Command {
	list := make([]*cli.Command, 0, len(registry))
	for _, build := range registry {
		list = append(list, build())
	}
	return list
}

// NewApp builds the screenerctl application.
func NewApp() *cli.App {
	return &cli.App{
		Name:  "screenerctl",
		Usage: "drive the screener backend from a terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "screener backend base URL",
				Value:   "http://localhost:8000",
				EnvVars: []string{"BACKEND_URL"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per request timeout",
				Value: 30 * time.Second,
			},
		},
		Commands: DefaultList(),
	}
}

func clientFrom(c *cli.Context) *backend.Client {
	return backend.NewClient(c.String("backend"), nil, c.Duration("timeout"))
}

// userError strips the wrapped transport error down to the message a user needs.
func userError(err error) error {
	appErr := errors.As(err)
	if appErr.Err != nil {
		return fmt.Errorf("%s (%s): %v", appErr.Message, appErr.Code, appErr.Err)
	}
	return fmt.Errorf("%s (%s)", appErr.Message, appErr.Code)
}

func runIDArg(c *cli.Context) (int64, error) {
	if c.Args().Len() == 0 {
		return 0, fmt.Errorf("need to specify a run id")
	}
	id, err := strconv.ParseInt(c.Args().Get(0), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id: %s", c.Args().Get(0))
	}
	return id, nil
}

func printResultTable(w io.Writer, t services.ResultTable) {
	if len(t.Rows) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}

	table := simpletable.New()
	header := []*simpletable.Cell{{Align: simpletable.AlignCenter, Text: "Symbol"}}
	for _, col := range t.Columns {
		header = append(header, &simpletable.Cell{Align: simpletable.AlignCenter, Text: col.Label})
	}
	table.Header = &simpletable.Header{Cells: header}

	for _, row := range t.Rows {
		r := []*simpletable.Cell{{Align: simpletable.AlignLeft, Text: row.Symbol}}
		for _, cell := range row.Cells {
			r = append(r, &simpletable.Cell{Align: simpletable.AlignRight, Text: cell})
		}
		table.Body.Cells = append(table.Body.Cells, r)
	}

	table.SetStyle(simpletable.StyleCompactLite)
	fmt.Fprintln(w, table.String())
}
