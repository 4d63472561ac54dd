package commands

import (
	stderrors "errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"screener-web/config"
	"screener-web/internal/poller"
)

func init() {
	registry = append(registry, Status, Stop)
}

func Status() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "show the screener job progress",
		Action: ShowStatus,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "keep polling until the job finishes or Ctrl-C",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "poll interval in watch mode, kept within 1s-2s",
				Value: poller.DefaultInterval,
			},
		},
	}
}

func Stop() *cli.Command {
	return &cli.Command{
		Name:   "stop",
		Usage:  "stop the running screener job",
		Action: StopJob,
	}
}

func describe(v poller.View) string {
	if line := v.Line(); line != "" {
		return line
	}
	return "no screener job running"
}

func ShowStatus(c *cli.Context) error {
	w := c.App.Writer

	if !c.Bool("watch") {
		view := poller.New(clientFrom(c)).Refresh(c.Context)
		fmt.Fprintln(w, describe(view))
		if view.FetchError != "" {
			return fmt.Errorf("status unavailable")
		}
		return nil
	}

	p := poller.New(clientFrom(c),
		poller.WithInterval(config.ClampPollInterval(c.Duration("interval"))),
		poller.WithOnChange(func(v poller.View) {
			if v.Status == nil && v.FetchError == "" {
				return
			}
			// redraw the line in place
			fmt.Fprintf(w, "\r\033[K%s", describe(v))
		}),
	)
	p.Run(c.Context)
	fmt.Fprintln(w)
	return nil
}

func StopJob(c *cli.Context) error {
	p := poller.New(clientFrom(c))
	if view := p.Refresh(c.Context); view.FetchError != "" {
		return fmt.Errorf("status unavailable: %s", view.FetchError)
	}

	err := p.Cancel(c.Context)
	switch {
	case stderrors.Is(err, poller.ErrNotRunning):
		fmt.Fprintln(c.App.Writer, "no screener job running")
		return nil
	case err != nil:
		return userError(err)
	}

	fmt.Fprintln(c.App.Writer, describe(p.Snapshot()))
	return nil
}
