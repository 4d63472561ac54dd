package poller

import (
	"fmt"
	"math"
	"strings"

	"screener-web/internal/models"
)

const barWidth = 30

// View is an immutable snapshot of what a mounted status view displays.
type View struct {
	Status     *models.JobStatus
	FetchError string
	StopError  string
	Polling    bool
}

// Visible is false while nothing is known yet or the backend is idle.
func (v View) Visible() bool {
	return v.Status != nil && v.Status.State != models.StateIdle
}

// Percent is the unrounded progress in [0,100].
func (v View) Percent() float64 {
	if v.Status == nil {
		return 0
	}
	return v.Status.Progress.Percent()
}

// RoundedPercent is the value shown to the user.
func (v View) RoundedPercent() int {
	return int(math.Round(v.Percent()))
}

func (v View) PercentLabel() string {
	return fmt.Sprintf("%d%%", v.RoundedPercent())
}

// CanStop reports whether the stop control is offered.
func (v View) CanStop() bool {
	return v.Status != nil && v.Status.IsRunning
}

func (v View) Stopping() bool {
	return v.Status != nil && v.Status.State == models.StateStopping
}

// Terminal reports whether the last known status ends polling.
func (v View) Terminal() bool {
	return v.Status != nil && v.Status.State.IsTerminal()
}

// Headline is "Status: <state>" with the current symbol appended when known.
func (v View) Headline() string {
	if v.Status == nil {
		return ""
	}
	line := "Status: " + string(v.Status.State)
	if current := v.Status.Current(); current != "" {
		line += " - " + current
	}
	return line
}

// Counts is the "<processed> of <total> symbols processed" caption.
func (v View) Counts() string {
	if v.Status == nil {
		return ""
	}
	return fmt.Sprintf("%d of %d symbols processed", v.Status.Progress.Processed, v.Status.Progress.Total)
}

// Line renders the view as a single terminal line. Idle renders nothing
// except pending error banners.
func (v View) Line() string {
	var parts []string
	if v.Visible() {
		filled := int(math.Round(v.Percent() / 100 * barWidth))
		bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
		parts = append(parts, fmt.Sprintf("%s [%s] %4s  %s", v.Headline(), bar, v.PercentLabel(), v.Counts()))
		if msg := v.Status.ErrorMessage(); msg != "" {
			parts = append(parts, "job error: "+msg)
		}
	}
	if v.FetchError != "" {
		parts = append(parts, "error: "+v.FetchError)
	}
	if v.StopError != "" {
		parts = append(parts, "stop failed: "+v.StopError)
	}
	return strings.Join(parts, "  |  ")
}
