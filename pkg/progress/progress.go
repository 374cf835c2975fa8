// Package progress renders a BackgroundJob's stage completion as a
// terminal progress display for the CLI's "job watch" command. Adapted
// from the teacher's pkg/spinners (mpb.BarFiller helpers used to decorate
// mirror-copy progress bars) onto this core's stage/BackgroundJob shape.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/imagevault/imagevault/pkg/apitypes"
)

// nolint: ireturn
func spinnerLeft() mpb.BarFiller {
	return mpb.SpinnerStyle("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏", " ").PositionLeft().Build()
}

func barFillerClearOnAbort() mpb.BarOption {
	return mpb.BarFillerMiddleware(func(base mpb.BarFiller) mpb.BarFiller {
		return mpb.BarFillerFunc(func(w io.Writer, st decor.Statistics) error {
			if st.Aborted {
				_, err := io.WriteString(w, "")
				return fmt.Errorf("%w", err)
			}
			return base.Fill(w, st)
		})
	})
}

// JobWatcher renders one bar per stage of a BackgroundJob and updates them
// as the job progresses.
type JobWatcher struct {
	progress *mpb.Progress
	bars     map[apitypes.StageName]*mpb.Bar
}

// NewJobWatcher renders to out. When out isn't a terminal (piped to a file,
// redirected under a scheduler) the bars are not rendered at all: output
// goes to io.Discard, the way the teacher's progress containers fall back
// to io.Discard for a non-interactive run (filtered-collector.go's IsTerminal check) instead of
// garbling a log file with carriage-return redraws.
func NewJobWatcher(out *os.File) *JobWatcher {
	isTerminal := term.IsTerminal(int(out.Fd()))
	return &JobWatcher{
		progress: mpb.New(
			mpb.WithOutput(out),
			mpb.WithWidth(48),
			mpb.ContainerOptional(mpb.WithOutput(io.Discard), !isTerminal),
		),
		bars: map[apitypes.StageName]*mpb.Bar{},
	}
}

// Sync creates bars for any stage seen for the first time and updates
// every known stage's current value to its recorded completedItems.
func (w *JobWatcher) Sync(job *apitypes.BackgroundJob) {
	for name, stage := range job.Stages {
		bar, ok := w.bars[name]
		if !ok {
			opts := []mpb.BarOption{
				mpb.PrependDecorators(decor.Name(string(name)+" ", decor.WCSyncSpaceR)),
				mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")),
				barFillerClearOnAbort(),
			}
			if stage.TotalItems == 0 {
				// Planned total not yet known (stage just seeded): show an
				// indeterminate spinner instead of a 0/0 bar.
				opts = append(opts, mpb.BarFillerMiddleware(func(mpb.BarFiller) mpb.BarFiller { return spinnerLeft() }))
			}
			bar = w.progress.AddBar(stage.TotalItems, opts...)
			w.bars[name] = bar
		}
		bar.SetCurrent(stage.CompletedItems)
		if stage.TotalItems > 0 {
			bar.SetTotal(stage.TotalItems, stage.Status == apitypes.StatusCompleted)
		}
	}
}

// Close waits for the underlying mpb.Progress renderer to flush.
func (w *JobWatcher) Close() {
	w.progress.Wait()
}
