package runner

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives progress events from the runner.
type Reporter interface {
	Start(rows, batches int)
	BatchStarted(n, total, firstRow, lastRow int)
	RowDone()
	Finish()
}

type NopReporter struct{}

func (NopReporter) Start(int, int) {}
func (NopReporter) BatchStarted(int, int, int, int) {}
func (NopReporter) RowDone() {}
func (NopReporter) Finish() {}

// BarReporter draws a row progress bar labelled with the current batch.
type BarReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func NewBarReporter(w io.Writer) *BarReporter {
	return &BarReporter{w: w}
}

func (b *BarReporter) Start(rows, batches int) {
	b.bar = progressbar.NewOptions(rows,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(fmt.Sprintf("Batches 0/%d", batches)),
		progressbar.OptionSetItsString("row"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(200*time.Millisecond),
	)
}

func (b *BarReporter) BatchStarted(n, total, firstRow, lastRow int) {
	if b.bar != nil {
		b.bar.Describe(fmt.Sprintf("Batch %d/%d rows %d-%d", n, total, firstRow+1, lastRow+1))
	}
}

func (b *BarReporter) RowDone() {
	if b.bar != nil {
		b.bar.Add(1)
	}
}

func (b *BarReporter) Finish() {
	if b.bar != nil {
		b.bar.Finish()
		fmt.Fprintln(b.w)
	}
}
