package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// indexProgress reports the progress of writing the reference index.
type indexProgress struct {
	quiet     bool
	out       io.Writer
	bar       *progressbar.ProgressBar
	startTime time.Time
	written   int
}

func newIndexProgress(out io.Writer, quiet bool) *indexProgress {
	return &indexProgress{
		quiet:     quiet,
		out:       out,
		startTime: time.Now(),
	}
}

func (p *indexProgress) OnStart(totalRefs int) {
	if p.quiet {
		return
	}
	p.bar = progressbar.NewOptions(totalRefs,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("Indexing references"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("refs/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.out)
		}),
	)
}

// OnReference is passed to the index writer and called once per stored reference.
func (p *indexProgress) OnReference() {
	p.written++
	if p.bar != nil {
		p.bar.Add(1)
	}
}

func (p *indexProgress) OnComplete(w io.Writer, units int, path string) {
	if p.quiet {
		return
	}
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
	fmt.Fprintf(w, "✓ Indexed %s references from %s units into %s (took %.1fs)\n",
		formatNumber(p.written), formatNumber(units), path, time.Since(p.startTime).Seconds())
}

// formatNumber adds thousands separators.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
