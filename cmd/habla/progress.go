package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"habla/internal/executor"
)

// progressPrinter aggregates step progress events into a single display.
// Events arrive from concurrent fetch goroutines.
type progressPrinter struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	bar         *progressbar.ProgressBar
	stepBytes   map[string]int64
	finished    map[string]bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &progressPrinter{
		out:         out,
		interactive: interactive,
		stepBytes:   map[string]int64{},
		finished:    map[string]bool{},
	}
}

func (p *progressPrinter) handle(event executor.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Done {
		if !p.finished[event.Step] {
			p.finished[event.Step] = true
			if !p.interactive {
				fmt.Fprintf(p.out, "%s: done\n", event.Step)
			}
		}
		return
	}

	p.stepBytes[event.Step] = event.BytesDone
	if !p.interactive {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions64(-1,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	var total int64
	for _, n := range p.stepBytes {
		total += n
	}
	_ = p.bar.Set64(total)
}

func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
		fmt.Fprintln(p.out)
	}
}
