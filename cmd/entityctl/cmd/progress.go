package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer"
)

// isTTY reports whether w is an interactive terminal.
func isTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// progressPrinter redraws one status line on a terminal and stays silent
// otherwise.
func progressPrinter(w io.Writer) func(indexer.Progress) {
	if !isTTY(w) {
		return nil
	}
	return func(p indexer.Progress) {
		rate := 0.0
		if s := p.Elapsed.Seconds(); s > 0 {
			rate = float64(p.Merged+p.Failed) / s
		}
		fmt.Fprintf(w, "\r\033[Kread %d  merged %d  failed %d  %.1f docs/s", p.Read, p.Merged, p.Failed, rate)
	}
}
