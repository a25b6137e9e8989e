package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// out receives command results, errOut receives status lines. Both are
// swapped in tests.
var (
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

// notice writes one marked status line to errOut.
func notice(color, mark, format string, args ...any) {
	fmt.Fprintln(errOut, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { notice(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { notice(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { notice(colorYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { notice(colorCyan, "→", format, args...) }

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(errOut, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

// newTable returns a tab-aligned writer on out with header as its first row.
func newTable(header string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	return tw
}
