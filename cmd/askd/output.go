package main

import (
	"fmt"
	"os"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + ansiReset
}

// markLine prefixes a message with a colored marker glyph. All CLI
// chatter goes to stderr so stdout stays clean for answers, task IDs,
// and tokens piped to other programs.
func markLine(color, mark, format string, args ...any) string {
	return colorize(color, mark+" "+fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, markLine(ansiGreen, "✓", format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, markLine(ansiRed, "✗", format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, markLine(ansiYellow, "⚠", format, args...))
}

func printStep(format string, args ...any) {
	fmt.Fprintln(os.Stderr, markLine(ansiCyan, "→", format, args...))
}

// printStatus renders one "Label: value" line of the status command.
func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
