package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// ASCIILogo is printed before interactive commands
const ASCIILogo = `
    ╔══════════════════════════════════════════════╗
    ║  ██╗  ██╗██╗  ██╗███████╗██████╗ ██╗         ║
    ║  ╚██╗██╔╝██║  ██║██╔════╝██╔══██╗██║         ║
    ║   ╚███╔╝ ███████║███████╗██║  ██║██║         ║
    ║   ██╔██╗ ██╔══██║╚════██║██║  ██║██║         ║
    ║  ██╔╝ ██╗██║  ██║███████║██████╔╝███████╗    ║
    ║  ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═════╝ ╚══════╝    ║
    ║      小红书 NOTE, COMMENT & MEDIA EXTRACTOR     ║
    ╚══════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

var (
	quiet   atomic.Bool
	noColor atomic.Bool
)

// SetQuietMode suppresses everything but errors
func SetQuietMode(q bool) { quiet.Store(q) }

// SetNoColor disables ANSI colors
func SetNoColor(v bool) { noColor.Store(v) }

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if noColor.Load() {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func out() io.Writer {
	if quiet.Load() {
		return io.Discard
	}
	return os.Stdout
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	fmt.Fprint(out(), Cyan(ASCIILogo))
}

// PrintError prints an error message in red, even in quiet mode
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(os.Stderr, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(out(), Green(msg))
}

// PrintInfo prints an info message in cyan
func PrintInfo(label string, value string) {
	fmt.Fprintf(out(), "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(out(), Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out(), Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(out(), Magenta(msg))
}
