package ui

import (
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

// Enabled is false when stdout is not a terminal or NO_COLOR is set.
var Enabled = os.Getenv("NO_COLOR") == "" && isatty.IsTerminal(os.Stdout.Fd())

func paint(code, s string) string {
	if !Enabled {
		return s
	}
	return code + s + ColorReset
}

func Bold(s string) string    { return paint(ColorBold, s) }
func Success(s string) string { return paint(ColorGreen, s) }
func Warn(s string) string    { return paint(ColorYellow, s) }
func Error(s string) string   { return paint(ColorRed, s) }
func Dim(s string) string     { return paint(ColorDim, s) }
func Accent(s string) string  { return paint(ColorCyan, s) }
