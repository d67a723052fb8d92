package color

import (
	"fmt"

	"github.com/muesli/termenv"
)

// ANSI palette indices
const (
	Red       = "1"
	Green     = "2"
	Yellow    = "3"
	Blue      = "4"
	Cyan      = "6"
	Gray      = "8"
	BrightRed = "9"
)

var profile = termenv.EnvColorProfile()

// EnableColor switches colored output on or off
func EnableColor(enable bool) {
	switch {
	case !enable:
		profile = termenv.Ascii
	case profile == termenv.Ascii:
		profile = termenv.ANSI256
	}
}

func IsColorEnabled() bool {
	return profile != termenv.Ascii
}

// Colorize paints text with one of the palette colors above
func Colorize(color, text string) string {
	return profile.String(text).Foreground(profile.Color(color)).String()
}

func RedText(text string) string       { return Colorize(Red, text) }
func BrightRedText(text string) string { return Colorize(BrightRed, text) }
func GreenText(text string) string     { return Colorize(Green, text) }
func YellowText(text string) string    { return Colorize(Yellow, text) }
func BlueText(text string) string      { return Colorize(Blue, text) }
func CyanText(text string) string      { return Colorize(Cyan, text) }
func GrayText(text string) string      { return Colorize(Gray, text) }

func BoldText(text string) string {
	return profile.String(text).Bold().String()
}

func Position(line, col int) string {
	return CyanText(fmt.Sprintf("%d:%d", line, col))
}

// ErrorWithPosition formats a source error as "Error at line:col: message"
func ErrorWithPosition(line, col int, message string) string {
	return fmt.Sprintf("%s at %s: %s", BrightRedText(BoldText("Error")), Position(line, col), message)
}

// Trap formats an execution fault
func Trap(message string) string {
	return fmt.Sprintf("%s: %s", BrightRedText(BoldText("Trap")), message)
}

// Result formats one returned value as "type value"
func Result(typ, value string) string {
	return BlueText(typ) + " " + YellowText(value)
}
