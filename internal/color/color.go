package color

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var Header *color.Color = color.New(color.FgWhite, color.Bold)
var Missing *color.Color = color.New(color.FgYellow, color.Bold)
var Applied *color.Color = color.New(color.FgGreen)
var Warning *color.Color = color.New(color.FgMagenta, color.Bold)
var Error *color.Color = color.New(color.FgRed, color.Bold)

// Color modes accepted by SetMode
const (
	ModeAlways = "always"
	ModeAuto   = "auto"
	ModeNever  = "never"
)

func AlwaysColor() {
	color.NoColor = false
}

// AutoColor enables color when stdout, where reports are written, is a terminal
func AutoColor() {
	color.NoColor = !terminal(os.Stdout)
}

// EnabledFor reports whether output written to w should be colored under
// mode. Log lines go to stderr, which can be a terminal while stdout is
// redirected and the other way round.
func EnabledFor(mode string, w io.Writer) bool {
	switch mode {
	case ModeAlways:
		return true
	case ModeNever:
		return false
	}
	f, ok := w.(*os.File)
	return ok && terminal(f)
}

func terminal(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func NeverColor() {
	color.NoColor = true
}

// Enabled reports whether output is currently colored
func Enabled() bool {
	return !color.NoColor
}

// SetMode applies one of the always, auto, or never modes
func SetMode(mode string) error {
	switch mode {
	case ModeAlways:
		AlwaysColor()
	case ModeAuto, "":
		AutoColor()
	case ModeNever:
		NeverColor()
	default:
		return fmt.Errorf("invalid color mode %q (want always, auto, or never)", mode)
	}
	return nil
}
