package monitor

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/term"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/color"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/link"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - connected, picked up
	ErrorColor   = lipgloss.Color("#FF5555") // Red - disconnected, recording
	WarningColor = lipgloss.Color("#FFA500") // Orange - pending, needs pickup
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Layout constants
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
	padCellWidth     = 5
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true).
			PaddingLeft(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(10)

	valueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	warningEventStyle = lipgloss.NewStyle().
				Foreground(WarningColor)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 1)
)

// Status markers
const (
	markerUp      = "●"
	markerPending = "◐"
	markerDown    = "○"
	markerOK      = "✓"
	markerWait    = "…"
)

// stateStyle colors a link state.
func stateStyle(s link.State) (lipgloss.Style, string) {
	switch s {
	case link.Connected:
		return lipgloss.NewStyle().Foreground(SuccessColor), markerUp
	case link.HandshakePending:
		return lipgloss.NewStyle().Foreground(WarningColor), markerPending
	default:
		return lipgloss.NewStyle().Foreground(ErrorColor), markerDown
	}
}

// unlit is shown for pads that are off so the grid stays visible.
var unlit = colorful.Color{R: 0.12, G: 0.12, B: 0.12}

// padColors returns the background and label colors for a pad preview.
// Dark pads get a light label and bright pads a dark one.
func padColors(c color.RGB) (bg, fg lipgloss.Color) {
	cf := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	if c == (color.RGB{}) {
		cf = unlit
	}
	l, _, _ := cf.Lab()
	label := colorful.Color{R: 1, G: 1, B: 1}
	if l > 0.6 {
		label = colorful.Color{}
	}
	return lipgloss.Color(cf.Clamped().Hex()), lipgloss.Color(label.Hex())
}

// Available reports whether stdout is a terminal the monitor can draw on.
func Available() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// GetTerminalSize returns the current terminal width and height
func GetTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, 24
	}
	return clampWidth(width), height
}

func clampWidth(width int) int {
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}
