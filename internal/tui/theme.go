package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha
const (
	colorMauve    lipgloss.Color = "#cba6f7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorPeach    lipgloss.Color = "#fab387"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorBlue     lipgloss.Color = "#89b4fa"
	colorLavender lipgloss.Color = "#b4befe"

	colorText     lipgloss.Color = "#cdd6f4"
	colorSubtext0 lipgloss.Color = "#a6adc8"
	colorOverlay0 lipgloss.Color = "#6c7086"
	colorSurface1 lipgloss.Color = "#45475a"
)

const (
	colorBrand   = colorMauve
	colorFocus   = colorLavender
	colorSuccess = colorGreen
	colorError   = colorRed
	colorInfo    = colorTeal
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorBrand)
	networkStyle = lipgloss.NewStyle().Foreground(colorPeach)
	labelStyle   = lipgloss.NewStyle().Foreground(colorSubtext0).Width(14)
	valueStyle   = lipgloss.NewStyle().Foreground(colorText)
	amountStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	dimStyle     = lipgloss.NewStyle().Foreground(colorOverlay0)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface1).
			Padding(0, 1)
	focusedPanelStyle = panelStyle.BorderForeground(colorFocus)
	modalStyle        = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(colorBrand).
				Padding(1, 2)

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo)
)
