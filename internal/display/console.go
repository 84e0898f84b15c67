package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/internal/weather"
)

const clearScreen = "\033[H\033[2J"

// Theme is the console palette. Each color adapts to light and dark terminals.
type Theme struct {
	Primary lipgloss.AdaptiveColor
	Muted   lipgloss.AdaptiveColor
	Border  lipgloss.AdaptiveColor
	Green   lipgloss.AdaptiveColor
	Yellow  lipgloss.AdaptiveColor
	Red     lipgloss.AdaptiveColor
	Blue    lipgloss.AdaptiveColor
}

// Color is the palette the console renders with.
var Color = Theme{
	Primary: lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"},
	Muted:   lipgloss.AdaptiveColor{Light: "#969B86", Dark: "#696969"},
	Border:  lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"},
	Green:   lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF00"},
	Yellow:  lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"},
	Red:     lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF0000"},
	Blue:    lipgloss.AdaptiveColor{Light: "#005FD7", Dark: "#5FAFFF"},
}

// Console renders cycle reports as per-airport tables.
type Console struct {
	out         io.Writer
	clearScreen bool

	title  lipgloss.Style
	header lipgloss.Style
	muted  lipgloss.Style
	cell   lipgloss.Style
	border lipgloss.Style
	green  lipgloss.Style
	yellow lipgloss.Style
	red    lipgloss.Style
	blue   lipgloss.Style
}

// NewConsole creates a renderer writing to out. Color support is detected from out.
func NewConsole(out io.Writer, clearScreen bool) *Console {
	re := lipgloss.NewRenderer(out)
	base := re.NewStyle()

	return &Console{
		out:         out,
		clearScreen: clearScreen,
		title:       base.Bold(true).Foreground(Color.Primary),
		header:      base.Bold(true).Padding(0, 1),
		muted:       base.Foreground(Color.Muted),
		cell:        base.Padding(0, 1),
		border:      base.Foreground(Color.Border),
		green:       base.Foreground(Color.Green),
		yellow:      base.Foreground(Color.Yellow),
		red:         base.Foreground(Color.Red).Bold(true),
		blue:        base.Foreground(Color.Blue),
	}
}

// Render writes the report, clearing the terminal first when configured.
func (c *Console) Render(report *inference.Report) error {
	var b strings.Builder
	if c.clearScreen {
		b.WriteString(clearScreen)
	}
	b.WriteString(c.Format(report))

	_, err := io.WriteString(c.out, b.String())
	return err
}

// Format returns the report as text.
func (c *Console) Format(report *inference.Report) string {
	var b strings.Builder

	b.WriteString(c.title.Render("APPROACH MONITOR"))
	b.WriteString(c.muted.Render(fmt.Sprintf("  cycle %s  observations %d  confirmed %d  emergencies %d",
		report.CycleAt.Local().Format(time.DateTime),
		report.Stats.Observations,
		report.Stats.Confirmed,
		report.Stats.Emergencies)))
	b.WriteString("\n")

	for _, ap := range report.Airports {
		b.WriteString("\n")
		b.WriteString(c.airportHeader(ap))
		b.WriteString("\n")

		if len(ap.Flights) == 0 {
			b.WriteString(c.blue.Render("  No inbound flights detected."))
			b.WriteString("\n")
			continue
		}
		b.WriteString(c.flightTable(ap.Flights))
		b.WriteString("\n")
	}

	return b.String()
}

func (c *Console) airportHeader(ap inference.AirportReport) string {
	runway := c.green.Render(string(ap.Runway))
	if ap.Runway == weather.RunwayWet {
		runway = c.red.Render(string(ap.Runway))
	}

	wx := fmt.Sprintf("  [Runway: %s | Wind: %.1f km/h | Precip: %.1f mm | Rain chance: %.0f%% | Risk: %s]",
		runway,
		ap.Weather.WindSpeedKmh,
		ap.Weather.PrecipitationMm,
		ap.Weather.PrecipitationProbability,
		c.riskStyle(ap.Risk).Render(string(ap.Risk)))
	if ap.Weather.Degraded {
		wx += c.muted.Render(" (weather unavailable)")
	}

	return c.title.Render(fmt.Sprintf("%s (%s)", ap.Airport.Name, ap.Airport.ICAO)) + "\n" + wx
}

func (c *Console) flightTable(flights []inference.FlightRecord) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(c.border).
		Headers("CALLSIGN", "DIST", "ALT", "SPEED", "TREND", "ETA", "STATUS", "REASON")

	for _, f := range flights {
		t.Row(
			f.Callsign,
			fmt.Sprintf("%.0f km", f.DistanceKm),
			fmt.Sprintf("%.0f ft", f.AltitudeFt),
			fmt.Sprintf("%.0f km/h", f.GroundSpeedKmh),
			string(f.SpeedTrend),
			fmt.Sprintf("%.0f min", f.ETAMinutes),
			string(f.Status),
			f.DelayReason,
		)
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return c.header
		}
		if col == 6 && row >= 0 && row < len(flights) {
			return c.statusStyle(flights[row].Status).Padding(0, 1)
		}
		return c.cell
	})

	return t.Render()
}

func (c *Console) statusStyle(s inference.Status) lipgloss.Style {
	switch s {
	case inference.StatusEmergency:
		return c.red
	case inference.StatusDelayed:
		return c.yellow
	default:
		return c.green
	}
}

func (c *Console) riskStyle(r weather.RiskLevel) lipgloss.Style {
	switch r {
	case weather.RiskCritical:
		return c.red
	case weather.RiskMedium:
		return c.yellow
	default:
		return c.green
	}
}
