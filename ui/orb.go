package ui

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	orbCharsW = 44
	orbCharsH = 15
)

var (
	pixelColorsRec  = []string{"", "226", "220", "214", "208", "196", "160", "124", "88", "52", "236", "236", "236", "236", "255", "249"}
	pixelColorsIdle = []string{"", "195", "159", "123", "87", "45", "39", "33", "27", "236", "236", "236", "236", "236", "255", "249"}
	pixelStylesRec  [16]lipgloss.Style
	pixelStylesIdle [16]lipgloss.Style
	pixelBgRec      [16][16]lipgloss.Style
	pixelBgIdle     [16][16]lipgloss.Style

	// 24-step grey ramp (xterm 232..255) used while the orb fades out
	greyStyles [24]lipgloss.Style
)

func init() {
	build := func(colors []string, fg *[16]lipgloss.Style, bg *[16][16]lipgloss.Style) {
		for i, c := range colors {
			if c == "" {
				continue
			}
			fg[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
			for j, b := range colors {
				if b != "" {
					bg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Background(lipgloss.Color(b))
				}
			}
		}
	}
	build(pixelColorsRec, &pixelStylesRec, &pixelBgRec)
	build(pixelColorsIdle, &pixelStylesIdle, &pixelBgIdle)
	for i := range greyStyles {
		greyStyles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(strconv.Itoa(232 + i)))
	}
}

type ring struct {
	radius     float64
	breatheAmt float64
	colorIdx   int
}

var rings = []ring{
	{0.6, 0.10, 1},
	{1.3, 0.12, 2},
	{2.0, 0.15, 3},
	{2.8, 0.35, 4}, // inner rings react most to the voice
	{3.5, 0.40, 5},
	{4.2, 0.38, 6},
	{5.0, 0.30, 7},
	{5.8, 0.15, 8},
	{6.5, 0.03, 9},
	{7.2, 0.0, 10},
	{8.0, 0.0, 11},
	{10.0, 0.0, 12},
	{12.0, 0.0, 13},
}

type spot struct {
	ox, oy float64
	radius float64
	color  int
}

var spots = func() []spot {
	side, side2, top, top2 := 9.0, 7.2, 10.0, 8.2
	return []spot{
		{-side * 0.707, -side * 0.707, 0.7, 14},
		{-side2 * 0.707, -side2 * 0.707, 0.4, 15},
		{0, -top, 0.8, 14},
		{0, -top2, 0.6, 15},
		{side * 0.707, -side * 0.707, 0.7, 14},
		{side2 * 0.707, -side2 * 0.707, 0.4, 15},
		{0, -2.0, 0.6, 14},
	}
}()

// renderOrb draws the push-to-talk control with half-block characters.
// Brightness below 1 renders it in grey, darker as it approaches 0.
func renderOrb(frame int, level float64, recording bool, brightness float64) string {
	const pixW = orbCharsW
	const pixH = orbCharsH * 2

	if brightness <= 0 {
		return strings.Repeat(strings.Repeat(" ", orbCharsW)+"\n", orbCharsH)
	}

	centerX := float64(pixW) / 2
	centerY := float64(pixH) / 2

	var breathe float64
	if recording {
		breathe = math.Sin(float64(frame)*0.10)*0.03 + level*10.0 - 0.05
	} else {
		breathe = math.Sin(float64(frame)*0.08)*0.02 - 0.05
	}

	pixels := make([][]int, pixH)
	for i := range pixels {
		pixels[i] = make([]int, pixW)
	}

	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)
			for _, r := range rings {
				radius := min(r.radius+breathe*r.breatheAmt*20, 10.0)
				if dist < radius {
					pixels[y][x] = r.colorIdx
					break
				}
			}
		}
	}

	// glass reflections
	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			px := float64(x) - centerX
			py := float64(y) - centerY
			for _, s := range spots {
				dx := px - s.ox
				dy := py - s.oy
				rLen := math.Sqrt(s.ox*s.ox + s.oy*s.oy)
				if rLen < 0.001 {
					rLen = 1
				}
				tx, ty := -s.oy/rLen, s.ox/rLen
				dt := dx*tx + dy*ty
				dn := dx*(-ty) + dy*tx
				if (dt*dt)/9.0+dn*dn < s.radius*s.radius {
					pixels[y][x] = s.color
				}
			}
		}
	}

	styles, bgStyles := &pixelStylesIdle, &pixelBgIdle
	if recording {
		styles, bgStyles = &pixelStylesRec, &pixelBgRec
	}
	dim := brightness < 1
	grey := greyStyles[min(int(brightness*float64(len(greyStyles))), len(greyStyles)-1)]

	var result strings.Builder
	for cy := 0; cy < orbCharsH; cy++ {
		for cx := 0; cx < orbCharsW; cx++ {
			top := pixels[cy*2][cx]
			bot := pixels[cy*2+1][cx]
			var glyph string
			var style lipgloss.Style
			switch {
			case top == 0 && bot == 0:
				result.WriteString(" ")
				continue
			case top == bot:
				glyph, style = "█", styles[top]
			case bot == 0:
				glyph, style = "▀", styles[top]
			case top == 0:
				glyph, style = "▄", styles[bot]
			default:
				glyph, style = "▀", bgStyles[top][bot]
			}
			if dim {
				style = grey
			}
			result.WriteString(style.Render(glyph))
		}
		result.WriteString("\n")
	}
	return result.String()
}
