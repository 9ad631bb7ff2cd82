// Package tagcolor gives every tag label a stable colour so the same tag
// looks the same in every list and every session.
package tagcolor

import (
	"strings"
	"unicode/utf16"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// HashHue maps label to a hue in [0, 360). It hashes the UTF-16 code units
// of label with h = h*33 ^ c over wrapping 32-bit integers, starting from
// 5381.
func HashHue(label string) int {
	h := int32(5381)
	for _, c := range utf16.Encode([]rune(label)) {
		h = (h * 33) ^ int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % 360)
}

// Palette holds the colours of one tag as #rrggbb strings.
type Palette struct {
	Hue     int
	Bg      string
	Border  string
	Text    string
	HoverBg string
	Ring    string
}

func Colors(label string) Palette {
	h := float64(HashHue(label))
	return Palette{
		Hue:     int(h),
		Bg:      hex(h, 0.95, 0.95),
		Border:  hex(h, 0.70, 0.82),
		Text:    hex(h, 0.40, 0.28),
		HoverBg: hex(h, 0.95, 0.92),
		Ring:    hex(h, 0.85, 0.75),
	}
}

func hex(h, s, l float64) string {
	return colorful.Hsl(h, s, l).Clamped().Hex()
}

// Style renders a tag chip. Selected chips use the hover background.
func Style(label string, selected bool) lipgloss.Style {
	p := Colors(label)
	bg := p.Bg
	if selected {
		bg = p.HoverBg
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(bg)).
		Foreground(lipgloss.Color(p.Text)).
		Padding(0, 1)
}

func Render(label string) string {
	return Style(label, false).Render("#" + label)
}

// RenderAll renders tags separated by a space.
func RenderAll(tags []string) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, Render(t))
	}
	return strings.Join(parts, " ")
}
