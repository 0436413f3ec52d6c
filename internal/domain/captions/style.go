package captions

import (
	"fmt"
	"strings"

	"github.com/forPelevin/hlshorts/internal/config"
)

// Style is the visual look of burned captions. Colors are RRGGBB.
type Style struct {
	Font         string
	FontSize     int
	Primary      string
	Highlight    string
	Outline      bool
	OutlineColor string
}

func StyleFrom(c config.Captions) Style {
	return Style{
		Font:         c.Font,
		FontSize:     c.FontSize,
		Primary:      c.PrimaryColor,
		Highlight:    c.HighlightColor,
		Outline:      c.Outline,
		OutlineColor: c.OutlineColor,
	}
}

// PixelSize scales the preset size, which is given for a 1080 px tall frame.
func (s Style) PixelSize(frameHeight int) int {
	px := s.FontSize * frameHeight / 1080
	if px < 8 {
		px = 8
	}
	return px
}

// ForceStyle renders the style for the subtitles filter. libass lays SRT out
// on a 288 px tall script, so sizes and margins are given in that space.
func (s Style) ForceStyle(frameHeight, y int) string {
	size := s.FontSize * 2 / 3
	if size < 8 {
		size = 8
	}
	marginV := 0
	if frameHeight > 0 && y < frameHeight {
		marginV = (frameHeight - y) * 288 / frameHeight
	}
	parts := []string{
		"FontName=" + s.Font,
		fmt.Sprintf("FontSize=%d", size),
		"PrimaryColour=" + assColor(s.Primary),
		"Alignment=2",
		fmt.Sprintf("MarginV=%d", marginV),
	}
	if s.Outline {
		parts = append(parts, "OutlineColour="+assColor(s.OutlineColor), "BorderStyle=1", "Outline=2")
	} else {
		parts = append(parts, "BorderStyle=1", "Outline=0")
	}
	return strings.Join(parts, ",")
}

// assColor converts RRGGBB into the &HAABBGGRR form libass expects.
func assColor(rgb string) string {
	rgb = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(rgb), "#"))
	if len(rgb) != 6 {
		rgb = "FFFFFF"
	}
	return "&H00" + rgb[4:6] + rgb[2:4] + rgb[0:2]
}
