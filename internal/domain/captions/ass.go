package captions

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/types"
)

// RenderASS writes one event per spoken word. Each event shows the whole
// line with the active word in the highlight color, anchored at y.
func RenderASS(lines []types.CaptionLine, st Style, frame ports.Size, y int) string {
	var b strings.Builder
	b.WriteString(assHeader(st, frame))
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	pos := fmt.Sprintf("{\\an8\\pos(%d,%d)}", frame.Width/2, y)
	hl := assColor(st.Highlight)
	for _, ln := range lines {
		for i, w := range ln.Words {
			end := ln.End
			// Hold the highlight until the next word starts so the line never blinks.
			if i+1 < len(ln.Words) {
				end = ln.Words[i+1].Start
			}
			if end <= w.Start {
				end = w.End
			}
			b.WriteString("Dialogue: 0,")
			b.WriteString(assTime(w.Start))
			b.WriteString(",")
			b.WriteString(assTime(end))
			b.WriteString(",Caption,,0,0,0,,")
			b.WriteString(pos)
			for j, o := range ln.Words {
				if j > 0 {
					b.WriteString(" ")
				}
				if j == i {
					b.WriteString("{\\c" + hl + "&}" + sanitizeASS(o.Text) + "{\\r}")
					continue
				}
				b.WriteString(sanitizeASS(o.Text))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func assHeader(st Style, frame ports.Size) string {
	outline, border := 0, 1
	if st.Outline {
		outline = 3
	}
	return fmt.Sprintf(strings.TrimSpace(`
[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Caption, %s, %d, %s, %s, %s, &H64000000, 1,0,0,0,100,100,0,0,%d,%d,1,8, 40,40,0,1
`),
		frame.Width, frame.Height,
		st.Font, st.PixelSize(frame.Height),
		assColor(st.Primary), assColor(st.Highlight), assColor(st.OutlineColor),
		border, outline,
	)
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return strings.TrimSpace(s)
}
