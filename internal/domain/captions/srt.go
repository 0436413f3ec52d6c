package captions

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/hlshorts/internal/types"
)

// RenderSRT writes one numbered cue per line.
func RenderSRT(lines []types.CaptionLine) string {
	var b strings.Builder
	for i, ln := range lines {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(ln.Start), srtTime(ln.End), strings.TrimSpace(ln.Text))
	}
	return b.String()
}

func srtTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, d/time.Millisecond)
}
