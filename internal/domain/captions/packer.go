package captions

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/forPelevin/hlshorts/internal/types"
)

// Limits bound a single caption line.
type Limits struct {
	MaxChars    int
	MaxDuration time.Duration
	MaxGap      time.Duration
}

func DefaultLimits() Limits {
	return Limits{MaxChars: 12, MaxDuration: 2500 * time.Millisecond, MaxGap: 1500 * time.Millisecond}
}

// PackLines greedily groups cues into lines. A word joins the current line
// only if the line stays within MaxChars, its spoken time (pauses excluded)
// stays within MaxDuration and the pause before the word is at most MaxGap. The first word of a line always joins, so an
// oversized word still yields exactly one line.
func PackLines(cues []types.WordCue, lim Limits) []types.CaptionLine {
	var out []types.CaptionLine
	var cur *types.CaptionLine
	chars := 0
	var spoken time.Duration

	flush := func() {
		if cur == nil {
			return
		}
		texts := make([]string, len(cur.Words))
		for i, w := range cur.Words {
			texts[i] = w.Text
		}
		cur.Text = strings.Join(texts, " ")
		out = append(out, *cur)
		cur = nil
		chars = 0
		spoken = 0
	}

	for _, c := range cues {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		c.Text = text
		n := utf8.RuneCountInString(text)

		if cur != nil {
			last := cur.Words[len(cur.Words)-1]
			fits := chars+1+n <= lim.MaxChars &&
				spoken+(c.End-c.Start) <= lim.MaxDuration &&
				c.Start-last.End <= lim.MaxGap
			if !fits {
				flush()
			}
		}
		if cur == nil {
			cur = &types.CaptionLine{Start: c.Start}
		} else {
			chars++
		}
		cur.Words = append(cur.Words, c)
		cur.End = c.End
		chars += n
		spoken += c.End - c.Start
	}
	flush()
	return out
}
