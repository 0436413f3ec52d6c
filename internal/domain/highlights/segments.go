package highlights

import (
	"cmp"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/types"
)

// Shape turns raw activity spans into clip-sized spans. Consecutive spans are
// merged until the window reaches minDur; windows longer than maxDur are cut
// into parts that stay within both bounds. A trailing window shorter than minDur is dropped unless
// it is the only one.
func Shape(active []ports.Span, minDur, maxDur time.Duration) []ports.Span {
	if minDur <= 0 {
		minDur = time.Second
	}
	if maxDur < minDur {
		return nil
	}
	spans := lo.Filter(active, func(s ports.Span, _ int) bool { return s.End > s.Start })
	if len(spans) == 0 {
		return nil
	}
	slices.SortFunc(spans, func(a, b ports.Span) int { return cmp.Compare(a.Start, b.Start) })

	var out []ports.Span
	cur := spans[0]
	flush := func(s ports.Span) {
		out = append(out, cut(s, minDur, maxDur)...)
	}
	for _, s := range spans[1:] {
		if cur.End-cur.Start >= minDur {
			flush(cur)
			cur = s
			continue
		}
		if s.End > cur.End {
			cur.End = s.End
		}
	}
	if cur.End-cur.Start >= minDur || len(out) == 0 {
		flush(cur)
	}
	return out
}

// cut splits s into equal parts no longer than maxDur. When no equal split
// also keeps every part at least minDur long, it emits as many maxDur-capped
// parts of at least minDur as fit and drops the tail.
func cut(s ports.Span, minDur, maxDur time.Duration) []ports.Span {
	d := s.End - s.Start
	if d <= maxDur {
		return []ports.Span{s}
	}
	n := int((d + maxDur - 1) / maxDur)
	if d/time.Duration(n) < minDur {
		n = max(1, int(d/minDur))
	}
	even := d / time.Duration(n)
	step := min(even, maxDur)
	out := make([]ports.Span, 0, n)
	for i := 0; i < n; i++ {
		start := s.Start + time.Duration(i)*step
		end := start + step
		if i == n-1 && step == even {
			end = s.End
		}
		out = append(out, ports.Span{Start: start, End: end})
	}
	return out
}

// Select keeps the limit longest spans and returns them in timeline order.
func Select(spans []ports.Span, limit int) []ports.Span {
	out := slices.Clone(spans)
	if limit > 0 && len(out) > limit {
		slices.SortStableFunc(out, func(a, b ports.Span) int {
			return cmp.Compare(b.End-b.Start, a.End-a.Start)
		})
		out = out[:limit]
	}
	slices.SortFunc(out, func(a, b ports.Span) int { return cmp.Compare(a.Start, b.Start) })
	return out
}

// Segments numbers spans from 1 in timeline order.
func Segments(source string, spans []ports.Span) []types.HighlightSegment {
	return lo.Map(spans, func(s ports.Span, i int) types.HighlightSegment {
		return types.HighlightSegment{Source: source, Start: s.Start, End: s.End, Sequence: i + 1}
	})
}
