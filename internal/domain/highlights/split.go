package highlights

import (
	"math/rand"
	"time"

	"github.com/forPelevin/hlshorts/internal/ports"
)

// SplitSeed keeps the naive splitter reproducible across runs.
const SplitSeed = 42

// Split cuts a video of total length into consecutive spans of varied
// length. It is the fallback when detection finds nothing.
//
// The clip count is min(limit, max(2, total/20s)). Each length is drawn from
// [minDur, min(maxDur, remaining/2)]; the last span takes what is left, or is
// folded into the previous one when shorter than minDur. Spans that end up
// longer than maxDur are cut so every part stays within [minDur, maxDur]; with
// narrow bounds that can leave a short uncovered tail.
func Split(total, minDur, maxDur time.Duration, limit int, rng *rand.Rand) []ports.Span {
	if total <= 0 {
		return nil
	}
	if total <= minDur {
		return []ports.Span{{Start: 0, End: total}}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(SplitSeed))
	}
	n := int(total / (20 * time.Second))
	if n < 2 {
		n = 2
	}
	if limit > 0 && n > limit {
		n = limit
	}

	var lengths []time.Duration
	remaining := total
	for i := 0; i < n; i++ {
		if i == n-1 {
			if remaining >= minDur {
				lengths = append(lengths, remaining)
			} else if len(lengths) > 0 {
				lengths[len(lengths)-1] += remaining
			}
			break
		}
		hi := maxDur
		if half := remaining / 2; half < hi {
			hi = half
		}
		if hi <= minDur {
			lengths = append(lengths, remaining)
			break
		}
		l := minDur + time.Duration(rng.Float64()*float64(hi-minDur))
		lengths = append(lengths, l)
		remaining -= l
		if remaining < minDur {
			lengths[len(lengths)-1] += remaining
			break
		}
	}
	if len(lengths) == 0 {
		lengths = []time.Duration{total}
	}

	out := make([]ports.Span, 0, len(lengths))
	var at time.Duration
	for _, l := range lengths {
		out = append(out, cut(ports.Span{Start: at, End: at + l}, minDur, maxDur)...)
		at += l
	}
	return out
}
