package ffmpeg

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/forPelevin/hlshorts/internal/domain/highlights"
	"github.com/forPelevin/hlshorts/internal/ports"
)

var (
	reSilenceStart = regexp.MustCompile(`silence_start:\s*(-?[0-9.]+)`)
	reSilenceEnd   = regexp.MustCompile(`silence_end:\s*([0-9.]+)`)
)

// SilenceDetector finds spoken/active ranges by inverting ffmpeg silencedetect.
type SilenceDetector struct {
	a        *Adapter
	NoiseDB  int
	MinQuiet time.Duration
}

func NewSilenceDetector(a *Adapter) *SilenceDetector {
	return &SilenceDetector{a: a, NoiseDB: -30, MinQuiet: 500 * time.Millisecond}
}

func (d *SilenceDetector) Detect(ctx context.Context, videoPath string, minDur, maxDur time.Duration) ([]ports.Span, error) {
	_, total, err := d.a.Probe(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	// Too short to split: the whole video is the highlight.
	if total <= minDur {
		return []ports.Span{{Start: 0, End: total}}, nil
	}

	filter := fmt.Sprintf("silencedetect=noise=%ddB:d=%s", d.NoiseDB, fmtSeconds(d.MinQuiet))
	res, err := d.a.gw.Run(ctx, ports.Op{
		Name:    d.a.ffmpeg,
		Args:    []string{"-hide_banner", "-nostats", "-i", videoPath, "-vn", "-af", filter, "-f", "null", "-"},
		Timeout: d.a.transcode,
		Check:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("ffmpeg silencedetect: %w", err)
	}
	active := activeSpans(string(res.Stderr), total)
	return highlights.Shape(active, minDur, maxDur), nil
}

// activeSpans inverts the silence log into the ranges between silences.
func activeSpans(log string, total time.Duration) []ports.Span {
	starts := reSilenceStart.FindAllStringSubmatch(log, -1)
	ends := reSilenceEnd.FindAllStringSubmatch(log, -1)

	var out []ports.Span
	var cursor time.Duration
	for i, m := range starts {
		qs := clampDur(parseSec(m[1]), 0, total)
		if qs > cursor {
			out = append(out, ports.Span{Start: cursor, End: qs})
		}
		// An unterminated silence runs to the end of the file.
		if i >= len(ends) {
			cursor = total
			break
		}
		cursor = clampDur(parseSec(ends[i][1]), 0, total)
	}
	if cursor < total {
		out = append(out, ports.Span{Start: cursor, End: total})
	}
	return out
}

func parseSec(s string) time.Duration {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

func clampDur(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
