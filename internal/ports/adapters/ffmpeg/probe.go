package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/hlshorts/internal/ports"
)

type probeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// Probe returns the first video stream size and the container duration.
func (a *Adapter) Probe(ctx context.Context, path string) (ports.Size, time.Duration, error) {
	res, err := a.gw.Run(ctx, ports.Op{
		Name:    a.ffprobe,
		Args:    []string{"-v", "error", "-show_format", "-show_streams", "-of", "json", path},
		Timeout: a.probe,
		Check:   true,
	})
	if err != nil {
		return ports.Size{}, 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(res.Stdout)
}

func parseProbe(b []byte) (ports.Size, time.Duration, error) {
	var out probeOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return ports.Size{}, 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	var size ports.Size
	var streamDur string
	for _, s := range out.Streams {
		if s.CodecType == "video" && s.Width > 0 && s.Height > 0 {
			size = ports.Size{Width: s.Width, Height: s.Height}
			streamDur = s.Duration
			break
		}
	}
	d, err := parseSeconds(out.Format.Duration)
	if err != nil {
		d, err = parseSeconds(streamDur)
	}
	if err != nil {
		return size, 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	if size.Width == 0 {
		return size, d, fmt.Errorf("ffprobe: no video stream")
	}
	return size, d, nil
}

func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("missing duration")
	}
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}
