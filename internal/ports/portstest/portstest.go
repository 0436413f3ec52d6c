// Package portstest provides in-memory implementations of the ports used by
// pipeline tests. Every transcode writes a small file at its output path.
package portstest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/types"
)

var ErrInjected = errors.New("injected failure")

// Video is a VideoTool that records calls and can be told to fail.
type Video struct {
	SourceSize ports.Size
	// Durations maps probed paths to their length. Unknown paths report 60s.
	Durations map[string]time.Duration
	// Fail makes the named operation return ErrInjected. FailFor restricts a
	// failure to calls whose input or output path contains a substring.
	Fail    map[string]bool
	FailFor map[string]string
	// Delay is slept inside every transcode to widen concurrency windows.
	Delay time.Duration

	mu    sync.Mutex
	calls []Call

	active atomic.Int64
	peak   atomic.Int64
}

type Call struct {
	Op  string
	In  string
	Out string
	Arg string
}

func (v *Video) Calls() []Call {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Call(nil), v.calls...)
}

// Count returns how many times op was called.
func (v *Video) Count(op string) int {
	n := 0
	for _, c := range v.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Peak is the highest number of transcodes seen running at once.
func (v *Video) Peak() int { return int(v.peak.Load()) }

func (v *Video) record(c Call) {
	v.mu.Lock()
	v.calls = append(v.calls, c)
	v.mu.Unlock()
}

func (v *Video) failing(op string, paths ...string) bool {
	if v.Fail[op] {
		return true
	}
	sub, ok := v.FailFor[op]
	if !ok || sub == "" {
		return false
	}
	for _, p := range paths {
		if strings.Contains(p, sub) {
			return true
		}
	}
	return false
}

func (v *Video) transcode(ctx context.Context, op, in, out, arg string) error {
	v.record(Call{Op: op, In: in, Out: out, Arg: arg})
	n := v.active.Add(1)
	defer v.active.Add(-1)
	for {
		cur := v.peak.Load()
		if n <= cur || v.peak.CompareAndSwap(cur, n) {
			break
		}
	}
	if v.Delay > 0 {
		select {
		case <-time.After(v.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if v.failing(op, in, out) {
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return os.WriteFile(out, []byte(op), 0o644)
}

func (v *Video) Probe(_ context.Context, path string) (ports.Size, time.Duration, error) {
	v.record(Call{Op: "probe", In: path})
	if v.failing("probe", path) {
		return ports.Size{}, 0, ErrInjected
	}
	size := v.SourceSize
	if size.Width == 0 {
		size = ports.Size{Width: 1920, Height: 1080}
	}
	d, ok := v.Durations[path]
	if !ok {
		d = 60 * time.Second
	}
	return size, d, nil
}

func (v *Video) Format(ctx context.Context, seg types.HighlightSegment, size ports.Size, out string) error {
	return v.transcode(ctx, "format", seg.Source, out, fmt.Sprintf("%dx%d", size.Width, size.Height))
}

func (v *Video) ExtractAudio(ctx context.Context, in, outWav string) error {
	return v.transcode(ctx, "audio", in, outWav, "")
}

func (v *Video) PrepareBackground(ctx context.Context, bg types.BackgroundChoice, size ports.Size, dur time.Duration, out string) error {
	return v.transcode(ctx, "background", bg.Asset.Path, out, fmt.Sprintf("%dx%d@%s", size.Width, size.Height, bg.Offset))
}

func (v *Video) Stack(ctx context.Context, top, bottom string, topSize ports.Size, sepHeight int, out string) error {
	return v.transcode(ctx, "stack", top, out, bottom)
}

func (v *Video) Pad(ctx context.Context, in string, size ports.Size, out string) error {
	return v.transcode(ctx, "pad", in, out, fmt.Sprintf("%dx%d", size.Width, size.Height))
}

func (v *Video) BurnASS(ctx context.Context, in, assPath, fontsDir, out string) error {
	return v.transcode(ctx, "burn_ass", in, out, assPath)
}

func (v *Video) BurnSRT(ctx context.Context, in, srtPath, forceStyle, out string) error {
	return v.transcode(ctx, "burn_srt", in, out, forceStyle)
}

func (v *Video) Encode(ctx context.Context, in, out string) error {
	return v.transcode(ctx, "encode", in, out, "")
}

// Transcriber returns Words for every call unless Err is set or FailFor
// matches the wav path. PanicFor makes matching calls panic.
type Transcriber struct {
	Words    []types.Word
	Err      error
	FailFor  string
	PanicFor string
	Block    bool

	calls atomic.Int64
}

func (t *Transcriber) Calls() int { return int(t.calls.Load()) }

func (t *Transcriber) Transcribe(ctx context.Context, wavPath, _ string) (types.Transcript, error) {
	t.calls.Add(1)
	if t.PanicFor != "" && strings.Contains(wavPath, t.PanicFor) {
		panic("transcriber crashed on " + wavPath)
	}
	if t.Block {
		<-ctx.Done()
		return types.Transcript{}, ctx.Err()
	}
	if t.Err != nil {
		return types.Transcript{}, t.Err
	}
	if t.FailFor != "" && strings.Contains(wavPath, t.FailFor) {
		return types.Transcript{}, ErrInjected
	}
	return types.Transcript{Segments: []types.Segment{{Words: t.Words}}}, nil
}

// Sink collects progress events.
type Sink struct {
	mu     sync.Mutex
	events []types.ProgressEvent
}

func (s *Sink) Emit(_ context.Context, ev types.ProgressEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *Sink) Events() []types.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ProgressEvent(nil), s.events...)
}
