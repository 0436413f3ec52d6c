package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/types"
)

// fakeGateway records ops and writes a dummy file at the output path, which
// ffmpeg always receives as the last argument.
type fakeGateway struct {
	ops      []ports.Op
	err      error
	noOutput bool
	stdout   string
	stderr   string
}

func (g *fakeGateway) Run(_ context.Context, op ports.Op) (ports.Result, error) {
	g.ops = append(g.ops, op)
	if g.err != nil {
		return ports.Result{}, g.err
	}
	if !g.noOutput && len(op.Args) > 0 {
		out := op.Args[len(op.Args)-1]
		if filepath.IsAbs(out) {
			_ = os.WriteFile(out, []byte("x"), 0o644)
		}
	}
	return ports.Result{OK: true, Stdout: []byte(g.stdout), Stderr: []byte(g.stderr)}, nil
}

func (g *fakeGateway) joined(i int) string { return strings.Join(g.ops[i].Args, " ") }

func newTestAdapter(gw ports.Gateway) *Adapter {
	return New(gw, Options{TranscodeTimeout: 300 * time.Second, ProbeTimeout: 30 * time.Second})
}

func TestFormat_Args(t *testing.T) {
	gw := &fakeGateway{}
	a := newTestAdapter(gw)
	out := filepath.Join(t.TempDir(), "formatted.mp4")
	seg := types.HighlightSegment{Source: "/in/src.mp4", Start: 61500 * time.Millisecond, End: 81500 * time.Millisecond, Sequence: 1}

	if err := a.Format(context.Background(), seg, ports.Size{Width: 1080, Height: 608}, out); err != nil {
		t.Fatalf("format: %v", err)
	}
	if len(gw.ops) != 1 {
		t.Fatalf("expected 1 op, got %d", len(gw.ops))
	}
	op := gw.ops[0]
	if op.Name != "ffmpeg" || !op.Check || op.Timeout != 300*time.Second {
		t.Fatalf("unexpected op header: %+v", op)
	}
	args := gw.joined(0)
	for _, want := range []string{"-ss 61.500", "-t 20.000", "-i /in/src.mp4", "scale=1080:608,setsar=1", "libx264", "-y"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in args: %s", want, args)
		}
	}
	if op.Args[len(op.Args)-1] != out {
		t.Fatalf("expected output path last, got %s", args)
	}
}

func TestStack_UsesFilterGraph(t *testing.T) {
	gw := &fakeGateway{}
	a := newTestAdapter(gw)
	out := filepath.Join(t.TempDir(), "stacked.mp4")
	if err := a.Stack(context.Background(), "/w/top.mp4", "/w/bg.mp4", ports.Size{Width: 1080, Height: 608}, 4, out); err != nil {
		t.Fatalf("stack: %v", err)
	}
	args := gw.joined(0)
	for _, want := range []string{"-filter_complex", "vstack", "inputs=3", "color=c=0x333333:s=1080x4", "lavfi", ":a?"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in args: %s", want, args)
		}
	}
}

func TestEncode_FastStart(t *testing.T) {
	gw := &fakeGateway{}
	a := newTestAdapter(gw)
	out := filepath.Join(t.TempDir(), "final.mp4")
	if err := a.Encode(context.Background(), "/w/captioned.mp4", out); err != nil {
		t.Fatalf("encode: %v", err)
	}
	args := gw.joined(0)
	if !strings.Contains(args, "-movflags +faststart") || !strings.Contains(args, "-b:a 128k") {
		t.Fatalf("unexpected encode args: %s", args)
	}
}

func TestBurnSRT_ForceStyle(t *testing.T) {
	gw := &fakeGateway{}
	a := newTestAdapter(gw)
	out := filepath.Join(t.TempDir(), "subbed.mp4")
	if err := a.BurnSRT(context.Background(), "/w/in.mp4", "/w/c:1.srt", "FontSize=24", out); err != nil {
		t.Fatalf("burn srt: %v", err)
	}
	args := gw.joined(0)
	if !strings.Contains(args, `subtitles=/w/c\\:1.srt:force_style='FontSize=24'`) {
		t.Fatalf("unexpected subtitles filter: %s", args)
	}
}

func TestEscapeFilterPath(t *testing.T) {
	tests := map[string]string{
		"/w/clip-001/captions.ass": "/w/clip-001/captions.ass",
		"/w/c:1.srt":               `/w/c\\:1.srt`,
		"/w/a,b;c.ass":             `/w/a\,b\;c.ass`,
		"/w/[x]/c.ass":             `/w/\[x\]/c.ass`,
		"/w/it's.ass":              `/w/it\\\'s.ass`,
	}
	for in, want := range tests {
		if got := escapeFilterPath(in); got != want {
			t.Fatalf("escapeFilterPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBurnASS_PathWithComma(t *testing.T) {
	gw := &fakeGateway{}
	a := newTestAdapter(gw)
	out := filepath.Join(t.TempDir(), "captioned.mp4")
	if err := a.BurnASS(context.Background(), "/w/in.mp4", "/runs/a,b/captions.ass", "", out); err != nil {
		t.Fatalf("burn ass: %v", err)
	}
	if args := gw.joined(0); !strings.Contains(args, `ass=/runs/a\,b/captions.ass`) {
		t.Fatalf("comma must be escaped for the filtergraph: %s", args)
	}
}

func TestTranscodeOp_Errors(t *testing.T) {
	t.Run("gateway error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		a := newTestAdapter(&fakeGateway{err: boom})
		err := a.Pad(context.Background(), "/in.mp4", ports.Size{Width: 1080, Height: 1920}, filepath.Join(t.TempDir(), "p.mp4"))
		if !errors.Is(err, boom) || !strings.Contains(err.Error(), "ffmpeg pad") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	t.Run("missing output", func(t *testing.T) {
		a := newTestAdapter(&fakeGateway{noOutput: true})
		err := a.Encode(context.Background(), "/in.mp4", filepath.Join(t.TempDir(), "e.mp4"))
		if err == nil {
			t.Fatal("expected error when ffmpeg leaves no output")
		}
	})
}

func TestParseProbe(t *testing.T) {
	b := []byte(`{
  "streams": [
    {"codec_type": "audio"},
    {"codec_type": "video", "width": 1920, "height": 1080, "duration": "12.0"}
  ],
  "format": {"duration": "12.480000"}
}`)
	size, d, err := parseProbe(b)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if size.Width != 1920 || size.Height != 1080 {
		t.Fatalf("unexpected size %+v", size)
	}
	if d != 12480*time.Millisecond {
		t.Fatalf("unexpected duration %s", d)
	}

	if _, _, err := parseProbe([]byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`)); err == nil {
		t.Fatal("expected error without a video stream")
	}
}

func TestActiveSpans(t *testing.T) {
	log := `
[silencedetect @ 0x1] silence_start: 5.2
[silencedetect @ 0x1] silence_end: 7.5 | silence_duration: 2.3
[silencedetect @ 0x1] silence_start: 30
[silencedetect @ 0x1] silence_end: 31 | silence_duration: 1
[silencedetect @ 0x1] silence_start: 58
`
	got := activeSpans(log, 60*time.Second)
	want := []ports.Span{
		{Start: 0, End: 5200 * time.Millisecond},
		{Start: 7500 * time.Millisecond, End: 30 * time.Second},
		{Start: 31 * time.Second, End: 58 * time.Second},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("span %d: got %v, want %v", i, got[i], want[i])
		}
	}

	if all := activeSpans("", 10*time.Second); len(all) != 1 || all[0].End != 10*time.Second {
		t.Fatalf("no silence should yield the whole video, got %v", all)
	}
}

func TestSilenceDetector_ShortVideo(t *testing.T) {
	gw := &fakeGateway{stdout: `{"streams":[{"codec_type":"video","width":640,"height":360}],"format":{"duration":"8.0"}}`}
	d := NewSilenceDetector(newTestAdapter(gw))
	spans, err := d.Detect(context.Background(), "/in.mp4", 10*time.Second, 40*time.Second)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(spans) != 1 || spans[0].End != 8*time.Second {
		t.Fatalf("expected whole-video span, got %v", spans)
	}
	if len(gw.ops) != 1 || gw.ops[0].Name != "ffprobe" {
		t.Fatalf("expected only a probe call, got %+v", gw.ops)
	}
}

func TestWithOptionalAudio(t *testing.T) {
	args := []string{"-y", "-f", "lavfi", "-i", "color=c=red", "-i", "/w/top.mp4", "-filter_complex", "x", "/w/out.mp4"}
	got := withOptionalAudio(args, "/w/top.mp4")
	want := "-y -f lavfi -i color=c=red -i /w/top.mp4 -filter_complex x -map 1:a? /w/out.mp4"
	if strings.Join(got, " ") != want {
		t.Fatalf("got %q\nwant %q", strings.Join(got, " "), want)
	}
	if strings.Join(withOptionalAudio(args, "/missing.mp4"), " ") != strings.Join(args, " ") {
		t.Fatal("unknown input must leave args untouched")
	}
}
