package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/forPelevin/hlshorts/internal/domain/layout"
	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/types"
)

type Options struct {
	FFmpegPath       string
	FFprobePath      string
	TranscodeTimeout time.Duration
	ProbeTimeout     time.Duration
}

// Adapter builds ffmpeg command lines and runs them through a Gateway.
type Adapter struct {
	gw        ports.Gateway
	ffmpeg    string
	ffprobe   string
	transcode time.Duration
	probe     time.Duration
}

func New(gw ports.Gateway, opts Options) *Adapter {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	return &Adapter{
		gw:        gw,
		ffmpeg:    opts.FFmpegPath,
		ffprobe:   opts.FFprobePath,
		transcode: opts.TranscodeTimeout,
		probe:     opts.ProbeTimeout,
	}
}

// Shared encoder settings for intermediate artifacts.
func videoKw(extra ffmpeggo.KwArgs) ffmpeggo.KwArgs {
	kw := ffmpeggo.KwArgs{
		"c:v":    "libx264",
		"crf":    "23",
		"preset": "fast",
	}
	for k, v := range extra {
		kw[k] = v
	}
	return kw
}

func (a *Adapter) Format(ctx context.Context, seg types.HighlightSegment, size ports.Size, out string) error {
	in := ffmpeggo.Input(seg.Source, ffmpeggo.KwArgs{
		"ss": fmtSeconds(seg.Start),
		"t":  fmtSeconds(seg.Duration()),
	})
	args := cmdline(in.Output(out, videoKw(ffmpeggo.KwArgs{
		"vf":  fmt.Sprintf("scale=%d:%d,setsar=1", size.Width, size.Height),
		"c:a": "aac",
		"b:a": "192k",
	})))
	return a.transcodeOp(ctx, "format clip", args, out)
}

func (a *Adapter) ExtractAudio(ctx context.Context, in, outWav string) error {
	args := cmdline(ffmpeggo.Input(in).Output(outWav, ffmpeggo.KwArgs{
		"vn": "",
		"ac": "1",
		"ar": "16000",
		"f":  "wav",
	}))
	return a.transcodeOp(ctx, "extract audio", args, outWav)
}

// PrepareBackground cuts dur of the background starting at its offset and
// scales it to cover size. The source is looped when it is shorter than dur.
func (a *Adapter) PrepareBackground(ctx context.Context, bg types.BackgroundChoice, size ports.Size, dur time.Duration, out string) error {
	in := ffmpeggo.Input(bg.Asset.Path, ffmpeggo.KwArgs{
		"stream_loop": "-1",
		"ss":          fmtSeconds(bg.Offset),
	})
	args := cmdline(in.Output(out, videoKw(ffmpeggo.KwArgs{
		"t":  fmtSeconds(dur),
		"an": "",
		"vf": fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1",
			size.Width, size.Height, size.Width, size.Height,
		),
	})))
	return a.transcodeOp(ctx, "prepare background", args, out)
}

// Stack places top over a separator strip over bottom. Audio comes from top.
func (a *Adapter) Stack(ctx context.Context, top, bottom string, topSize ports.Size, sepHeight int, out string) error {
	w, h := topSize.Width, topSize.Height
	upper := ffmpeggo.Input(top).Video().
		Filter("scale", ffmpeggo.Args{fmt.Sprintf("%d:%d", w, h)}, ffmpeggo.KwArgs{"force_original_aspect_ratio": "decrease"}).
		Filter("pad", ffmpeggo.Args{fmt.Sprintf("%d:%d:(ow-iw)/2:(oh-ih)/2", w, h)}).
		Filter("setsar", ffmpeggo.Args{"1"})
	sep := ffmpeggo.Input(
		fmt.Sprintf("color=c=%s:s=%dx%d:r=30", layout.SeparatorColor, w, sepHeight),
		ffmpeggo.KwArgs{"f": "lavfi"},
	)
	lower := ffmpeggo.Input(bottom).Video().Filter("setsar", ffmpeggo.Args{"1"})

	stacked := ffmpeggo.Filter(
		[]*ffmpeggo.Stream{upper, sep, lower},
		"vstack",
		ffmpeggo.Args{},
		ffmpeggo.KwArgs{"inputs": "3", "shortest": "1"},
	)
	args := cmdline(ffmpeggo.Output([]*ffmpeggo.Stream{stacked}, out, videoKw(ffmpeggo.KwArgs{
		"c:a": "aac",
		"b:a": "192k",
	})))
	// Optional audio map so silent clips still stack.
	args = withOptionalAudio(args, top)
	return a.transcodeOp(ctx, "stack", args, out)
}

// Pad letterboxes in into size with black bars.
func (a *Adapter) Pad(ctx context.Context, in string, size ports.Size, out string) error {
	w, h := size.Width, size.Height
	args := cmdline(ffmpeggo.Input(in).Output(out, videoKw(ffmpeggo.KwArgs{
		"vf": fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1",
			w, h, w, h,
		),
		"c:a": "aac",
		"b:a": "192k",
	})))
	return a.transcodeOp(ctx, "pad", args, out)
}

func (a *Adapter) BurnASS(ctx context.Context, in, assPath, fontsDir, out string) error {
	filter := "ass=" + escapeFilterPath(assPath)
	if fontsDir != "" {
		filter += ":fontsdir=" + escapeFilterPath(fontsDir)
	}
	args := cmdline(ffmpeggo.Input(in).Output(out, videoKw(ffmpeggo.KwArgs{
		"vf":  filter,
		"c:a": "copy",
	})))
	return a.transcodeOp(ctx, "burn ass", args, out)
}

func (a *Adapter) BurnSRT(ctx context.Context, in, srtPath, forceStyle, out string) error {
	filter := "subtitles=" + escapeFilterPath(srtPath)
	if forceStyle != "" {
		filter += ":force_style='" + forceStyle + "'"
	}
	args := cmdline(ffmpeggo.Input(in).Output(out, videoKw(ffmpeggo.KwArgs{
		"vf":  filter,
		"c:a": "copy",
	})))
	return a.transcodeOp(ctx, "burn srt", args, out)
}

// Encode produces the web-optimised final file.
func (a *Adapter) Encode(ctx context.Context, in, out string) error {
	args := cmdline(ffmpeggo.Input(in).Output(out, videoKw(ffmpeggo.KwArgs{
		"movflags": "+faststart",
		"pix_fmt":  "yuv420p",
		"c:a":      "aac",
		"b:a":      "128k",
	})))
	return a.transcodeOp(ctx, "encode", args, out)
}

func (a *Adapter) transcodeOp(ctx context.Context, what string, args []string, out string) error {
	_, err := a.gw.Run(ctx, ports.Op{Name: a.ffmpeg, Args: args, Timeout: a.transcode, Check: true})
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w", what, err)
	}
	// ffmpeg can exit zero without writing anything useful.
	st, err := os.Stat(out)
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w", what, err)
	}
	if st.Size() == 0 {
		return fmt.Errorf("ffmpeg %s: empty output %s", what, out)
	}
	return nil
}

// cmdline renders s to arguments. -y goes first so the output path stays the
// last argument.
func cmdline(s *ffmpeggo.Stream) []string {
	return append([]string{"-y", "-hide_banner", "-nostdin"}, s.GetArgs()...)
}

// withOptionalAudio maps the audio of input path (if any) into the output,
// which is the last argument.
func withOptionalAudio(args []string, path string) []string {
	idx := -1
	n := 0
	for i := 0; i < len(args)-1; i++ {
		if args[i] != "-i" {
			continue
		}
		if args[i+1] == path {
			idx = n
			break
		}
		n++
	}
	if idx < 0 || len(args) == 0 {
		return args
	}
	last := args[len(args)-1]
	out := append([]string{}, args[:len(args)-1]...)
	return append(out, "-map", fmt.Sprintf("%d:a?", idx), last)
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// escapeFilterPath escapes p for use as a filter option value inside a
// filtergraph: once for the option parser, then again for the graph parser.
func escapeFilterPath(p string) string {
	p = optionEscaper.Replace(p)
	return graphEscaper.Replace(p)
}

var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
)
