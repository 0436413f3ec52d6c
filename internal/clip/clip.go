package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/forPelevin/hlshorts/internal/background"
	"github.com/forPelevin/hlshorts/internal/caption"
	"github.com/forPelevin/hlshorts/internal/config"
	"github.com/forPelevin/hlshorts/internal/domain/captions"
	"github.com/forPelevin/hlshorts/internal/domain/layout"
	"github.com/forPelevin/hlshorts/internal/logging"
	"github.com/forPelevin/hlshorts/internal/pool"
	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/progress"
	"github.com/forPelevin/hlshorts/internal/types"
)

// ErrFormat marks the only terminal stage failure.
var ErrFormat = errors.New("format failed")

// CueSource produces the word cues of a formatted clip. It never returns an
// empty list.
type CueSource interface {
	Cues(ctx context.Context, clipPath, workDir string) ([]types.WordCue, bool)
}

// Settings are the per-batch render parameters.
type Settings struct {
	Frame     ports.Size
	Style     captions.Style
	Limits    captions.Limits
	Placement string
	Fraction  float64
	FontsDir  string
}

func SettingsFrom(cfg config.Config) Settings {
	c := cfg.Captions
	return Settings{
		Frame:     ports.Size{Width: layout.EvenUp(cfg.Clips.TargetWidth), Height: layout.EvenUp(cfg.Clips.TargetHeight)},
		Style:     captions.StyleFrom(c),
		Limits:    captions.Limits{MaxChars: c.MaxChars, MaxDuration: c.MaxLineDuration.D(), MaxGap: c.MaxGap.D()},
		Placement: c.Placement,
		Fraction:  c.Fraction,
		FontsDir:  c.FontsDir,
	}
}

// Pipeline runs one ClipJob through every stage. It is shared by all jobs of
// a batch; per-job state lives in the job.
type Pipeline struct {
	video       ports.VideoTool
	pools       *pool.Pools
	cues        CueSource
	captioner   *caption.Compositor
	backgrounds *background.Selector
	progress    *progress.Reporter
	settings    Settings
	log         *slog.Logger
}

type Deps struct {
	Video ports.VideoTool
	Pools *pool.Pools
	Cues  CueSource
	// Captioner defaults to the rich ASS, SRT, passthrough chain.
	Captioner *caption.Compositor
	// Backgrounds may be nil or empty; clips are then padded to the frame.
	Backgrounds *background.Selector
	Progress    *progress.Reporter
	Log         *slog.Logger
}

func New(d Deps, s Settings) *Pipeline {
	log := logging.OrDiscard(d.Log)
	if d.Captioner == nil {
		d.Captioner = caption.Default(d.Video, d.Pools.CPU, log)
	}
	return &Pipeline{
		video:       d.Video,
		pools:       d.Pools,
		cues:        d.Cues,
		captioner:   d.Captioner,
		backgrounds: d.Backgrounds,
		progress:    d.Progress,
		settings:    s,
		log:         log,
	}
}

// Run drives job to StageDone. Only a format failure or cancellation yields a
// result without an artifact; every later stage degrades instead.
func (p *Pipeline) Run(ctx context.Context, job *types.ClipJob) types.ClipResult {
	seq := job.Segment.Sequence
	log := p.log.With("clip", job.Segment.Name())
	start := time.Now()

	fail := func(err error) types.ClipResult {
		return types.ClipResult{Segment: job.Segment, Degraded: job.Degraded, Err: err}
	}

	p.progress.Step(ctx, seq, progress.StepFormat)
	formatted, size, err := p.format(ctx, job)
	if err != nil {
		return fail(fmt.Errorf("%s: %w: %w", job.Segment.Name(), ErrFormat, err))
	}
	job.Advance(types.StageFormatted, formatted)

	p.progress.Step(ctx, seq, progress.StepAudio)
	cues, ok := p.cues.Cues(ctx, formatted, job.WorkDir)
	if !ok {
		job.Degrade(types.StageAudioExtracted)
	}
	job.Cues = cues
	job.Advance(types.StageAudioExtracted, "")
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	p.progress.Step(ctx, seq, progress.StepBackground)
	stack, bg := p.prepareBackground(ctx, job, size, log)
	job.Advance(types.StageBackgroundPrepared, bg)

	p.progress.Step(ctx, seq, progress.StepCompose)
	composed, frame, splitY := p.compose(ctx, job, formatted, size, stack, bg, log)
	job.Advance(types.StageComposed, composed)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	p.progress.Step(ctx, seq, progress.StepCaption)
	out := p.captioner.Apply(ctx, caption.Request{
		In:        composed,
		WorkDir:   job.WorkDir,
		Lines:     captions.PackLines(job.Cues, p.settings.Limits),
		Style:     p.settings.Style,
		Frame:     frame,
		SplitY:    splitY,
		Placement: p.settings.Placement,
		Fraction:  p.settings.Fraction,
		FontsDir:  p.settings.FontsDir,
	})
	if out.Degraded {
		job.Degrade(types.StageCaptioned)
	}
	job.Captioner = out.Strategy
	job.Advance(types.StageCaptioned, out.Path)

	p.progress.Step(ctx, seq, progress.StepEncode)
	final := filepath.Join(job.WorkDir, "final.mp4")
	err = p.pools.CPU.Do(ctx, func(ctx context.Context) error {
		return p.video.Encode(ctx, out.Path, final)
	})
	if err != nil {
		log.Warn("encode failed, keeping captioned clip", "err", err)
		job.Degrade(types.StageEncoded)
		job.Advance(types.StageEncoded, "")
	} else {
		job.Advance(types.StageEncoded, final)
	}
	job.Advance(types.StageDone, "")

	log.Info("clip finished",
		"artifact", job.Latest(),
		"captioner", job.Captioner,
		"degraded", len(job.Degraded),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return types.ClipResult{
		Segment:   job.Segment,
		Artifact:  job.Latest(),
		Degraded:  job.Degraded,
		Captioner: job.Captioner,
	}
}

func (p *Pipeline) format(ctx context.Context, job *types.ClipJob) (string, ports.Size, error) {
	var src ports.Size
	err := p.pools.IO.Do(ctx, func(ctx context.Context) error {
		var perr error
		src, _, perr = p.video.Probe(ctx, job.Segment.Source)
		return perr
	})
	if err != nil {
		return "", ports.Size{}, fmt.Errorf("probe source: %w", err)
	}
	size, err := layout.FormatSize(src, p.settings.Frame.Width)
	if err != nil {
		return "", ports.Size{}, err
	}
	out := filepath.Join(job.WorkDir, "formatted.mp4")
	err = p.pools.CPU.Do(ctx, func(ctx context.Context) error {
		return p.video.Format(ctx, job.Segment, size, out)
	})
	if err != nil {
		return "", ports.Size{}, err
	}
	return out, size, nil
}

// prepareBackground returns the stack geometry and background artifact, or an
// empty path when the clip will not be stacked.
func (p *Pipeline) prepareBackground(ctx context.Context, job *types.ClipJob, size ports.Size, log *slog.Logger) (layout.Stack, string) {
	if p.backgrounds == nil || p.backgrounds.Len() == 0 {
		return layout.Stack{}, ""
	}
	degrade := func(msg string, err error) (layout.Stack, string) {
		log.Warn(msg, "err", err)
		job.Degrade(types.StageBackgroundPrepared)
		return layout.Stack{}, ""
	}

	stack, err := layout.StackFor(p.settings.Frame, size.Height)
	if err != nil {
		return degrade("cannot stack clip", err)
	}
	choice, err := p.backgrounds.Select(job.Segment.Duration())
	if err != nil {
		return degrade("no background available", err)
	}
	job.Background = &choice

	out := filepath.Join(job.WorkDir, "background.mp4")
	err = p.pools.CPU.Do(ctx, func(ctx context.Context) error {
		return p.video.PrepareBackground(ctx, choice, stack.Bottom, job.Segment.Duration(), out)
	})
	if err != nil {
		return degrade("background preparation failed", err)
	}
	return stack, out
}

// compose stacks the clip over the background, or pads it to the frame. When
// both fail the formatted clip is carried forward at its own size.
func (p *Pipeline) compose(ctx context.Context, job *types.ClipJob, formatted string, size ports.Size, stack layout.Stack, bg string, log *slog.Logger) (string, ports.Size, int) {
	if bg != "" {
		out := filepath.Join(job.WorkDir, "stacked.mp4")
		err := p.pools.CPU.Do(ctx, func(ctx context.Context) error {
			return p.video.Stack(ctx, formatted, bg, stack.Top, stack.Separator, out)
		})
		if err == nil {
			return out, stack.Total(), stack.SplitY()
		}
		log.Warn("stack failed, padding instead", "err", err)
		job.Degrade(types.StageComposed)
	}

	out := filepath.Join(job.WorkDir, "padded.mp4")
	err := p.pools.CPU.Do(ctx, func(ctx context.Context) error {
		return p.video.Pad(ctx, formatted, p.settings.Frame, out)
	})
	if err == nil {
		return out, p.settings.Frame, 0
	}
	log.Warn("pad failed, using formatted clip", "err", err)
	if bg == "" {
		job.Degrade(types.StageComposed)
	}
	return formatted, size, 0
}
