package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/hlshorts/internal/background"
	"github.com/forPelevin/hlshorts/internal/clip"
	"github.com/forPelevin/hlshorts/internal/logging"
	"github.com/forPelevin/hlshorts/internal/pool"
	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/progress"
	"github.com/forPelevin/hlshorts/internal/transcription"
	"github.com/forPelevin/hlshorts/internal/types"
)

var (
	// ErrNoClips is returned when a batch produced no artifact at all.
	ErrNoClips = errors.New("no clips produced")
	// ErrNoSegments is returned for an empty segment list.
	ErrNoSegments = errors.New("no highlight segments")
	// ErrResources marks a failure to acquire batch-wide resources.
	ErrResources = errors.New("batch resources unavailable")
)

// Loader is implemented by transcribers that must be readied once per batch.
type Loader interface {
	Load() error
}

type Options struct {
	// JobLimit bounds how many clip jobs are in flight at once.
	JobLimit             int
	KeepIntermediates    bool
	BackgroundDir        string
	Dynamic              bool
	OffsetMargin         time.Duration
	TranscriptionTimeout time.Duration
	Settings             clip.Settings
	// Rand seeds background selection. Nil uses the clock.
	Rand *rand.Rand
}

type Deps struct {
	Video       ports.VideoTool
	Transcriber ports.Transcriber
	Pools       *pool.Pools
	Sink        ports.ProgressSink
	Log         *slog.Logger
}

// Report is the outcome of one batch. Results are in segment order and
// Artifacts lists the produced files in the same order.
type Report struct {
	BatchID   string
	Artifacts []string
	Results   []types.ClipResult
}

func (r Report) Failed() []types.ClipResult {
	return lo.Filter(r.Results, func(res types.ClipResult, _ int) bool { return !res.OK() })
}

type Orchestrator struct {
	deps Deps
	opts Options
	log  *slog.Logger
	// runJob is swapped in tests.
	runJob func(ctx context.Context, p *clip.Pipeline, job *types.ClipJob) types.ClipResult
}

func New(d Deps, o Options) *Orchestrator {
	if o.JobLimit < 1 {
		o.JobLimit = 1
	}
	return &Orchestrator{
		deps: d,
		opts: o,
		log:  logging.OrDiscard(d.Log),
		runJob: func(ctx context.Context, p *clip.Pipeline, job *types.ClipJob) types.ClipResult {
			return p.Run(ctx, job)
		},
	}
}

// Run fans segments out into clip jobs under runDir/clips. A job failure never
// stops the others; only failing to acquire shared resources aborts the batch.
func (o *Orchestrator) Run(ctx context.Context, runDir string, segments []types.HighlightSegment) (Report, error) {
	report := Report{BatchID: uuid.NewString()}
	if len(segments) == 0 {
		return report, ErrNoSegments
	}
	log := o.log.With("batch", report.BatchID)
	reporter := progress.NewReporter(o.deps.Sink, report.BatchID)

	pipeline, err := o.acquire(ctx, reporter, log)
	if err != nil {
		return report, err
	}

	jobsDir := filepath.Join(runDir, "clips")
	if err := os.MkdirAll(jobsDir, 0o755); err != nil {
		return report, fmt.Errorf("create jobs dir: %w", err)
	}

	reporter.Total(ctx, len(segments))
	log.Info("batch started", "clips", len(segments), "job_limit", o.opts.JobLimit)
	start := time.Now()

	results := make([]types.ClipResult, len(segments))
	var g errgroup.Group
	g.SetLimit(o.opts.JobLimit)
	for i, seg := range segments {
		g.Go(func() error {
			results[i] = o.runOne(ctx, pipeline, jobsDir, seg, log)
			if r := results[i]; r.OK() {
				reporter.Completed(ctx, seg.Sequence)
			} else {
				reporter.Error(ctx, seg.Sequence, errString(r.Err))
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortStableFunc(results, func(a, b types.ClipResult) int {
		return a.Segment.Sequence - b.Segment.Sequence
	})
	report.Results = results
	report.Artifacts = lo.FilterMap(results, func(r types.ClipResult, _ int) (string, bool) {
		return r.Artifact, r.OK()
	})
	if !o.opts.KeepIntermediates {
		o.cleanup(jobsDir, results, log)
	}
	reporter.Done(ctx, len(report.Artifacts))

	log.Info("batch finished",
		"produced", len(report.Artifacts),
		"failed", len(report.Failed()),
		"elapsed", time.Since(start).Round(time.Millisecond),
		"peak_cpu", o.deps.Pools.CPU.Peak(),
		"peak_io", o.deps.Pools.IO.Peak(),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if len(report.Artifacts) == 0 {
		return report, ErrNoClips
	}
	return report, nil
}

// acquire readies the transcriber and discovers backgrounds once for the whole
// batch, then builds the shared clip pipeline.
func (o *Orchestrator) acquire(ctx context.Context, reporter *progress.Reporter, log *slog.Logger) (*clip.Pipeline, error) {
	if l, ok := o.deps.Transcriber.(Loader); ok {
		if err := l.Load(); err != nil {
			return nil, fmt.Errorf("%w: %w: %w", ErrResources, transcription.ErrNoModel, err)
		}
	}
	probe := background.ProberFunc(func(ctx context.Context, path string) (time.Duration, error) {
		_, d, err := o.deps.Video.Probe(ctx, path)
		return d, err
	})
	assets, err := background.Discover(ctx, o.opts.BackgroundDir, probe, o.deps.Pools.IO, log)
	if err != nil {
		return nil, fmt.Errorf("%w: backgrounds: %w", ErrResources, err)
	}
	if len(assets) > 0 {
		log.Info("background pool ready", "assets", len(assets), "dynamic", o.opts.Dynamic)
	}

	return clip.New(clip.Deps{
		Video:       o.deps.Video,
		Pools:       o.deps.Pools,
		Cues:        transcription.New(o.deps.Video, o.deps.Transcriber, o.deps.Pools, o.opts.TranscriptionTimeout, log),
		Backgrounds: background.NewSelector(assets, o.opts.Dynamic, o.opts.OffsetMargin, o.opts.Rand),
		Progress:    reporter,
		Log:         log,
	}, o.opts.Settings), nil
}

func (o *Orchestrator) runOne(ctx context.Context, p *clip.Pipeline, jobsDir string, seg types.HighlightSegment, log *slog.Logger) (res types.ClipResult) {
	res = types.ClipResult{Segment: seg}
	defer func() {
		if r := recover(); r != nil {
			log.Error("clip job panicked", "clip", seg.Name(), "panic", r, "stack", string(debug.Stack()))
			res = types.ClipResult{Segment: seg, Err: fmt.Errorf("%s: panic: %v", seg.Name(), r)}
		}
	}()

	dir := filepath.Join(jobsDir, seg.Name())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		res.Err = err
		return res
	}
	res = o.runJob(ctx, p, types.NewClipJob(seg, dir))
	if res.Err != nil {
		log.Warn("clip job failed", "clip", seg.Name(), "err", res.Err)
	}
	return res
}

// cleanup removes every intermediate file. Failed job dirs go entirely;
// successful ones keep only their artifact.
func (o *Orchestrator) cleanup(jobsDir string, results []types.ClipResult, log *slog.Logger) {
	for _, r := range results {
		dir := filepath.Join(jobsDir, r.Segment.Name())
		if !r.OK() {
			if err := os.RemoveAll(dir); err != nil {
				log.Warn("cleanup failed", "dir", dir, "err", err)
			}
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Warn("cleanup failed", "dir", dir, "err", err)
			continue
		}
		for _, e := range entries {
			p := filepath.Join(dir, e.Name())
			if p == r.Artifact {
				continue
			}
			if err := os.RemoveAll(p); err != nil {
				log.Warn("cleanup failed", "path", p, "err", err)
			}
		}
	}
}

func errString(err error) string {
	if err == nil {
		return "no artifact produced"
	}
	return err.Error()
}
