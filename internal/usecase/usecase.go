package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"github.com/forPelevin/hlshorts/internal/batch"
	"github.com/forPelevin/hlshorts/internal/domain/highlights"
	"github.com/forPelevin/hlshorts/internal/logging"
	"github.com/forPelevin/hlshorts/internal/pool"
	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/types"
)

// Batch runs clip jobs for a list of segments.
type Batch interface {
	Run(ctx context.Context, runDir string, segments []types.HighlightSegment) (batch.Report, error)
}

type Deps struct {
	Downloader ports.Downloader
	Detector   ports.Detector
	Video      ports.VideoTool
	Batch      Batch
	// Store is optional; when set every clip is uploaded after the batch.
	Store ports.ArtifactStore
	Pools *pool.Pools
	Log   *slog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	d.Log = logging.OrDiscard(d.Log)
	return Usecase{d: d}
}

type Input struct {
	Source   string
	ClipsN   int
	MinClip  time.Duration
	MaxClip  time.Duration
	CacheDir string
	OutDir   string
}

type Result struct {
	Manifest types.Manifest
	Report   batch.Report
}

func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	log := u.d.Log

	var src string
	err := u.d.Pools.IO.Do(ctx, func(ctx context.Context) error {
		var derr error
		src, derr = u.d.Downloader.Download(ctx, in.Source, filepath.Join(in.CacheDir, "download"))
		return derr
	})
	if err != nil {
		return Result{}, err
	}
	log.Info("source ready", "path", src)

	segs, err := u.segments(ctx, src, in)
	if err != nil {
		return Result{}, err
	}
	log.Info("highlights selected", "count", len(segs))

	rep, err := u.d.Batch.Run(ctx, in.OutDir, segs)
	if err != nil && len(rep.Artifacts) == 0 {
		return Result{Report: rep}, err
	}

	m := types.Manifest{Input: in.Source, Source: src, BatchID: rep.BatchID}
	for _, r := range rep.Results {
		if !r.OK() {
			continue
		}
		clip, err := u.publish(ctx, in.OutDir, rep.BatchID, r)
		if err != nil {
			return Result{Report: rep}, err
		}
		m.Clips = append(m.Clips, clip)
	}
	return Result{Manifest: m, Report: rep}, err
}

// segments detects highlight spans and falls back to a seeded random split
// when detection fails or finds nothing.
func (u Usecase) segments(ctx context.Context, src string, in Input) ([]types.HighlightSegment, error) {
	var spans []ports.Span
	err := u.d.Pools.CPU.Do(ctx, func(ctx context.Context) error {
		var derr error
		spans, derr = u.d.Detector.Detect(ctx, src, in.MinClip, in.MaxClip)
		return derr
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil || len(spans) == 0 {
		u.d.Log.Warn("highlight detection unavailable, splitting evenly", "err", err)
		var total time.Duration
		perr := u.d.Pools.IO.Do(ctx, func(ctx context.Context) error {
			var err error
			_, total, err = u.d.Video.Probe(ctx, src)
			return err
		})
		if perr != nil {
			return nil, fmt.Errorf("probe source: %w", perr)
		}
		spans = highlights.Split(total, in.MinClip, in.MaxClip, in.ClipsN, rand.New(rand.NewSource(highlights.SplitSeed)))
	}
	spans = highlights.Select(spans, in.ClipsN)
	if len(spans) == 0 {
		return nil, errors.New("no highlight segments found")
	}
	return highlights.Segments(src, spans), nil
}

// publish moves a clip artifact to clips/<name>.mp4 and uploads it when a
// store is configured. Upload failures only lose the remote copy.
func (u Usecase) publish(ctx context.Context, outDir, batchID string, r types.ClipResult) (types.ManifestClip, error) {
	name := r.Segment.Name() + ".mp4"
	rel := filepath.Join("clips", name)
	dst := filepath.Join(outDir, rel)
	if r.Artifact != dst {
		if err := os.Rename(r.Artifact, dst); err != nil {
			return types.ManifestClip{}, fmt.Errorf("publish %s: %w", name, err)
		}
		// Succeeds only when nothing else was kept in the job dir.
		_ = os.Remove(filepath.Dir(r.Artifact))
	}

	clip := types.ManifestClip{
		ID:        fmt.Sprintf("%03d", r.Segment.Sequence),
		Sequence:  r.Segment.Sequence,
		StartSec:  r.Segment.Start.Seconds(),
		EndSec:    r.Segment.End.Seconds(),
		File:      filepath.ToSlash(rel),
		Captioner: r.Captioner,
		Degraded:  lo.Map(r.Degraded, func(s types.Stage, _ int) string { return s.String() }),
	}
	if len(clip.Degraded) == 0 {
		clip.Degraded = nil
	}
	if u.d.Store != nil {
		uri, err := u.d.Store.Put(ctx, batchID+"/"+name, dst)
		if err != nil {
			u.d.Log.Warn("upload failed", "clip", r.Segment.Name(), "err", err)
		} else {
			clip.Remote = uri
		}
	}
	return clip, nil
}
