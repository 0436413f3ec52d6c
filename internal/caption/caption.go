package caption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/forPelevin/hlshorts/internal/domain/captions"
	"github.com/forPelevin/hlshorts/internal/domain/layout"
	"github.com/forPelevin/hlshorts/internal/logging"
	"github.com/forPelevin/hlshorts/internal/pool"
	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/types"
)

var ErrNoLines = errors.New("no caption lines")

// Request is everything a strategy needs to caption one clip.
type Request struct {
	In      string
	WorkDir string
	Lines   []types.CaptionLine
	Style   captions.Style
	Frame   ports.Size
	// SplitY is the boundary between stacked regions, 0 when not stacked.
	SplitY    int
	Placement string
	Fraction  float64
	FontsDir  string
}

// Y is the caption anchor for the request's placement policy.
func (r Request) Y() int {
	return layout.CaptionY(r.Placement, r.Fraction, r.Frame.Height, r.SplitY)
}

// Strategy burns captions into a clip and returns the new artifact path.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, req Request) (string, error)
}

// Outcome reports which strategy produced Path.
type Outcome struct {
	Path     string
	Strategy string
	Degraded bool
}

// Compositor tries its strategies in order and never fails: when every
// strategy errors the input clip is returned unchanged.
type Compositor struct {
	strategies []Strategy
	log        *slog.Logger
}

func NewCompositor(log *slog.Logger, strategies ...Strategy) *Compositor {
	return &Compositor{strategies: strategies, log: logging.OrDiscard(log)}
}

// Default builds the rich ASS, SRT burn-in and passthrough chain.
func Default(video ports.VideoTool, cpu *pool.Pool, log *slog.Logger) *Compositor {
	return NewCompositor(log,
		&RichASS{Video: video, CPU: cpu},
		&SRTBurn{Video: video, CPU: cpu},
		Passthrough{},
	)
}

func (c *Compositor) Apply(ctx context.Context, req Request) Outcome {
	for i, s := range c.strategies {
		path, err := c.try(ctx, s, req)
		if err == nil {
			return Outcome{Path: path, Strategy: s.Name(), Degraded: i > 0}
		}
		c.log.Warn("caption strategy failed",
			"clip", filepath.Base(req.WorkDir),
			"strategy", s.Name(),
			"err", err,
		)
		if ctx.Err() != nil {
			break
		}
	}
	return Outcome{Path: req.In, Strategy: Passthrough{}.Name(), Degraded: true}
}

func (c *Compositor) try(ctx context.Context, s Strategy, req Request) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Apply(ctx, req)
}

// RichASS renders per-word highlighted captions as ASS and burns them with
// the ass filter.
type RichASS struct {
	Video ports.VideoTool
	CPU   *pool.Pool
}

func (RichASS) Name() string { return "rich_ass" }

func (s *RichASS) Apply(ctx context.Context, req Request) (string, error) {
	if len(req.Lines) == 0 {
		return "", ErrNoLines
	}
	doc := captions.RenderASS(req.Lines, req.Style, req.Frame, req.Y())
	assPath := filepath.Join(req.WorkDir, "captions.ass")
	if err := os.WriteFile(assPath, []byte(doc), 0o644); err != nil {
		return "", err
	}
	out := filepath.Join(req.WorkDir, "captioned_ass.mp4")
	err := s.CPU.Do(ctx, func(ctx context.Context) error {
		return s.Video.BurnASS(ctx, req.In, assPath, req.FontsDir, out)
	})
	if err != nil {
		_ = os.Remove(out)
		return "", err
	}
	return out, nil
}

// SRTBurn writes plain SRT cues and leaves styling to the subtitles filter.
type SRTBurn struct {
	Video ports.VideoTool
	CPU   *pool.Pool
}

func (SRTBurn) Name() string { return "srt_burn" }

func (s *SRTBurn) Apply(ctx context.Context, req Request) (string, error) {
	if len(req.Lines) == 0 {
		return "", ErrNoLines
	}
	srtPath := filepath.Join(req.WorkDir, "captions.srt")
	if err := os.WriteFile(srtPath, []byte(captions.RenderSRT(req.Lines)), 0o644); err != nil {
		return "", err
	}
	out := filepath.Join(req.WorkDir, "captioned_srt.mp4")
	style := req.Style.ForceStyle(req.Frame.Height, req.Y())
	err := s.CPU.Do(ctx, func(ctx context.Context) error {
		return s.Video.BurnSRT(ctx, req.In, srtPath, style, out)
	})
	if err != nil {
		_ = os.Remove(out)
		return "", err
	}
	return out, nil
}

// Passthrough returns the input unchanged.
type Passthrough struct{}

func (Passthrough) Name() string { return "none" }

func (Passthrough) Apply(_ context.Context, req Request) (string, error) { return req.In, nil }
