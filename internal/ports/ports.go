package ports

import (
	"context"
	"time"

	"github.com/forPelevin/hlshorts/internal/types"
)

// Op is one external process invocation.
type Op struct {
	Name    string
	Args    []string
	Timeout time.Duration
	// Check turns a non-zero exit into an error instead of a failed Result.
	Check bool
}

type Result struct {
	OK     bool
	Stdout []byte
	Stderr []byte
}

// Gateway runs external tools. Implementations hold no global lock; callers
// gate admission through the resource pools.
type Gateway interface {
	Run(ctx context.Context, op Op) (Result, error)
}

// Size is a frame size in pixels.
type Size struct {
	Width  int
	Height int
}

// VideoTool is the set of transcode operations the clip pipeline needs.
type VideoTool interface {
	Probe(ctx context.Context, path string) (Size, time.Duration, error)
	Format(ctx context.Context, seg types.HighlightSegment, size Size, out string) error
	ExtractAudio(ctx context.Context, in, outWav string) error
	PrepareBackground(ctx context.Context, bg types.BackgroundChoice, size Size, dur time.Duration, out string) error
	Stack(ctx context.Context, top, bottom string, topSize Size, sepHeight int, out string) error
	Pad(ctx context.Context, in string, size Size, out string) error
	BurnASS(ctx context.Context, in, assPath, fontsDir, out string) error
	BurnSRT(ctx context.Context, in, srtPath, forceStyle, out string) error
	Encode(ctx context.Context, in, out string) error
}

type Downloader interface {
	Download(ctx context.Context, source, outDir string) (string, error)
}

// Span is a detected [Start, End) range of the source.
type Span struct {
	Start time.Duration
	End   time.Duration
}

type Detector interface {
	Detect(ctx context.Context, videoPath string, minDur, maxDur time.Duration) ([]Span, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, workDir string) (types.Transcript, error)
}

type ProgressSink interface {
	Emit(ctx context.Context, ev types.ProgressEvent)
}

type ArtifactStore interface {
	Put(ctx context.Context, key, path string) (string, error)
}
