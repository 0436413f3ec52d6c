package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/forPelevin/hlshorts/internal/logging"
	"github.com/forPelevin/hlshorts/internal/pool"
	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/types"
)

const (
	NoAudioText = "NO AUDIO AVAILABLE"
	FailedText  = "TRANSCRIPTION FAILED"

	// FallbackWindow is the span covered by a placeholder cue.
	FallbackWindow = 5 * time.Second
	DefaultTimeout = 120 * time.Second
)

var (
	// ErrNoModel means the transcriber could not be readied for a batch.
	ErrNoModel = errors.New("transcription model unavailable")

	errEmpty = errors.New("transcription produced no words")
)

// Adapter turns a clip into word cues. Cues never returns an empty list: every
// failure is replaced by a single placeholder cue.
type Adapter struct {
	video   ports.VideoTool
	asr     ports.Transcriber
	pools   *pool.Pools
	timeout time.Duration
	log     *slog.Logger
}

func New(video ports.VideoTool, asr ports.Transcriber, pools *pool.Pools, timeout time.Duration, log *slog.Logger) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{video: video, asr: asr, pools: pools, timeout: timeout, log: logging.OrDiscard(log)}
}

// Fallback is the placeholder cue list used when no words are available.
func Fallback(text string) []types.WordCue {
	return []types.WordCue{{Text: text, Start: 0, End: FallbackWindow}}
}

// Cues extracts mono 16 kHz audio from clipPath into workDir and transcribes it.
// The bool reports whether real words were produced.
func (a *Adapter) Cues(ctx context.Context, clipPath, workDir string) ([]types.WordCue, bool) {
	log := a.log.With("clip", filepath.Base(workDir))
	wav := filepath.Join(workDir, "audio.wav")

	err := a.pools.CPU.Do(ctx, func(ctx context.Context) error {
		return a.video.ExtractAudio(ctx, clipPath, wav)
	})
	if err == nil && !nonEmpty(wav) {
		err = errors.New("extracted audio is empty")
	}
	if err != nil {
		log.Warn("no audio for clip", "err", err)
		return Fallback(NoAudioText), false
	}

	var tr types.Transcript
	err = a.pools.CPU.Do(ctx, func(ctx context.Context) error {
		tctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		var terr error
		tr, terr = a.transcribe(tctx, wav, workDir)
		if terr == nil && tctx.Err() != nil {
			terr = tctx.Err()
		}
		return terr
	})
	var cues []types.WordCue
	if err == nil {
		cues = FromTranscript(tr)
		if len(cues) == 0 {
			err = errEmpty
		}
	}
	if err != nil {
		log.Warn("transcription failed", "err", err)
		return Fallback(FailedText), false
	}
	return cues, true
}

// transcribe converts a panicking transcriber into an error so the clip keeps
// its placeholder cues.
func (a *Adapter) transcribe(ctx context.Context, wav, workDir string) (tr types.Transcript, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcriber panicked: %v", r)
		}
	}()
	return a.asr.Transcribe(ctx, wav, workDir)
}

// FromTranscript flattens word timestamps into ordered cues. Segments without
// word timing contribute a single cue with the segment text.
func FromTranscript(tr types.Transcript) []types.WordCue {
	var out []types.WordCue
	for _, s := range tr.Segments {
		if len(s.Words) == 0 {
			out = append(out, types.WordCue{Text: s.Text, Start: seconds(s.Start), End: seconds(s.End)})
			continue
		}
		for _, w := range s.Words {
			out = append(out, types.WordCue{Text: w.Word, Start: seconds(w.Start), End: seconds(w.End)})
		}
	}
	return Validate(out)
}

// Validate drops blank or malformed cues and restores start order. Overlaps are
// trimmed so each cue ends no later than the next one starts.
func Validate(cues []types.WordCue) []types.WordCue {
	out := lo.FilterMap(cues, func(c types.WordCue, _ int) (types.WordCue, bool) {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" || c.Start < 0 || c.End < c.Start {
			return c, false
		}
		return c, true
	})
	slices.SortStableFunc(out, func(x, y types.WordCue) int {
		switch {
		case x.Start < y.Start:
			return -1
		case x.Start > y.Start:
			return 1
		}
		return 0
	})
	for i := 0; i+1 < len(out); i++ {
		if out[i].End > out[i+1].Start {
			out[i].End = out[i+1].Start
		}
	}
	return out
}

func seconds(v float64) time.Duration {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return -1
	}
	return time.Duration(v * float64(time.Second))
}

func nonEmpty(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Size() > 0
}
