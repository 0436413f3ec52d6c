package progress

import (
	"context"
	"log/slog"
	"time"

	"github.com/forPelevin/hlshorts/internal/logging"
	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/types"
)

// Steps are the per-clip step numbers reported in step events.
const (
	StepFormat = iota + 1
	StepAudio
	StepBackground
	StepCompose
	StepCaption
	StepEncode
)

var stepNames = map[int]string{
	StepFormat:     "Formatting video",
	StepAudio:      "Transcribing audio",
	StepBackground: "Preparing background",
	StepCompose:    "Stacking videos",
	StepCaption:    "Adding captions",
	StepEncode:     "Encoding final clip",
}

func StepName(step int) string { return stepNames[step] }

// Reporter stamps events with the batch id and time before handing them to
// the sink. A nil sink drops everything.
type Reporter struct {
	sink    ports.ProgressSink
	batchID string
	now     func() time.Time
}

func NewReporter(sink ports.ProgressSink, batchID string) *Reporter {
	return &Reporter{sink: sink, batchID: batchID, now: time.Now}
}

func (r *Reporter) emit(ctx context.Context, ev types.ProgressEvent) {
	if r == nil || r.sink == nil {
		return
	}
	ev.BatchID = r.batchID
	ev.At = r.now().UTC()
	r.sink.Emit(ctx, ev)
}

func (r *Reporter) Total(ctx context.Context, n int) {
	r.emit(ctx, types.ProgressEvent{Type: types.EventTotal, Count: n})
}

func (r *Reporter) Step(ctx context.Context, clip, step int) {
	r.emit(ctx, types.ProgressEvent{Type: types.EventStep, Clip: clip, Step: step, Description: StepName(step)})
}

func (r *Reporter) Completed(ctx context.Context, clip int) {
	r.emit(ctx, types.ProgressEvent{Type: types.EventCompleted, Clip: clip})
}

func (r *Reporter) Error(ctx context.Context, clip int, msg string) {
	r.emit(ctx, types.ProgressEvent{Type: types.EventError, Clip: clip, Message: msg})
}

func (r *Reporter) Done(ctx context.Context, produced int) {
	r.emit(ctx, types.ProgressEvent{Type: types.EventDone, Count: produced})
}

// ChannelSink forwards events without blocking. Events are dropped when the
// buffer is full.
type ChannelSink struct {
	C chan types.ProgressEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan types.ProgressEvent, buffer)}
}

func (s *ChannelSink) Emit(_ context.Context, ev types.ProgressEvent) {
	select {
	case s.C <- ev:
	default:
	}
}

type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink { return &LogSink{log: logging.OrDiscard(log)} }

func (s *LogSink) Emit(ctx context.Context, ev types.ProgressEvent) {
	attrs := []any{"event", string(ev.Type)}
	if ev.Clip > 0 {
		attrs = append(attrs, "clip", ev.Clip)
	}
	switch ev.Type {
	case types.EventStep:
		s.log.DebugContext(ctx, "clip step", append(attrs, "step", ev.Step, "desc", ev.Description)...)
	case types.EventError:
		s.log.WarnContext(ctx, "clip failed", append(attrs, "err", ev.Message)...)
	case types.EventTotal, types.EventDone:
		s.log.InfoContext(ctx, "batch progress", append(attrs, "count", ev.Count)...)
	default:
		s.log.InfoContext(ctx, "clip progress", attrs...)
	}
}

// Multi fans events out to every non-nil sink.
type Multi []ports.ProgressSink

func NewMulti(sinks ...ports.ProgressSink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m Multi) Emit(ctx context.Context, ev types.ProgressEvent) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}
