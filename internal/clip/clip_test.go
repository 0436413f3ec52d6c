package clip

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/forPelevin/hlshorts/internal/background"
	"github.com/forPelevin/hlshorts/internal/config"
	"github.com/forPelevin/hlshorts/internal/pool"
	"github.com/forPelevin/hlshorts/internal/ports/portstest"
	"github.com/forPelevin/hlshorts/internal/progress"
	"github.com/forPelevin/hlshorts/internal/transcription"
	"github.com/forPelevin/hlshorts/internal/types"
)

type fixture struct {
	video *portstest.Video
	asr   *portstest.Transcriber
	sink  *portstest.Sink
	bgs   []types.BackgroundAsset
}

func newFixture() *fixture {
	return &fixture{
		video: &portstest.Video{},
		asr: &portstest.Transcriber{Words: []types.Word{
			{Start: 0, End: 0.4, Word: "hello"},
			{Start: 0.4, End: 0.9, Word: "world"},
		}},
		sink: &portstest.Sink{},
		bgs:  []types.BackgroundAsset{{Path: "/bg/a.mp4", Duration: time.Minute}},
	}
}

func (f *fixture) pipeline() *Pipeline {
	pools := pool.New(2, 2)
	return New(Deps{
		Video:       f.video,
		Pools:       pools,
		Cues:        transcription.New(f.video, f.asr, pools, time.Second, nil),
		Backgrounds: background.NewSelector(f.bgs, false, 5*time.Second, rand.New(rand.NewSource(1))),
		Progress:    progress.NewReporter(f.sink, "b1"),
	}, SettingsFrom(config.Default()))
}

func newJob(t *testing.T) *types.ClipJob {
	t.Helper()
	seg := types.HighlightSegment{Source: "/in/src.mp4", Start: 10 * time.Second, End: 25 * time.Second, Sequence: 1}
	return types.NewClipJob(seg, t.TempDir())
}

func TestRun_AllStagesSucceed(t *testing.T) {
	t.Parallel()

	f := newFixture()
	job := newJob(t)
	res := f.pipeline().Run(context.Background(), job)

	if !res.OK() {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Artifact != filepath.Join(job.WorkDir, "final.mp4") {
		t.Fatalf("unexpected artifact %s", res.Artifact)
	}
	if len(res.Degraded) != 0 || res.Captioner != "rich_ass" {
		t.Fatalf("unexpected result %+v", res)
	}
	if job.Stage != types.StageDone {
		t.Fatalf("job stopped at %s", job.Stage)
	}
	want := []string{"format", "audio", "background", "stack", "burn_ass", "encode"}
	var got []string
	for _, c := range f.video.Calls() {
		if c.Op != "probe" {
			got = append(got, c.Op)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("got ops %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got ops %v, want %v", got, want)
		}
	}
	for _, c := range f.video.Calls() {
		if c.Op == "format" && c.Arg != "1080x608" {
			t.Fatalf("formatted to %s, want 1080x608", c.Arg)
		}
		if c.Op == "background" && c.Arg != "1080x1308@0s" {
			t.Fatalf("background prepared as %s", c.Arg)
		}
	}

	steps := 0
	for _, ev := range f.sink.Events() {
		if ev.Type == types.EventStep {
			steps++
			if ev.Step != steps || ev.Clip != 1 {
				t.Fatalf("unexpected step event %+v", ev)
			}
		}
	}
	if steps != 6 {
		t.Fatalf("expected 6 step events, got %d", steps)
	}
}

func TestRun_FormatFailureIsTerminal(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.video.Fail = map[string]bool{"format": true}
	res := f.pipeline().Run(context.Background(), newJob(t))

	if res.OK() || !errors.Is(res.Err, ErrFormat) || res.Artifact != "" {
		t.Fatalf("expected format failure, got %+v", res)
	}
	if f.video.Count("audio") != 0 {
		t.Fatal("no stage may run after a format failure")
	}
}

func TestRun_Degradations(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		fail      []string
		noBg      bool
		wantFile  string
		wantDeg   []types.Stage
		wantOps   map[string]int
		captioner string
	}{
		{
			name:     "background fails, clip is padded",
			fail:     []string{"background"},
			wantFile: "final.mp4",
			wantDeg:  []types.Stage{types.StageBackgroundPrepared},
			wantOps:  map[string]int{"stack": 0, "pad": 1},
		},
		{
			name:     "stack fails, clip is padded",
			fail:     []string{"stack"},
			wantFile: "final.mp4",
			wantDeg:  []types.Stage{types.StageComposed},
			wantOps:  map[string]int{"stack": 1, "pad": 1},
		},
		{
			name:     "no backgrounds configured",
			noBg:     true,
			wantFile: "final.mp4",
			wantOps:  map[string]int{"background": 0, "pad": 1},
		},
		{
			name:      "captions fall back to srt",
			fail:      []string{"burn_ass"},
			wantFile:  "final.mp4",
			wantDeg:   []types.Stage{types.StageCaptioned},
			captioner: "srt_burn",
		},
		{
			name:      "encode fails, captioned clip is the result",
			fail:      []string{"encode"},
			wantFile:  "captioned_ass.mp4",
			wantDeg:   []types.Stage{types.StageEncoded},
			captioner: "rich_ass",
		},
		{
			name:      "everything after format fails",
			fail:      []string{"audio", "background", "pad", "burn_ass", "burn_srt", "encode"},
			wantFile:  "formatted.mp4",
			wantDeg:   []types.Stage{types.StageAudioExtracted, types.StageBackgroundPrepared, types.StageComposed, types.StageCaptioned, types.StageEncoded},
			captioner: "none",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture()
			f.video.Fail = map[string]bool{}
			for _, op := range tc.fail {
				f.video.Fail[op] = true
			}
			if tc.noBg {
				f.bgs = nil
			}
			job := newJob(t)
			res := f.pipeline().Run(context.Background(), job)

			if !res.OK() {
				t.Fatalf("expected an artifact, got %+v", res)
			}
			if filepath.Base(res.Artifact) != tc.wantFile {
				t.Fatalf("artifact %s, want %s", filepath.Base(res.Artifact), tc.wantFile)
			}
			if len(res.Degraded) != len(tc.wantDeg) {
				t.Fatalf("degraded %v, want %v", res.Degraded, tc.wantDeg)
			}
			for i := range tc.wantDeg {
				if res.Degraded[i] != tc.wantDeg[i] {
					t.Fatalf("degraded %v, want %v", res.Degraded, tc.wantDeg)
				}
			}
			for op, n := range tc.wantOps {
				if got := f.video.Count(op); got != n {
					t.Fatalf("%s called %d times, want %d", op, got, n)
				}
			}
			if tc.captioner != "" && res.Captioner != tc.captioner {
				t.Fatalf("captioner %s, want %s", res.Captioner, tc.captioner)
			}
		})
	}
}

func TestRun_TranscriptionFailureStillCaptions(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.asr.Err = errors.New("model crashed")
	job := newJob(t)
	res := f.pipeline().Run(context.Background(), job)

	if !res.OK() || res.Captioner != "rich_ass" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(job.Cues) != 1 || job.Cues[0].Text != transcription.FailedText {
		t.Fatalf("expected placeholder cue, got %+v", job.Cues)
	}
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := newFixture().pipeline().Run(ctx, newJob(t))
	if res.OK() || res.Err == nil {
		t.Fatalf("expected cancellation error, got %+v", res)
	}
}
