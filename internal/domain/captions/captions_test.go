package captions

import (
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/types"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func cue(text string, start, end int) types.WordCue {
	return types.WordCue{Text: text, Start: ms(start), End: ms(end)}
}

func texts(lines []types.CaptionLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

func TestPackLines(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cues []types.WordCue
		want []string
	}{
		{
			name: "fits on one line",
			cues: []types.WordCue{cue("hi", 0, 300), cue("there", 300, 700)},
			want: []string{"hi there"},
		},
		{
			name: "char limit",
			cues: []types.WordCue{cue("hello", 0, 300), cue("world", 300, 600), cue("again", 600, 900)},
			want: []string{"hello world", "again"},
		},
		{
			name: "pause breaks the line",
			cues: []types.WordCue{cue("a", 0, 100), cue("b", 1700, 1800)},
			want: []string{"a", "b"},
		},
		{
			name: "duration limit",
			cues: []types.WordCue{cue("a", 0, 1000), cue("b", 1000, 2000), cue("c", 2000, 2600)},
			want: []string{"a b", "c"},
		},
		{
			name: "pauses do not count as spoken time",
			cues: []types.WordCue{cue("a", 0, 500), cue("b", 1500, 2000), cue("c", 2800, 3200)},
			want: []string{"a b c"},
		},
		{
			name: "spoken time limit with pauses",
			cues: []types.WordCue{cue("a", 0, 1200), cue("b", 2000, 3200), cue("c", 3500, 3700)},
			want: []string{"a b", "c"},
		},
		{
			name: "blank words are skipped",
			cues: []types.WordCue{cue("  ", 0, 100), cue("ok", 100, 200)},
			want: []string{"ok"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := texts(PackLines(tc.cues, DefaultLimits()))
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPackLines_OversizedWordIsOneLine(t *testing.T) {
	t.Parallel()

	lines := PackLines([]types.WordCue{cue("supercalifragilistic", 0, 4000)}, DefaultLimits())
	if len(lines) != 1 {
		t.Fatalf("expected exactly one line, got %d", len(lines))
	}
	if lines[0].Start != 0 || lines[0].End != ms(4000) || len(lines[0].Words) != 1 {
		t.Fatalf("unexpected line %+v", lines[0])
	}
}

func TestPackLines_CoversEveryWordInOrder(t *testing.T) {
	t.Parallel()

	var cues []types.WordCue
	for i := 0; i < 40; i++ {
		cues = append(cues, cue("w", i*400, i*400+300))
	}
	lines := PackLines(cues, DefaultLimits())
	n := 0
	for i, l := range lines {
		var spoken time.Duration
		for _, w := range l.Words {
			spoken += w.End - w.Start
		}
		if spoken > DefaultLimits().MaxDuration && len(l.Words) > 1 {
			t.Fatalf("line %d too long: %s spoken", i, spoken)
		}
		if i > 0 && l.Start < lines[i-1].End {
			t.Fatalf("line %d overlaps previous", i)
		}
		n += len(l.Words)
	}
	if n != len(cues) {
		t.Fatalf("packed %d words, want %d", n, len(cues))
	}
}

func TestRenderASS_HighlightsEachWord(t *testing.T) {
	t.Parallel()

	lines := PackLines([]types.WordCue{cue("Hello", 0, 300), cue("world", 300, 800)}, DefaultLimits())
	st := Style{Font: "Arial", FontSize: 36, Primary: "FFFFFF", Highlight: "FFFF00", Outline: true, OutlineColor: "000000"}
	ass := RenderASS(lines, st, ports.Size{Width: 1080, Height: 1920}, 766)

	for _, want := range []string{"PlayResX: 1080", "PlayResY: 1920", "Style: Caption, Arial, 64,", `{\an8\pos(540,766)}`, `{\c&H0000FFFF&}Hello{\r} world`, `Hello {\c&H0000FFFF&}world{\r}`} {
		if !strings.Contains(ass, want) {
			t.Fatalf("expected %q in ASS:\n%s", want, ass)
		}
	}
	if got := strings.Count(ass, "Dialogue:"); got != 2 {
		t.Fatalf("expected 2 events, got %d", got)
	}
}

func TestRenderSRT(t *testing.T) {
	t.Parallel()

	got := RenderSRT([]types.CaptionLine{{Text: "hi there", Start: ms(1230), End: ms(61500)}})
	want := "1\n00:00:01,230 --> 00:01:01,500\nhi there\n\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestForceStyle(t *testing.T) {
	t.Parallel()

	st := Style{Font: "Arial", FontSize: 36, Primary: "FF0000"}
	got := st.ForceStyle(1920, 960)
	for _, want := range []string{"FontName=Arial", "FontSize=24", "PrimaryColour=&H000000FF", "MarginV=144", "Outline=0"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}

func TestAssTime_Format(t *testing.T) {
	got := assTime(61*time.Second + 234*time.Millisecond)
	if got != "0:01:01.23" {
		t.Fatalf("unexpected assTime: %s", got)
	}
}
