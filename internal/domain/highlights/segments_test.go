package highlights

import (
	"math/rand"
	"testing"
	"time"

	"github.com/forPelevin/hlshorts/internal/ports"
)

func sec(n float64) time.Duration { return time.Duration(n * float64(time.Second)) }

func TestShape_MergesShortAndCutsLong(t *testing.T) {
	active := []ports.Span{
		{Start: sec(9), End: sec(20)},
		{Start: 0, End: sec(3)},
		{Start: sec(4), End: sec(8)},
		{Start: sec(25), End: sec(115)},
	}
	got := Shape(active, 10*time.Second, 40*time.Second)
	if len(got) != 4 {
		t.Fatalf("expected 4 spans, got %d: %v", len(got), got)
	}
	if got[0].Start != 0 || got[0].End != sec(20) {
		t.Fatalf("expected merged head span 0-20s, got %v", got[0])
	}
	for _, s := range got {
		if s.End-s.Start > 40*time.Second {
			t.Fatalf("span exceeds max: %v", s)
		}
	}
	if got[len(got)-1].End != sec(115) {
		t.Fatalf("cut spans must cover the source span, last=%v", got[len(got)-1])
	}
}

func TestShape_KeepsLoneShortSpan(t *testing.T) {
	got := Shape([]ports.Span{{Start: 0, End: sec(4)}}, 10*time.Second, 40*time.Second)
	if len(got) != 1 {
		t.Fatalf("expected the lone span to survive, got %v", got)
	}
	if Shape(nil, time.Second, 2*time.Second) != nil {
		t.Fatal("expected nil for no input")
	}
	if Shape([]ports.Span{{Start: 0, End: sec(4)}}, 10*time.Second, 5*time.Second) != nil {
		t.Fatal("expected nil when max < min")
	}
}

func TestSelect_LongestThenTimeline(t *testing.T) {
	spans := []ports.Span{
		{Start: 0, End: sec(12)},
		{Start: sec(20), End: sec(60)},
		{Start: sec(70), End: sec(85)},
		{Start: sec(90), End: sec(125)},
	}
	got := Select(spans, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(got))
	}
	if got[0].Start != sec(20) || got[1].Start != sec(90) {
		t.Fatalf("unexpected selection %v", got)
	}
	if len(Select(spans, 0)) != len(spans) {
		t.Fatal("limit 0 should keep everything")
	}
}

func TestSegments_NumbersFromOne(t *testing.T) {
	segs := Segments("/v.mp4", []ports.Span{{Start: 0, End: sec(10)}, {Start: sec(10), End: sec(25)}})
	for i, s := range segs {
		if s.Sequence != i+1 || s.Source != "/v.mp4" {
			t.Fatalf("unexpected segment %+v", s)
		}
	}
	if segs[1].Duration() != 15*time.Second {
		t.Fatalf("unexpected duration %s", segs[1].Duration())
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		total time.Duration
		limit int
	}{
		{"short video", sec(8), 20},
		{"two minutes", sec(120), 20},
		{"long video capped", sec(1800), 5},
		{"just above min", sec(11), 20},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Split(tc.total, 10*time.Second, 40*time.Second, tc.limit, rand.New(rand.NewSource(SplitSeed)))
			if len(got) == 0 {
				t.Fatal("expected at least one span")
			}
			if got[0].Start != 0 {
				t.Fatalf("first span must start at 0, got %v", got[0])
			}
			for i := 1; i < len(got); i++ {
				if got[i].Start != got[i-1].End {
					t.Fatalf("spans not contiguous at %d: %v", i, got)
				}
			}
			if got[len(got)-1].End != tc.total {
				t.Fatalf("spans must cover the video, last=%v total=%s", got[len(got)-1], tc.total)
			}
			for _, s := range got {
				if s.End-s.Start > 40*time.Second {
					t.Fatalf("span exceeds max: %v", s)
				}
			}
		})
	}
}

func TestSplit_Deterministic(t *testing.T) {
	a := Split(sec(300), 10*time.Second, 40*time.Second, 20, nil)
	b := Split(sec(300), 10*time.Second, 40*time.Second, 20, nil)
	if len(a) != len(b) {
		t.Fatalf("expected same plan, got %d vs %d spans", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("plans differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSplit_NarrowBoundsKeepMinimum(t *testing.T) {
	minDur, maxDur := 30*time.Second, 35*time.Second
	for _, total := range []time.Duration{sec(100), sec(300), sec(1234)} {
		got := Split(total, minDur, maxDur, 20, nil)
		if len(got) == 0 {
			t.Fatalf("total %s: expected spans", total)
		}
		for i, s := range got {
			if d := s.End - s.Start; d < minDur || d > maxDur {
				t.Fatalf("total %s: span %d has length %s outside [%s, %s]", total, i, d, minDur, maxDur)
			}
			if i > 0 && s.Start < got[i-1].End {
				t.Fatalf("total %s: spans overlap at %d: %v", total, i, got)
			}
			if s.End > total {
				t.Fatalf("total %s: span past the end: %v", total, s)
			}
		}
	}
}

func TestCut(t *testing.T) {
	tests := []struct {
		name     string
		span     time.Duration
		min, max time.Duration
		want     []time.Duration
	}{
		{"fits", sec(30), sec(10), sec(40), []time.Duration{sec(30)}},
		{"equal parts", sec(90), sec(10), sec(40), []time.Duration{sec(30), sec(30), sec(30)}},
		{"drops tail when halves are too short", sec(50), sec(30), sec(35), []time.Duration{sec(35)}},
		{"two capped parts", sec(75), sec(30), sec(35), []time.Duration{sec(35), sec(35)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := cut(ports.Span{Start: sec(5), End: sec(5) + tc.span}, tc.min, tc.max)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want lengths %v", got, tc.want)
			}
			at := sec(5)
			for i, s := range got {
				if s.Start != at || s.End-s.Start != tc.want[i] {
					t.Fatalf("part %d = %v, want start %s length %s", i, s, at, tc.want[i])
				}
				at = s.End
			}
		})
	}
}
