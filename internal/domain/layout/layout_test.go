package layout

import (
	"testing"

	"github.com/forPelevin/hlshorts/internal/ports"
)

func TestEvenUp(t *testing.T) {
	tests := map[int]int{0: 0, 1: 2, 2: 2, 607: 608, 1080: 1080}
	for in, want := range tests {
		if got := EvenUp(in); got != want {
			t.Fatalf("EvenUp(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestFormatSize_AlwaysEven(t *testing.T) {
	t.Parallel()
	for w := 100; w <= 4000; w += 37 {
		for h := 100; h <= 4000; h += 53 {
			got, err := FormatSize(ports.Size{Width: w, Height: h}, 1080)
			if err != nil {
				t.Fatalf("FormatSize(%dx%d): %v", w, h, err)
			}
			if got.Width%2 != 0 || got.Height%2 != 0 {
				t.Fatalf("FormatSize(%dx%d) = %dx%d, want even", w, h, got.Width, got.Height)
			}
		}
	}
}

func TestFormatSize_KeepsAspect(t *testing.T) {
	got, err := FormatSize(ports.Size{Width: 1920, Height: 1080}, 1080)
	if err != nil {
		t.Fatal(err)
	}
	if got.Width != 1080 || got.Height != 608 {
		t.Fatalf("got %dx%d, want 1080x608", got.Width, got.Height)
	}
	if _, err := FormatSize(ports.Size{}, 1080); err == nil {
		t.Fatal("expected error for empty source size")
	}
}

func TestStackFor(t *testing.T) {
	frame := ports.Size{Width: 1080, Height: 1920}
	tests := []struct {
		name    string
		clipH   int
		wantTop int
	}{
		{"landscape clip in band", 608, 608},
		{"tiny clip clamps to min", 100, 480},
		{"tall clip clamps to max", 1920, 672},
		{"odd clip height", 601, 602},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := StackFor(frame, tc.clipH)
			if err != nil {
				t.Fatalf("StackFor: %v", err)
			}
			if s.Top.Height != tc.wantTop {
				t.Fatalf("top height = %d, want %d", s.Top.Height, tc.wantTop)
			}
			if s.Total() != frame {
				t.Fatalf("total = %+v, want %+v", s.Total(), frame)
			}
			for _, d := range []int{s.Top.Width, s.Top.Height, s.Bottom.Width, s.Bottom.Height, s.Separator} {
				if d%2 != 0 {
					t.Fatalf("odd dimension in %+v", s)
				}
			}
			if s.SplitY() != s.Top.Height+SeparatorHeight/2 {
				t.Fatalf("unexpected split y %d", s.SplitY())
			}
		})
	}
}

func TestCaptionY(t *testing.T) {
	tests := []struct {
		policy string
		split  int
		want   int
	}{
		{PlaceAuto, 0, 768},
		{PlaceAuto, 610, 610},
		{PlaceFraction, 610, 768},
		{PlaceSplit, 610, 610},
		{PlaceSplit, 0, 960},
		{PlaceCenter, 610, 960},
	}
	for _, tc := range tests {
		if got := CaptionY(tc.policy, 0.4, 1920, tc.split); got != tc.want {
			t.Fatalf("CaptionY(%s, split=%d) = %d, want %d", tc.policy, tc.split, got, tc.want)
		}
	}
}
