package layout

import (
	"fmt"
	"math"

	"github.com/forPelevin/hlshorts/internal/ports"
)

const (
	// SeparatorHeight is the strip drawn between the clip and the background.
	SeparatorHeight = 4
	SeparatorColor  = "0x333333"

	topMinShare = 0.25
	topMaxShare = 0.35
)

// EvenUp rounds n up to the next even integer. Encoders reject odd sizes.
func EvenUp(n int) int {
	if n%2 != 0 {
		return n + 1
	}
	return n
}

// EvenDown rounds n down to the previous even integer.
func EvenDown(n int) int {
	if n%2 != 0 {
		return n - 1
	}
	return n
}

// FormatSize keeps the source aspect ratio at the target width.
func FormatSize(src ports.Size, targetWidth int) (ports.Size, error) {
	if src.Width <= 0 || src.Height <= 0 {
		return ports.Size{}, fmt.Errorf("invalid source size %dx%d", src.Width, src.Height)
	}
	if targetWidth <= 0 {
		return ports.Size{}, fmt.Errorf("invalid target width %d", targetWidth)
	}
	h := int(math.Round(float64(targetWidth) * float64(src.Height) / float64(src.Width)))
	if h < 2 {
		h = 2
	}
	return ports.Size{Width: EvenUp(targetWidth), Height: EvenUp(h)}, nil
}

// Stack describes the vertical composition of clip, separator and background.
type Stack struct {
	Top       ports.Size
	Separator int
	Bottom    ports.Size
}

// SplitY is the vertical boundary between the two regions.
func (s Stack) SplitY() int { return s.Top.Height + s.Separator/2 }

func (s Stack) Total() ports.Size {
	return ports.Size{Width: s.Top.Width, Height: s.Top.Height + s.Separator + s.Bottom.Height}
}

// StackFor fits a clip of clipHeight into the top band of frame. The band is
// clamped to 25-35% of the frame height and the background takes the rest.
func StackFor(frame ports.Size, clipHeight int) (Stack, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return Stack{}, fmt.Errorf("invalid frame %dx%d", frame.Width, frame.Height)
	}
	lo := int(float64(frame.Height) * topMinShare)
	hi := int(float64(frame.Height) * topMaxShare)
	top := clipHeight
	if top > hi {
		top = hi
	}
	if top < lo {
		top = lo
	}
	top = EvenUp(top)
	bottom := EvenDown(frame.Height - top - SeparatorHeight)
	if bottom <= 0 {
		return Stack{}, fmt.Errorf("frame %dx%d too small to stack", frame.Width, frame.Height)
	}
	// Give any rounding remainder back to the top band so the total matches.
	top = frame.Height - SeparatorHeight - bottom
	if top%2 != 0 {
		return Stack{}, fmt.Errorf("frame height %d cannot be split evenly", frame.Height)
	}
	w := EvenUp(frame.Width)
	return Stack{
		Top:       ports.Size{Width: w, Height: top},
		Separator: SeparatorHeight,
		Bottom:    ports.Size{Width: w, Height: bottom},
	}, nil
}

// Placement policies for caption anchoring.
const (
	PlaceAuto     = "auto"
	PlaceFraction = "fraction"
	PlaceSplit    = "split"
	PlaceCenter   = "center"
)

// CaptionY returns the vertical anchor for captions in a frame of height h.
// splitY is the region boundary and is 0 when nothing was stacked.
func CaptionY(policy string, fraction float64, h, splitY int) int {
	frac := func() int { return int(math.Round(float64(h) * fraction)) }
	switch policy {
	case PlaceCenter:
		return h / 2
	case PlaceFraction:
		return frac()
	case PlaceSplit:
		if splitY > 0 {
			return splitY
		}
		return h / 2
	default:
		if splitY > 0 {
			return splitY
		}
		return frac()
	}
}
