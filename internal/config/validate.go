package config

import (
	"errors"
	"fmt"
	"regexp"
)

var reHexColor = regexp.MustCompile(`^[0-9A-F]{6}$`)

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	cl := c.Clips
	if cl.MinDuration <= 0 {
		return errors.New("clips.min_duration must be > 0")
	}
	if cl.MaxDuration < cl.MinDuration {
		return errors.New("clips.min_duration must be <= clips.max_duration")
	}
	if cl.MaxClips <= 0 {
		return errors.New("clips.max_clips must be > 0")
	}
	if cl.TargetWidth <= 0 || cl.TargetHeight <= 0 {
		return errors.New("clips target size must be positive")
	}
	if cl.TargetWidth%2 != 0 || cl.TargetHeight%2 != 0 {
		return fmt.Errorf("clips target size %dx%d must be even", cl.TargetWidth, cl.TargetHeight)
	}

	cc := c.Concurrency
	if cc.CPUSlots <= 0 || cc.IOSlots <= 0 {
		return errors.New("concurrency slots must be > 0")
	}
	if cc.JobFactor <= 0 {
		return errors.New("concurrency.job_factor must be > 0")
	}
	if cc.JobCap < 0 {
		return errors.New("concurrency.job_cap must be >= 0")
	}

	t := c.Timeouts
	for name, d := range map[string]Duration{
		"transcode":     t.Transcode,
		"transcription": t.Transcription,
		"download":      t.Download,
		"probe":         t.Probe,
	} {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be > 0", name)
		}
	}

	if c.Background.OffsetMargin < 0 {
		return errors.New("background.offset_margin must be >= 0")
	}

	cp := c.Captions
	if _, ok := LookupPreset(cp.Preset); !ok {
		return fmt.Errorf("unknown caption preset %q", cp.Preset)
	}
	switch cp.Placement {
	case PlacementAuto, PlacementFraction, PlacementSplit, PlacementCenter:
	default:
		return fmt.Errorf("unknown caption placement %q", cp.Placement)
	}
	if cp.Fraction <= 0 || cp.Fraction >= 1 {
		return fmt.Errorf("captions.fraction %.2f must be within (0,1)", cp.Fraction)
	}
	if cp.FontSize <= 0 {
		return errors.New("captions.font_size must be > 0")
	}
	if cp.MaxChars <= 0 || cp.MaxLineDuration <= 0 || cp.MaxGap < 0 {
		return errors.New("captions line limits must be positive")
	}
	for name, col := range map[string]string{
		"primary_color":   cp.PrimaryColor,
		"highlight_color": cp.HighlightColor,
	} {
		if !reHexColor.MatchString(col) {
			return fmt.Errorf("captions.%s %q must be RRGGBB", name, col)
		}
	}
	if cp.Outline && !reHexColor.MatchString(cp.OutlineColor) {
		return fmt.Errorf("captions.outline_color %q must be RRGGBB", cp.OutlineColor)
	}

	if c.Tools.FFmpeg == "" || c.Tools.FFprobe == "" {
		return errors.New("tools.ffmpeg and tools.ffprobe are required")
	}
	if c.Tools.WhisperModel == "" {
		return errors.New("tools.whisper_model is required")
	}
	if c.S3.Bucket != "" && c.S3.Region == "" {
		return errors.New("s3.region is required when s3.bucket is set")
	}
	return nil
}
