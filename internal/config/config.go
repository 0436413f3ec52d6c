package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Clips bounds segment durations and the output frame.
type Clips struct {
	MinDuration  Duration `toml:"min_duration"`
	MaxDuration  Duration `toml:"max_duration"`
	MaxClips     int      `toml:"max_clips"`
	TargetWidth  int      `toml:"target_width"`
	TargetHeight int      `toml:"target_height"`
}

// Concurrency sizes the two resource pools and the job window.
type Concurrency struct {
	CPUSlots  int `toml:"cpu_slots"`
	IOSlots   int `toml:"io_slots"`
	JobFactor int `toml:"job_factor"`
	JobCap    int `toml:"job_cap"`
}

type Timeouts struct {
	Transcode     Duration `toml:"transcode"`
	Transcription Duration `toml:"transcription"`
	Download      Duration `toml:"download"`
	Probe         Duration `toml:"probe"`
}

type Background struct {
	Dir          string   `toml:"dir"`
	Dynamic      bool     `toml:"dynamic"`
	OffsetMargin Duration `toml:"offset_margin"`
}

type Captions struct {
	Preset          string   `toml:"preset"`
	Font            string   `toml:"font"`
	FontsDir        string   `toml:"fonts_dir"`
	FontSize        int      `toml:"font_size"`
	PrimaryColor    string   `toml:"primary_color"`
	HighlightColor  string   `toml:"highlight_color"`
	OutlineColor    string   `toml:"outline_color"`
	Outline         bool     `toml:"outline"`
	Placement       string   `toml:"placement"`
	Fraction        float64  `toml:"fraction"`
	MaxChars        int      `toml:"max_chars"`
	MaxLineDuration Duration `toml:"max_line_duration"`
	MaxGap          Duration `toml:"max_gap"`
}

type Tools struct {
	FFmpeg       string `toml:"ffmpeg"`
	FFprobe      string `toml:"ffprobe"`
	YtDlp        string `toml:"ytdlp"`
	WhisperBin   string `toml:"whisper_bin"`
	WhisperModel string `toml:"whisper_model"`
}

type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Channel  string `toml:"channel"`
	Stream   string `toml:"stream"`
}

type S3 struct {
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	Profile   string `toml:"profile"`
	PathStyle bool   `toml:"path_style"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

type Output struct {
	Dir               string `toml:"dir"`
	CacheDir          string `toml:"cache_dir"`
	KeepIntermediates bool   `toml:"keep_intermediates"`
}

// Config is passed by value. Callers that need a variant build a new value
// (see WithPreset) instead of mutating a shared one.
type Config struct {
	Clips       Clips       `toml:"clips"`
	Concurrency Concurrency `toml:"concurrency"`
	Timeouts    Timeouts    `toml:"timeouts"`
	Background  Background  `toml:"background"`
	Captions    Captions    `toml:"captions"`
	Tools       Tools       `toml:"tools"`
	Redis       Redis       `toml:"redis"`
	S3          S3          `toml:"s3"`
	Logging     Logging     `toml:"logging"`
	Output      Output      `toml:"output"`
}

// Default returns the built-in configuration sized for the current machine.
func Default() Config {
	cpus := runtime.NumCPU()
	cfg := Config{
		Clips: Clips{
			MinDuration:  Duration(10 * time.Second),
			MaxDuration:  Duration(40 * time.Second),
			MaxClips:     20,
			TargetWidth:  1080,
			TargetHeight: 1920,
		},
		Concurrency: Concurrency{
			CPUSlots:  cpus,
			IOSlots:   cpus * 2,
			JobFactor: 2,
			JobCap:    16,
		},
		Timeouts: Timeouts{
			Transcode:     Duration(300 * time.Second),
			Transcription: Duration(120 * time.Second),
			Download:      Duration(30 * time.Minute),
			Probe:         Duration(30 * time.Second),
		},
		Background: Background{
			OffsetMargin: Duration(5 * time.Second),
		},
		Captions: Captions{
			Font:            "Arial",
			HighlightColor:  "FFFF00",
			Placement:       PlacementAuto,
			Fraction:        0.4,
			MaxChars:        12,
			MaxLineDuration: Duration(2500 * time.Millisecond),
			MaxGap:          Duration(1500 * time.Millisecond),
		},
		Tools: Tools{
			FFmpeg:       "ffmpeg",
			FFprobe:      "ffprobe",
			YtDlp:        "yt-dlp",
			WhisperBin:   ".cache/bin/whisper.cpp",
			WhisperModel: ".cache/models/ggml-base.bin",
		},
		Redis: Redis{
			Channel: "hlshorts:progress",
			Stream:  "hlshorts:events",
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
		Output: Output{
			Dir:      "out",
			CacheDir: ".cache",
		},
	}
	cfg, _ = cfg.WithPreset(DefaultPreset)
	return cfg
}

// Load reads the TOML file at path on top of Default. A missing file is not
// an error; the returned bool reports whether it existed.
func Load(path string) (Config, bool, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, false, nil
	}
	path = expandPath(path)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, false, nil
		}
		return Config{}, false, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	// Presets are applied before explicit fields so a file can pick a preset
	// and still override single style values.
	var head struct {
		Captions struct {
			Preset string `toml:"preset"`
		} `toml:"captions"`
	}
	if err := toml.NewDecoder(f).Decode(&head); err != nil {
		return Config{}, true, fmt.Errorf("decode config: %w", err)
	}
	if head.Captions.Preset != "" {
		cfg, err = cfg.WithPreset(head.Captions.Preset)
		if err != nil {
			return Config{}, true, err
		}
	}
	if _, err := f.Seek(0, 0); err != nil {
		return Config{}, true, fmt.Errorf("rewind config: %w", err)
	}
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, true, fmt.Errorf("decode config: %w", err)
	}
	cfg = cfg.normalize()
	return cfg, true, nil
}

func (c Config) normalize() Config {
	c.Background.Dir = expandPath(c.Background.Dir)
	c.Captions.FontsDir = expandPath(c.Captions.FontsDir)
	c.Output.Dir = expandPath(c.Output.Dir)
	c.Output.CacheDir = expandPath(c.Output.CacheDir)
	c.Tools.WhisperModel = expandPath(c.Tools.WhisperModel)
	c.Captions.Placement = strings.ToLower(strings.TrimSpace(c.Captions.Placement))
	c.Captions.Preset = strings.ToLower(strings.TrimSpace(c.Captions.Preset))
	for _, col := range []*string{&c.Captions.PrimaryColor, &c.Captions.HighlightColor, &c.Captions.OutlineColor} {
		*col = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(*col), "#"))
	}
	return c
}

// JobLimit is the sliding window size: min(cpus*factor, cap).
func (c Config) JobLimit(cpus int) int {
	n := cpus * c.Concurrency.JobFactor
	if c.Concurrency.JobCap > 0 && n > c.Concurrency.JobCap {
		n = c.Concurrency.JobCap
	}
	if n < 1 {
		n = 1
	}
	return n
}

func expandPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Duration decodes TOML strings such as "2.5s" or "5m".
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}
