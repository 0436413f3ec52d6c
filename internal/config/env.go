package config

import "strings"

// EnvPrefix namespaces environment overrides, e.g. HLSHORTS_REDIS_ADDR.
const EnvPrefix = "HLSHORTS_"

// FromEnv returns a copy of c with environment overrides applied. lookup is
// usually os.LookupEnv; empty values are ignored.
func (c Config) FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PRESET"); ok {
		var err error
		if c, err = c.WithPreset(v); err != nil {
			return Config{}, err
		}
	}
	for name, dst := range map[string]*string{
		"BACKGROUND_DIR": &c.Background.Dir,
		"OUT_DIR":        &c.Output.Dir,
		"CACHE_DIR":      &c.Output.CacheDir,
		"FFMPEG":         &c.Tools.FFmpeg,
		"FFPROBE":        &c.Tools.FFprobe,
		"YTDLP":          &c.Tools.YtDlp,
		"WHISPER_BIN":    &c.Tools.WhisperBin,
		"WHISPER_MODEL":  &c.Tools.WhisperModel,
		"REDIS_ADDR":     &c.Redis.Addr,
		"REDIS_PASSWORD": &c.Redis.Password,
		"S3_BUCKET":      &c.S3.Bucket,
		"S3_PREFIX":      &c.S3.Prefix,
		"S3_REGION":      &c.S3.Region,
		"LOG_LEVEL":      &c.Logging.Level,
		"LOG_FORMAT":     &c.Logging.Format,
	} {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	// The AWS SDK convention works too when no explicit region is set.
	if c.S3.Region == "" {
		if v, ok := lookup("AWS_REGION"); ok {
			c.S3.Region = strings.TrimSpace(v)
		}
	}
	return c.normalize(), nil
}
