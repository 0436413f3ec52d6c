package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/flock"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/hlshorts/internal/batch"
	"github.com/forPelevin/hlshorts/internal/clip"
	"github.com/forPelevin/hlshorts/internal/config"
	"github.com/forPelevin/hlshorts/internal/logging"
	"github.com/forPelevin/hlshorts/internal/pool"
	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/hlshorts/internal/ports/adapters/proc"
	redisadapter "github.com/forPelevin/hlshorts/internal/ports/adapters/redis"
	s3adapter "github.com/forPelevin/hlshorts/internal/ports/adapters/s3"
	"github.com/forPelevin/hlshorts/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/hlshorts/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/hlshorts/internal/progress"
	"github.com/forPelevin/hlshorts/internal/types"
	"github.com/forPelevin/hlshorts/internal/usecase"
)

// ErrLocked is returned when another run holds the output root.
var ErrLocked = errors.New("another run is writing to this output directory")

// DefaultMaxConcurrent bounds how many inputs RunAll processes at once.
const DefaultMaxConcurrent = 2

type Config struct {
	// Input is a video URL or a local file. Inputs adds more of them for RunAll.
	Input  string
	Inputs []string
	// MaxConcurrent bounds how many inputs run at once; all of them share the
	// same CPU and IO pools.
	MaxConcurrent int
	App           config.Config
	Log           *slog.Logger
	// Sinks receive progress events next to the log and redis sinks.
	Sinks []ports.ProgressSink
}

func (c Config) inputs() []string {
	if c.Input == "" && len(c.Inputs) > 0 {
		return c.Inputs
	}
	return append([]string{c.Input}, c.Inputs...)
}

func (c Config) Validate() error {
	for _, in := range c.inputs() {
		if err := validateInput(in); err != nil {
			return err
		}
	}
	return c.App.Validate()
}

func validateInput(in string) error {
	if strings.TrimSpace(in) == "" {
		return errors.New("input is empty")
	}
	if ytdlp.IsURL(in) {
		return nil
	}
	st, err := os.Stat(in)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if st.IsDir() {
		return fmt.Errorf("input %s is a directory", in)
	}
	return nil
}

type Result struct {
	RunDir       string
	ManifestPath string
	Manifest     types.Manifest
	Report       batch.Report
}

// Outcome is the result of one input of RunAll.
type Outcome struct {
	Input  string
	Result Result
	Err    error
}

// Run processes the first input of cfg.
func Run(ctx context.Context, cfg Config) (Result, error) {
	cfg.Input, cfg.Inputs, cfg.MaxConcurrent = cfg.inputs()[0], nil, 1
	outcomes, err := RunAll(ctx, cfg)
	if err != nil {
		return Result{}, err
	}
	return outcomes[0].Result, outcomes[0].Err
}

// RunAll processes every input of cfg, at most MaxConcurrent at a time. The
// output lock, pools, progress sinks and artifact store are set up once and
// shared. A failing input never stops its siblings; the returned error only
// reports a setup failure.
func RunAll(ctx context.Context, cfg Config) ([]Outcome, error) {
	inputs := cfg.inputs()
	limit := cfg.MaxConcurrent
	if limit < 1 {
		limit = DefaultMaxConcurrent
	}

	r, err := newRunner(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer r.close()

	outcomes := make([]Outcome, len(inputs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, in := range inputs {
		g.Go(func() error {
			outcomes[i] = r.runOne(ctx, in)
			return nil
		})
	}
	_ = g.Wait()

	failed := lo.CountBy(outcomes, func(o Outcome) bool { return o.Err != nil })
	if len(inputs) > 1 {
		r.log.Info("all inputs finished", "inputs", len(inputs), "failed", failed)
	}
	return outcomes, nil
}

// runner holds what every input of one invocation shares.
type runner struct {
	app     config.Config
	log     *slog.Logger
	gw      *proc.Gateway
	video   *ffmpeg.Adapter
	pools   *pool.Pools
	sink    ports.ProgressSink
	store   ports.ArtifactStore
	closers []func()
}

func newRunner(ctx context.Context, cfg Config) (_ *runner, err error) {
	app := cfg.App
	r := &runner{app: app, log: logging.OrDiscard(cfg.Log)}
	defer func() {
		if err != nil {
			r.close()
		}
	}()

	if err := os.MkdirAll(app.Output.Dir, 0o755); err != nil {
		return nil, err
	}
	unlock, err := lockDir(app.Output.Dir)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, unlock)

	r.gw = proc.New(r.log)
	r.video = ffmpeg.New(r.gw, ffmpeg.Options{
		FFmpegPath:       app.Tools.FFmpeg,
		FFprobePath:      app.Tools.FFprobe,
		TranscodeTimeout: app.Timeouts.Transcode.D(),
		ProbeTimeout:     app.Timeouts.Probe.D(),
	})
	r.pools = pool.New(app.Concurrency.CPUSlots, app.Concurrency.IOSlots)

	sinks := append([]ports.ProgressSink{progress.NewLogSink(r.log)}, cfg.Sinks...)
	if app.Redis.Addr != "" {
		rs, err := redisadapter.New(ctx, redisadapter.Options{
			Addr:     app.Redis.Addr,
			Password: app.Redis.Password,
			DB:       app.Redis.DB,
			Channel:  app.Redis.Channel,
			Stream:   app.Redis.Stream,
		}, r.log)
		if err != nil {
			// Progress is best effort; the run goes on without redis.
			r.log.Warn("redis progress disabled", "err", err)
		} else {
			r.closers = append(r.closers, func() { _ = rs.Close() })
			sinks = append(sinks, rs)
		}
	}
	r.sink = progress.NewMulti(sinks...)

	if app.S3.Bucket != "" {
		st, err := s3adapter.New(ctx, s3adapter.Options{
			Bucket:       app.S3.Bucket,
			Prefix:       app.S3.Prefix,
			Region:       app.S3.Region,
			Profile:      app.S3.Profile,
			UsePathStyle: app.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		r.store = st
	}
	return r, nil
}

func (r *runner) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func (r *runner) runOne(ctx context.Context, input string) (out Outcome) {
	out.Input = input
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("input run panicked", "input", input, "panic", p, "stack", string(debug.Stack()))
			out.Err = fmt.Errorf("%s: panic: %v", input, p)
		}
	}()
	out.Result, out.Err = r.run(ctx, input)
	if out.Err != nil {
		r.log.Error("input failed", "input", input, "err", out.Err)
	}
	return out
}

func (r *runner) run(ctx context.Context, input string) (Result, error) {
	app := r.app
	log := r.log.With("input", InputName(input))

	cacheDir := filepath.Join(app.Output.CacheDir, "runs", hash(input))
	log.Info("preparing workspace", "cache", cacheDir)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Result{}, err
	}
	runOutDir := buildRunOutDir(app.Output.Dir, input, time.Now().UTC())
	if err := os.MkdirAll(filepath.Join(runOutDir, "clips"), 0o755); err != nil {
		return Result{}, err
	}
	log.Info("output run dir", "path", runOutDir)

	orch := batch.New(batch.Deps{
		Video:       r.video,
		Transcriber: whispercpp.New(r.gw, app.Tools.WhisperBin, app.Tools.WhisperModel, app.Timeouts.Transcription.D()),
		Pools:       r.pools,
		Sink:        r.sink,
		Log:         log,
	}, batch.Options{
		JobLimit:             app.JobLimit(app.Concurrency.CPUSlots),
		KeepIntermediates:    app.Output.KeepIntermediates,
		BackgroundDir:        app.Background.Dir,
		Dynamic:              app.Background.Dynamic,
		OffsetMargin:         app.Background.OffsetMargin.D(),
		TranscriptionTimeout: app.Timeouts.Transcription.D(),
		Settings:             clip.SettingsFrom(app),
	})

	uc := usecase.New(usecase.Deps{
		Downloader: ytdlp.New(r.gw, app.Tools.YtDlp, app.Timeouts.Download.D(), log),
		Detector:   ffmpeg.NewSilenceDetector(r.video),
		Video:      r.video,
		Batch:      orch,
		Store:      r.store,
		Pools:      r.pools,
		Log:        log,
	})

	res, err := uc.Run(ctx, usecase.Input{
		Source:   input,
		ClipsN:   app.Clips.MaxClips,
		MinClip:  app.Clips.MinDuration.D(),
		MaxClip:  app.Clips.MaxDuration.D(),
		CacheDir: cacheDir,
		OutDir:   runOutDir,
	})
	out := Result{RunDir: runOutDir, Manifest: res.Manifest, Report: res.Report}
	if err != nil && len(res.Manifest.Clips) == 0 {
		return out, err
	}

	b, merr := json.MarshalIndent(res.Manifest, "", "  ")
	if merr != nil {
		return out, fmt.Errorf("marshal manifest: %w", merr)
	}
	manifestPath := filepath.Join(runOutDir, "manifest.json")
	if werr := os.WriteFile(manifestPath, b, 0o644); werr != nil {
		return out, werr
	}
	out.ManifestPath = manifestPath
	log.Info("manifest written", "clips", len(res.Manifest.Clips), "path", manifestPath)

	if r.store != nil {
		if uri, perr := r.store.Put(ctx, res.Manifest.BatchID+"/manifest.json", manifestPath); perr != nil {
			log.Warn("manifest upload failed", "err", perr)
		} else {
			log.Info("manifest uploaded", "uri", uri)
		}
	}
	return out, err
}

// lockDir takes an exclusive advisory lock on dir. The returned func releases it.
func lockDir(dir string) (func(), error) {
	fl := flock.New(filepath.Join(dir, ".hlshorts.lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return func() { _ = fl.Unlock() }, nil
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := normalizePathSegment(InputName(input))
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

// InputName picks a readable name: the file stem for local paths, the video
// id for watch URLs and the last path element for other URLs.
func InputName(input string) string {
	if !ytdlp.IsURL(input) {
		return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	u, err := url.Parse(input)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return u.Hostname()
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var (
	_ ports.Gateway       = (*proc.Gateway)(nil)
	_ ports.VideoTool     = (*ffmpeg.Adapter)(nil)
	_ ports.Detector      = (*ffmpeg.SilenceDetector)(nil)
	_ ports.Transcriber   = (*whispercpp.Adapter)(nil)
	_ ports.Downloader    = (*ytdlp.Downloader)(nil)
	_ ports.ProgressSink  = (*redisadapter.Sink)(nil)
	_ ports.ArtifactStore = (*s3adapter.Store)(nil)
	_ batch.Loader        = (*whispercpp.Adapter)(nil)
)
