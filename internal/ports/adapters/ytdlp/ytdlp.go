package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/hlshorts/internal/logging"
	"github.com/forPelevin/hlshorts/internal/ports"
)

// OutputName is the file a download is written to inside its directory.
const OutputName = "input.mp4"

// Formats are tried in order, one per attempt.
var Formats = []string{
	"bestvideo[height<=1080]+bestaudio/best[height<=1080]",
	"best[height<=720]/best",
	"worst",
}

var ErrDownload = errors.New("download failed")

type Downloader struct {
	gw      ports.Gateway
	bin     string
	timeout time.Duration
	pause   time.Duration
	log     *slog.Logger
}

func New(gw ports.Gateway, bin string, timeout time.Duration, log *slog.Logger) *Downloader {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &Downloader{gw: gw, bin: bin, timeout: timeout, pause: 2 * time.Second, log: logging.OrDiscard(log)}
}

// IsURL reports whether source should be fetched rather than read from disk.
func IsURL(source string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Download returns a local path for source. Local files are returned as is and
// an earlier non-empty download in outDir is reused.
func (d *Downloader) Download(ctx context.Context, source, outDir string) (string, error) {
	if !IsURL(source) {
		if !nonEmpty(source) {
			return "", fmt.Errorf("input %s: not a readable video file", source)
		}
		return source, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(outDir, OutputName)
	if nonEmpty(out) {
		d.log.Info("reusing downloaded video", "path", out)
		return out, nil
	}

	var lastErr error
	for attempt, format := range Formats {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(d.pause):
			}
		}
		args := []string{source, "-o", out, "--format", format, "--merge-output-format", "mp4", "--no-playlist"}
		if attempt == 0 {
			args = append(args, "--retries", "3")
		}
		_, err := d.gw.Run(ctx, ports.Op{Name: d.bin, Args: args, Timeout: d.timeout, Check: true})
		if err == nil && nonEmpty(out) {
			d.log.Info("downloaded video", "path", out, "attempt", attempt+1)
			return out, nil
		}
		if err == nil {
			err = errors.New("output missing or empty")
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		d.log.Warn("download attempt failed", "attempt", attempt+1, "format", format, "err", err)
		_ = os.Remove(out)
	}
	return "", fmt.Errorf("%w: %s after %d attempts: %w", ErrDownload, source, len(Formats), lastErr)
}

func nonEmpty(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular() && st.Size() > 0
}
