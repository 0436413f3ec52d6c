//go:build integration

package itest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func probeDurationSeconds(mp4Path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

func probeSize(mp4Path string) (string, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	return strings.TrimSpace(string(b)), nil
}

// makeVideo renders a test pattern with a tone interrupted by silence so the
// silence detector finds several active ranges.
func makeVideo(t *testing.T, path string, seconds int) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	tone := fmt.Sprintf("sine=frequency=440:duration=%d,volume='if(lt(mod(t,15),12),1,0)':eval=frame", seconds)
	cmd := exec.Command("ffmpeg",
		"-y", "-hide_banner", "-nostdin",
		"-f", "lavfi", "-i", fmt.Sprintf("testsrc=size=1280x720:rate=30:duration=%d", seconds),
		"-f", "lavfi", "-i", tone,
		"-shortest",
		"-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		path,
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}
}

func makeBackgroundDir(t *testing.T, n int) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "backgrounds")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("bg-%d.mp4", i))
		cmd := exec.Command("ffmpeg",
			"-y", "-hide_banner", "-nostdin",
			"-f", "lavfi", "-i", fmt.Sprintf("mandelbrot=size=640x360:rate=30,trim=duration=%d", 60+i*10),
			"-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p",
			path,
		)
		if b, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("ffmpeg background fixture failed: %v\n%s", err, string(b))
		}
	}
	return dir
}
