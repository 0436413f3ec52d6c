package background

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forPelevin/hlshorts/internal/logging"
	"github.com/forPelevin/hlshorts/internal/pool"
	"github.com/forPelevin/hlshorts/internal/types"
)

var ErrEmptyPool = errors.New("background pool is empty")

// Prober reports the duration of a media file.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

type ProberFunc func(ctx context.Context, path string) (time.Duration, error)

func (f ProberFunc) Duration(ctx context.Context, path string) (time.Duration, error) { return f(ctx, path) }

// Discover lists *.mp4 assets in dir, sorted by name, and probes each under the
// IO pool. Unreadable assets are skipped. An empty dir setting disables
// backgrounds; a missing dir or one without usable assets is an error.
func Discover(ctx context.Context, dir string, probe Prober, io *pool.Pool, log *slog.Logger) ([]types.BackgroundAsset, error) {
	log = logging.OrDiscard(log)
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scan backgrounds: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("scan backgrounds: %s is not a directory", dir)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.mp4"))
	if err != nil {
		return nil, fmt.Errorf("scan backgrounds: %w", err)
	}
	sort.Strings(paths)

	var out []types.BackgroundAsset
	for _, p := range paths {
		var d time.Duration
		err := io.Do(ctx, func(ctx context.Context) error {
			var perr error
			d, perr = probe.Duration(ctx, p)
			return perr
		})
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil || d <= 0 {
			log.Warn("skipping background asset", "path", p, "err", err)
			continue
		}
		out = append(out, types.BackgroundAsset{Path: p, Duration: d})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrEmptyPool)
	}
	return out, nil
}

// Selector chooses the background for each clip. It is owned by one batch and
// safe for concurrent use.
type Selector struct {
	mu      sync.Mutex
	rng     *rand.Rand
	assets  []types.BackgroundAsset
	dynamic bool
	margin  time.Duration
	last    int
}

// NewSelector copies assets. With dynamic off every clip gets the first asset
// at offset zero. rng may be nil when dynamic is off.
func NewSelector(assets []types.BackgroundAsset, dynamic bool, margin time.Duration, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{
		rng:     rng,
		assets:  append([]types.BackgroundAsset(nil), assets...),
		dynamic: dynamic,
		margin:  margin,
		last:    -1,
	}
}

func (s *Selector) Len() int { return len(s.assets) }

// Select picks an asset for a clip of clipDur. In dynamic mode it never returns
// the previously chosen asset when more than one is available, and starts at a
// random offset when the asset is longer than clipDur plus the margin.
func (s *Selector) Select(clipDur time.Duration) (types.BackgroundChoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.assets) == 0 {
		return types.BackgroundChoice{}, ErrEmptyPool
	}
	if !s.dynamic {
		return types.BackgroundChoice{Asset: s.assets[0]}, nil
	}

	idx := 0
	if n := len(s.assets); n > 1 {
		if s.last < 0 {
			idx = s.rng.Intn(n)
		} else {
			// Draw from the other n-1 assets.
			idx = s.rng.Intn(n - 1)
			if idx >= s.last {
				idx++
			}
		}
	}
	s.last = idx
	asset := s.assets[idx]

	var offset time.Duration
	if room := asset.Duration - clipDur - s.margin; room > 0 {
		offset = time.Duration(s.rng.Int63n(int64(room)))
	}
	return types.BackgroundChoice{Asset: asset, Offset: offset}, nil
}
