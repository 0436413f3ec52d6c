package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/types"
)

type Adapter struct {
	gw      ports.Gateway
	bin     string
	model   string
	timeout time.Duration
}

func New(gw ports.Gateway, binPath, modelPath string, timeout time.Duration) *Adapter {
	return &Adapter{gw: gw, bin: binPath, model: modelPath, timeout: timeout}
}

// Load checks that the binary and model exist. It runs once per batch; the
// adapter is shared read-only by every clip afterwards.
func (a *Adapter) Load() error {
	for _, p := range []string{a.bin, a.model} {
		st, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("whisper.cpp: %w", err)
		}
		if st.IsDir() || st.Size() == 0 {
			return fmt.Errorf("whisper.cpp: %s is not a usable file", p)
		}
	}
	return nil
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, workDir string) (types.Transcript, error) {
	outPrefix := filepath.Join(workDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
		"-ml", "1",
		"-sow",
	}
	if _, err := a.gw.Run(ctx, ports.Op{Name: a.bin, Args: args, Timeout: a.timeout, Check: true}); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w", err)
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	return decode(jb)
}

// whisper.cpp -oj writes "transcription" entries with millisecond offsets.
// With -ml 1 every entry is a single word.
type output struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
	Segments []types.Segment `json:"segments"`
}

func decode(b []byte) (types.Transcript, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("decode whisper json: %w", err)
	}
	if len(out.Segments) > 0 {
		tr := types.Transcript{Segments: out.Segments}
		trimTranscript(&tr)
		return tr, nil
	}

	var tr types.Transcript
	for _, e := range out.Transcription {
		text := strings.TrimSpace(e.Text)
		start := float64(e.Offsets.From) / 1000
		end := float64(e.Offsets.To) / 1000
		tr.Segments = append(tr.Segments, types.Segment{
			Start: start,
			End:   end,
			Text:  text,
			Words: []types.Word{{Start: start, End: end, Word: text}},
		})
	}
	return tr, nil
}

func trimTranscript(tr *types.Transcript) {
	for i := range tr.Segments {
		tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
		for j := range tr.Segments[i].Words {
			tr.Segments[i].Words[j].Word = strings.TrimSpace(tr.Segments[i].Words[j].Word)
		}
	}
}
