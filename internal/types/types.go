package types

import (
	"fmt"
	"time"
)

// Transcript mirrors the whisper.cpp JSON output with word timestamps.
type Transcript struct {
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// HighlightSegment is one detected excerpt of the source video.
type HighlightSegment struct {
	Source   string
	Start    time.Duration
	End      time.Duration
	Sequence int
}

func (s HighlightSegment) Duration() time.Duration { return s.End - s.Start }

// Name is the job-scoped identifier used for working directories and logs.
func (s HighlightSegment) Name() string { return fmt.Sprintf("clip-%03d", s.Sequence) }

// WordCue is a transcribed word relative to the clip timeline.
type WordCue struct {
	Text  string        `json:"text"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// CaptionLine groups cues that are displayed together.
type CaptionLine struct {
	Text  string
	Start time.Duration
	End   time.Duration
	Words []WordCue
}

type BackgroundAsset struct {
	Path     string
	Duration time.Duration
}

// BackgroundChoice is an asset plus the offset to start reading it from.
type BackgroundChoice struct {
	Asset  BackgroundAsset
	Offset time.Duration
}

// Stage is a Clip Stage Pipeline state. Values are ordered.
type Stage int

const (
	StagePending Stage = iota
	StageFormatted
	StageAudioExtracted
	StageBackgroundPrepared
	StageComposed
	StageCaptioned
	StageEncoded
	StageDone
)

var stageNames = map[Stage]string{
	StagePending:            "pending",
	StageFormatted:          "formatted",
	StageAudioExtracted:     "audio_extracted",
	StageBackgroundPrepared: "background_prepared",
	StageComposed:           "composed",
	StageCaptioned:          "captioned",
	StageEncoded:            "encoded",
	StageDone:               "done",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ClipJob is owned by exactly one pipeline execution.
type ClipJob struct {
	Segment    HighlightSegment
	WorkDir    string
	Stage      Stage
	Artifacts  map[Stage]string
	Degraded   []Stage
	Background *BackgroundChoice
	Cues       []WordCue
	Captioner  string
}

func NewClipJob(seg HighlightSegment, workDir string) *ClipJob {
	return &ClipJob{
		Segment:   seg,
		WorkDir:   workDir,
		Stage:     StagePending,
		Artifacts: map[Stage]string{},
	}
}

// Advance records the artifact produced for stage and moves the job forward.
// Stages never move backwards.
func (j *ClipJob) Advance(stage Stage, artifact string) {
	if stage <= j.Stage {
		panic(fmt.Sprintf("clip job %s: stage %s after %s", j.Segment.Name(), stage, j.Stage))
	}
	j.Stage = stage
	if artifact != "" {
		j.Artifacts[stage] = artifact
	}
}

// Degrade marks that stage fell back to a lesser artifact.
func (j *ClipJob) Degrade(stage Stage) { j.Degraded = append(j.Degraded, stage) }

// Latest returns the artifact of the most advanced stage that produced one.
func (j *ClipJob) Latest() string {
	for s := j.Stage; s > StagePending; s-- {
		if p, ok := j.Artifacts[s]; ok {
			return p
		}
	}
	return ""
}

// ClipResult is what a finished job reports to the orchestrator.
type ClipResult struct {
	Segment   HighlightSegment
	Artifact  string
	Degraded  []Stage
	Captioner string
	Err       error
}

func (r ClipResult) OK() bool { return r.Err == nil && r.Artifact != "" }

type Manifest struct {
	Input   string         `json:"input"`
	Source  string         `json:"source"`
	BatchID string         `json:"batch_id"`
	Clips   []ManifestClip `json:"clips"`
}

type ManifestClip struct {
	ID        string   `json:"id"`
	Sequence  int      `json:"sequence"`
	StartSec  float64  `json:"start_sec"`
	EndSec    float64  `json:"end_sec"`
	File      string   `json:"file"`
	Captioner string   `json:"captioner"`
	Degraded  []string `json:"degraded,omitempty"`
	Remote    string   `json:"remote,omitempty"`
}

type EventType string

const (
	EventTotal     EventType = "total"
	EventStep      EventType = "step"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
	EventDone      EventType = "done"
)

// ProgressEvent is a best-effort notification about batch progress.
// Clip carries the segment sequence index, which starts at 1.
type ProgressEvent struct {
	Type        EventType `json:"type"`
	BatchID     string    `json:"batch_id,omitempty"`
	Count       int       `json:"count,omitempty"`
	Step        int       `json:"step_number,omitempty"`
	Clip        int       `json:"clip_index,omitempty"`
	Description string    `json:"description,omitempty"`
	Message     string    `json:"message,omitempty"`
	At          time.Time `json:"at"`
}
