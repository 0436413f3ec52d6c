package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/hlshorts/internal/pipeline"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hlshorts [youtube-url|local.mp4]...",
		Short:        "Cut vertical captioned highlight clips from long videos",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE:         run,
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	f := root.Flags()
	f.String("config", "hlshorts.toml", "Config file (TOML)")
	f.String("out", "out", "Output directory")
	f.Int("clips", 20, "Maximum number of clips")
	f.Duration("min", 0, "Min clip duration (e.g. 10s)")
	f.Duration("max", 0, "Max clip duration (e.g. 40s)")
	f.String("background-dir", "", "Directory of background videos stacked under each clip")
	f.Bool("dynamic", false, "Pick a random background and offset per clip")
	f.String("preset", "", "Caption style preset (see `hlshorts presets`)")
	f.String("placement", "", "Caption placement: auto, fraction, split, center")
	f.String("log-level", "", "Log level: debug, info, warn, error")
	f.String("log-format", "", "Log format: auto, console, json")
	f.Bool("keep", false, "Keep intermediate files")
	f.String("urls-file", "", "File with one video URL or path per line (# comments)")
	f.Int("max-concurrent", pipeline.DefaultMaxConcurrent, "Videos processed at once")

	// Hidden tuning flag (internal)
	f.Int("jobs", 0, "Override the clip job window")
	_ = f.MarkHidden("jobs")

	root.AddCommand(newPresetsCmd())
	return root
}
