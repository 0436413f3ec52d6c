package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/forPelevin/hlshorts/internal/config"
	"github.com/forPelevin/hlshorts/internal/logging"
	"github.com/forPelevin/hlshorts/internal/pipeline"
	"github.com/forPelevin/hlshorts/internal/ports/adapters/ytdlp"
)

func run(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	app, found, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if app, err = app.FromEnv(os.LookupEnv); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if app, err = applyFlags(cmd.Flags(), app); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	paths := []string{"stderr"}
	if app.Logging.File != "" {
		paths = append(paths, app.Logging.File)
	}
	log, err := logging.New(logging.Options{Level: app.Logging.Level, Format: app.Logging.Format, OutputPaths: paths})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !found && cmd.Flags().Changed("config") {
		log.Warn("config file not found, using defaults", "path", cfgPath)
	}

	inputs, err := collectInputs(cmd.Flags(), args)
	if err != nil {
		return err
	}
	maxConcurrent, _ := cmd.Flags().GetInt("max-concurrent")

	cfg := pipeline.Config{Inputs: inputs, MaxConcurrent: maxConcurrent, App: app, Log: log}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcomes, err := pipeline.RunAll(ctx, cfg)
	if err != nil {
		return err
	}
	if len(outcomes) > 1 || len(outcomes[0].Result.Report.Results) > 0 {
		printSummary(cmd.OutOrStdout(), outcomes)
	}
	err = outcomeErr(outcomes)
	if errors.Is(err, context.Canceled) {
		return errors.New("interrupted")
	}
	return err
}

// collectInputs merges positional args with --urls-file lines. Local paths
// are made absolute and duplicates dropped, first occurrence wins.
func collectInputs(f *pflag.FlagSet, args []string) ([]string, error) {
	inputs := append([]string(nil), args...)
	if path, _ := f.GetString("urls-file"); path != "" {
		fh, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("urls file: %w", err)
		}
		defer fh.Close()
		lines, err := readURLs(fh)
		if err != nil {
			return nil, fmt.Errorf("urls file %s: %w", path, err)
		}
		inputs = append(inputs, lines...)
	}
	if len(inputs) == 0 {
		return nil, errors.New("no input: pass a video URL or file, or --urls-file")
	}
	for i, in := range inputs {
		if ytdlp.IsURL(in) {
			continue
		}
		abs, err := filepath.Abs(in)
		if err != nil {
			return nil, err
		}
		inputs[i] = abs
	}
	return lo.Uniq(inputs), nil
}

// readURLs returns the non-blank lines of r, skipping # comments.
func readURLs(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// applyFlags layers explicitly set flags over app. The preset goes first so
// single style flags can still override it.
func applyFlags(f *pflag.FlagSet, app config.Config) (config.Config, error) {
	if f.Changed("preset") {
		name, _ := f.GetString("preset")
		var err error
		if app, err = app.WithPreset(name); err != nil {
			return config.Config{}, err
		}
	}
	if f.Changed("out") {
		app.Output.Dir, _ = f.GetString("out")
	}
	if f.Changed("clips") {
		app.Clips.MaxClips, _ = f.GetInt("clips")
	}
	if f.Changed("min") {
		d, _ := f.GetDuration("min")
		app.Clips.MinDuration = config.Duration(d)
	}
	if f.Changed("max") {
		d, _ := f.GetDuration("max")
		app.Clips.MaxDuration = config.Duration(d)
	}
	if f.Changed("background-dir") {
		app.Background.Dir, _ = f.GetString("background-dir")
	}
	if f.Changed("dynamic") {
		app.Background.Dynamic, _ = f.GetBool("dynamic")
	}
	if f.Changed("placement") {
		app.Captions.Placement, _ = f.GetString("placement")
	}
	if f.Changed("log-level") {
		app.Logging.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		app.Logging.Format, _ = f.GetString("log-format")
	}
	if f.Changed("keep") {
		app.Output.KeepIntermediates, _ = f.GetBool("keep")
	}
	if f.Changed("jobs") {
		// JobLimit multiplies slots by the factor, so pin both.
		n, _ := f.GetInt("jobs")
		app.Concurrency.JobFactor = 1
		app.Concurrency.JobCap = n
	}
	return app, nil
}
