package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"github.com/forPelevin/hlshorts/internal/pipeline"
)

// printSummary renders one table for every input: produced clips, failed
// clips and inputs that failed before any clip was cut.
func printSummary(w io.Writer, outcomes []pipeline.Outcome) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Input", "#", "Start", "End", "Captions", "Degraded", "File"})

	var clips, planned, inputsOK int
	for _, o := range outcomes {
		name := pipeline.InputName(o.Input)
		res := o.Result
		for _, c := range res.Manifest.Clips {
			degraded := "-"
			if len(c.Degraded) > 0 {
				degraded = strings.Join(c.Degraded, ",")
			}
			t.AppendRow(table.Row{name, c.ID, fmtSec(c.StartSec), fmtSec(c.EndSec), c.Captioner, degraded, c.File})
		}
		for _, r := range res.Report.Failed() {
			t.AppendRow(table.Row{
				name,
				fmt.Sprintf("%03d", r.Segment.Sequence),
				fmtSec(r.Segment.Start.Seconds()),
				fmtSec(r.Segment.End.Seconds()),
				"-", "failed", errText(r.Err),
			})
		}
		if o.Err != nil && len(res.Report.Results) == 0 {
			t.AppendRow(table.Row{name, "-", "-", "-", "-", "failed", o.Err.Error()})
		}
		clips += len(res.Manifest.Clips)
		planned += len(res.Report.Results)
		if o.Err == nil {
			inputsOK++
		}
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d of %d inputs", inputsOK, len(outcomes)),
		"", "", "", "", "clips", fmt.Sprintf("%d of %d", clips, planned),
	})
	t.Render()

	for _, o := range outcomes {
		if o.Result.ManifestPath != "" {
			fmt.Fprintf(w, "manifest: %s\n", o.Result.ManifestPath)
		}
	}
}

// outcomeErr is the command error: the input's own error for a single
// input, a count otherwise.
func outcomeErr(outcomes []pipeline.Outcome) error {
	failed := lo.Filter(outcomes, func(o pipeline.Outcome, _ int) bool { return o.Err != nil })
	switch {
	case len(failed) == 0:
		return nil
	case len(outcomes) == 1:
		return failed[0].Err
	}
	errs := lo.Map(failed, func(o pipeline.Outcome, _ int) error { return o.Err })
	return fmt.Errorf("%d of %d inputs failed: %w", len(failed), len(outcomes), errors.Join(errs...))
}

func fmtSec(s float64) string {
	m := int(s) / 60
	return fmt.Sprintf("%d:%04.1f", m, s-float64(m*60))
}

func errText(err error) string {
	if err == nil {
		return "no artifact"
	}
	return err.Error()
}
