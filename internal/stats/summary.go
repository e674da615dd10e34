package stats

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SampleSummary aggregates the primary intensity feature over every valid
// record of one sample.
type SampleSummary struct {
	SampleName string
	Count      int
	MeanLogAbs float64
	SDLogAbs   float64
}

// Summarize groups the emitted features by sample name and aggregates the
// blob intensity feature per sample, in sample-name order.
func Summarize(features []Features) []SampleSummary {
	bySample := make(map[string][]float64)
	for _, f := range features {
		bySample[f.SampleName] = append(bySample[f.SampleName], f.LogAbs)
	}

	names := make([]string, 0, len(bySample))
	for name := range bySample {
		names = append(names, name)
	}
	sort.Strings(names)

	summaries := make([]SampleSummary, 0, len(names))
	for _, name := range names {
		vals := bySample[name]
		s := SampleSummary{
			SampleName: name,
			Count:      len(vals),
			MeanLogAbs: stat.Mean(vals, nil),
		}
		if len(vals) > 1 {
			s.SDLogAbs = stat.StdDev(vals, nil)
		}
		summaries = append(summaries, s)
	}
	return summaries
}

// WriteSummary prints the per-sample summary table.
func WriteSummary(w io.Writer, summaries []SampleSummary) {
	if len(summaries) == 0 {
		return
	}
	fmt.Fprintf(w, "%-20s %6s %12s %10s\n", "sample", "n", "log.abs", "sd")
	for _, s := range summaries {
		fmt.Fprintf(w, "%-20s %6d %12.5f %10.5f\n", s.SampleName, s.Count, s.MeanLogAbs, s.SDLogAbs)
	}
}
