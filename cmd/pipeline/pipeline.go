package pipeline

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"quantsystem/src/analyzer"
	"quantsystem/src/app"
	"quantsystem/src/model"
)

// Pipeline backs the fetch and analyze commands.
type Pipeline struct {
	Log     *logrus.Entry
	App     *app.Context
	Symbols []string
	Out     io.Writer
}

// Fetch downloads bars for every symbol. Per-symbol failures are reported but
// only fail the command when nothing could be fetched.
func (p *Pipeline) Fetch(ctx context.Context, timeframe string) error {
	results, err := p.App.Fetcher.Fetch(ctx, p.Symbols, timeframe)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			p.Log.WithError(r.Err).WithField("symbol", r.Symbol).Warn("fetch failed")
			fmt.Fprintf(p.Out, "%-12s error: %v\n", r.Symbol, r.Err)
			continue
		}
		fmt.Fprintf(p.Out, "%-12s %d bars\n", r.Symbol, r.Count)
	}
	if len(results) > 0 && failed == len(results) {
		return fmt.Errorf("fetch failed for all %d symbols", failed)
	}
	return nil
}

// Analyze runs the analysis as of asOf and prints the top of the ranking.
func (p *Pipeline) Analyze(ctx context.Context, asOf time.Time, top int) (*analyzer.Report, error) {
	report, err := p.App.Analyzer.Run(ctx, p.Symbols, asOf)
	if err != nil {
		return nil, err
	}
	PrintRanking(p.Out, report.Top(top))

	for _, s := range report.Signals {
		fmt.Fprintf(p.Out, "signal %s %s strength=%.2f %s\n", s.SignalType, s.Symbol, s.SignalStrength, s.Reason)
	}
	if len(report.Skipped) > 0 {
		fmt.Fprintf(p.Out, "skipped: %v\n", report.Skipped)
	}
	return report, nil
}

func PrintRanking(out io.Writer, sels []model.Selection) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSYMBOL\tTOTAL\tTECH\tVOL\tTREND\tPATTERN\tSIGNAL\tPRICE")
	for _, s := range sels {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%.3f\n",
			s.Rank, s.Symbol, s.TotalScore, s.TechnicalScore, s.VolumeScore, s.TrendScore, s.PatternScore, s.BuySignal, s.CurrentPrice)
	}
	_ = w.Flush()
}
