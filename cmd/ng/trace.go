package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/scott-cotton/cli"

	"github.com/signadot/nodegraph/eventlog"
	"github.com/signadot/nodegraph/metrics"
	"github.com/signadot/nodegraph/scenario"
)

func trace(cfg *TraceConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Trace.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: trace requires 1 scenario file, got %v", cli.ErrUsage, args)
	}
	log, err := cfg.logger(os.Stderr)
	if err != nil {
		return err
	}
	var (
		reg = prometheus.NewRegistry()
		m   *metrics.Metrics
	)
	if cfg.Metrics {
		m, err = metrics.New(reg)
		if err != nil {
			return err
		}
	}
	match, err := runTrace(cfg, cc.Out, args[0], log, m)
	if err != nil {
		return err
	}
	if cfg.Metrics {
		if err := writeMetrics(cc.Out, reg); err != nil {
			return err
		}
	}
	if !match {
		return cli.ExitCodeErr(1)
	}
	return nil
}

// runTrace runs the scenario at path and writes its trace to w.  With an
// expected trace it writes the difference instead and reports whether
// there was none.
func runTrace(cfg *TraceConfig, w io.Writer, path string, log *slog.Logger, m *metrics.Metrics) (bool, error) {
	s, err := scenario.Load(path)
	if err != nil {
		return false, err
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = cfg.setPrefix()
	}
	res, err := scenario.Run(s, &scenario.Config{Log: log, SetPrefix: prefix, Metrics: m})
	if err != nil {
		return false, fmt.Errorf("error running %s: %w", path, err)
	}
	if cfg.Expect == "" {
		return true, res.Render(w, cfg.colors(w))
	}
	want, err := os.ReadFile(cfg.Expect)
	if err != nil {
		return false, fmt.Errorf("unable to read expected trace: %w", err)
	}
	d := eventlog.Diff(string(want), res.String())
	if d == "" {
		return true, nil
	}
	if _, err := io.WriteString(w, d); err != nil {
		return false, err
	}
	return false, nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
