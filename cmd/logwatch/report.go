package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	lwio "github.com/hed1ad/logwatch/pkg/io"
	lwcsv "github.com/hed1ad/logwatch/pkg/io/csv"
	"github.com/hed1ad/logwatch/pkg/io/xlsx"
	"github.com/hed1ad/logwatch/pkg/render"
	"github.com/hed1ad/logwatch/pkg/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Score the feature table once and print the report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rep, err := newPipeline().Run(opts.Features, opts.Model)
		if err != nil {
			return err
		}
		if err := printReport(cmd.OutOrStdout(), rep, opts.Report.Format); err != nil {
			return err
		}
		return writeOutputs(rep)
	},
}

func printReport(w io.Writer, rep *report.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Fprintf(w, "Features:          %s\n", rep.Features)
	fmt.Fprintf(w, "Model:             %s\n", rep.Model)
	fmt.Fprintf(w, "Total windows:     %d\n", rep.Summary.TotalWindows)
	fmt.Fprintf(w, "Anomalous windows: %d (%.2f%%)\n", rep.Summary.AnomalousWindows, 100*rep.Summary.AnomalyRate)
	fmt.Fprintf(w, "Threshold:         %.4g (q=%g)\n", rep.TimeSeries.Threshold, rep.TimeSeries.Quantile)
	if !rep.Scatter.Available {
		fmt.Fprintf(w, "Projection:        unavailable (%s)\n", rep.Scatter.Reason)
	} else {
		evr := rep.Scatter.ExplainedVarianceRatio
		fmt.Fprintf(w, "Projection:        PC1 %.1f%%, PC2 %.1f%%\n", 100*evr[0], 100*evr[1])
	}
	fmt.Fprintf(w, "\nTop anomalies (%d of %d):\n", len(rep.Anomalies.Rows), rep.Anomalies.Total)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	t := rep.Anomalies.Table()
	for i, c := range t.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw, "\t")
	for _, row := range t.Rows {
		for i, v := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, lwcsv.FormatValue(v))
		}
		fmt.Fprintln(tw, "\t")
	}
	return tw.Flush()
}

func writeOutputs(rep *report.Report) error {
	if opts.Report.CSV != "" {
		f, err := os.Create(opts.Report.CSV)
		if err != nil {
			return errors.Wrap(err, "create csv export")
		}
		if err := exportTable(lwcsv.NewWriter(f), rep); err != nil {
			return err
		}
		log.WithField("path", opts.Report.CSV).Info("wrote csv export")
	}

	if opts.Report.XLSX != "" {
		f, err := os.Create(opts.Report.XLSX)
		if err != nil {
			return errors.Wrap(err, "create xlsx export")
		}
		err = exportTable(xlsx.NewWriter(f), rep)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		log.WithField("path", opts.Report.XLSX).Info("wrote xlsx export")
	}

	if opts.Report.Charts != "" {
		return writeCharts(opts.Report.Charts, rep)
	}
	return nil
}

func exportTable(w lwio.TableWriter, rep *report.Report) error {
	if err := w.WriteTable(rep.Anomalies.Table()); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func writeCharts(dir string, rep *report.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create chart directory")
	}

	if err := writeChart(filepath.Join(dir, "scores.png"), func(w io.Writer) error {
		return render.Scores(w, rep.TimeSeries)
	}); err != nil {
		return err
	}

	err := writeChart(filepath.Join(dir, "projection.png"), func(w io.Writer) error {
		return render.Projection(w, rep.Scatter)
	})
	if errors.Is(err, render.ErrNoProjection) {
		log.WithField("reason", rep.Scatter.Reason).Warn("skipping projection chart")
		return nil
	}
	return err
}

func writeChart(path string, draw func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create chart")
	}
	if err := draw(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	log.WithField("path", path).Info("wrote chart")
	return f.Close()
}
