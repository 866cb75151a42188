package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hed1ad/logwatch/pkg/metrics"
)

const metricsDocHeader = `> Note: this file is generated by "logwatch metrics-doc".

# logwatch Operational Metrics

Each table below documents one metric exported on /metrics by "logwatch serve".
`

var metricsDocCmd = &cobra.Command{
	Use:   "metrics-doc",
	Short: "Print markdown documentation for the exported metrics",
	Run: func(cmd *cobra.Command, _ []string) {
		writeMetricsDoc(cmd.OutOrStdout())
	},
}

func writeMetricsDoc(w io.Writer) {
	fmt.Fprintf(w, "%s\n%s\n", metricsDocHeader, metrics.GetDocumentation())
}
