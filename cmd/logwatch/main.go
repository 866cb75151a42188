package main

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hed1ad/logwatch/pkg/artifact"
	"github.com/hed1ad/logwatch/pkg/config"
	_ "github.com/hed1ad/logwatch/pkg/detectors/iforest"
	lwio "github.com/hed1ad/logwatch/pkg/io"
	"github.com/hed1ad/logwatch/pkg/pipeline"
)

var (
	buildVersion       = "unknown"
	buildDate          = "unknown"
	cfgFile            string
	logLevel           string
	envPrefix          = "LOGWATCH"
	defaultCfgFileName = ".logwatch"
	opts               = config.Default()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:           "logwatch",
	Short:         "Score log-window features with a pretrained isolation forest and show the anomalies",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		initConfig(cmd)
		return opts.Validate()
	},
}

// initConfig overlays the config file and LOGWATCH_* environment variables
// onto flags that were not set on the command line.
func initConfig(cmd *cobra.Command) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(defaultCfgFileName)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfgErr := v.ReadInConfig()

	bindFlags(cmd, v)

	initLogger()

	// A missing default config file is normal; anything else is reported.
	if _, notFound := cfgErr.(viper.ConfigFileNotFoundError); cfgErr != nil && !notFound {
		log.Errorf("Read config error: %v", cfgErr)
	} else if cfgErr == nil {
		log.WithField("file", v.ConfigFileUsed()).Debug("using config file")
	}
}

func initLogger() {
	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		ll = log.InfoLevel
	}
	log.SetLevel(ll)
	log.SetFormatter(&log.TextFormatter{DisableColors: false, FullTimestamp: true, PadLevelText: true, DisableQuote: true})
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if strings.Contains(f.Name, ".") {
			envVarSuffix := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(f.Name))
			_ = v.BindEnv(f.Name, fmt.Sprintf("%s_%s", envPrefix, envVarSuffix))
		}

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			_ = cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func initFlags() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is $HOME/%s.yaml)", defaultCfgFileName))
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warning, error")
	pf.StringVar(&opts.Features, "features", opts.Features, "Feature table (.csv, .tsv or .xlsx)")
	pf.StringVar(&opts.Sheet, "sheet", "", "Sheet to read from an .xlsx feature table (default is the first)")
	pf.StringVar(&opts.Model, "model", opts.Model, "Trained model artifact")
	pf.Float64Var(&opts.Quantile, "quantile", opts.Quantile, "Score quantile drawn as the threshold line")
	pf.IntVar(&opts.TopN, "top", opts.TopN, "Maximum rows in the anomaly table")

	sf := serveCmd.Flags()
	sf.StringVar(&opts.Server.Address, "server.address", opts.Server.Address, "Dashboard listen address")
	sf.IntVar(&opts.Server.Port, "server.port", opts.Server.Port, "Dashboard listen port")
	sf.DurationVar(&opts.Server.ShutdownTimeout, "server.shutdown-timeout", opts.Server.ShutdownTimeout, "Graceful shutdown timeout")

	rf := reportCmd.Flags()
	rf.StringVar(&opts.Report.Format, "format", opts.Report.Format, "Output format: text or json")
	rf.StringVar(&opts.Report.CSV, "csv", "", "Write the anomaly table as CSV to this path")
	rf.StringVar(&opts.Report.XLSX, "xlsx", "", "Write the anomaly table as XLSX to this path")
	rf.StringVar(&opts.Report.Charts, "charts", "", "Write scores.png and projection.png into this directory")

	rootCmd.AddCommand(serveCmd, reportCmd, metricsDocCmd, versionCmd)
}

func newPipeline() *pipeline.Pipeline {
	return pipeline.New(artifact.NewStore(lwio.WithSheet(opts.Sheet)),
		pipeline.WithQuantile(opts.Quantile),
		pipeline.WithTopN(opts.TopN),
	)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Build version: %s\nBuild date: %s\n", buildVersion, buildDate)
	},
}

func main() {
	initFlags()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
