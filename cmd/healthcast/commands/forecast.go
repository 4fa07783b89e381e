package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sartorproj/healthcast/config"
	"github.com/sartorproj/healthcast/forecast"
	"github.com/sartorproj/healthcast/logger"
	"github.com/sartorproj/healthcast/metrics"
	"github.com/sartorproj/healthcast/pipeline"
	"github.com/sartorproj/healthcast/stats"
	"github.com/sartorproj/healthcast/timeseries"
)

// maxListedCombinations caps the region/metric pairs printed when a filter
// matches nothing.
const maxListedCombinations = 10

var (
	forecastFile      string
	forecastRegion    string
	forecastMetric    string
	forecastCutoff    int
	forecastHorizon   int
	forecastCriterion string
	forecastJSON      bool
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Select an ARIMA model and forecast one region's indicator",
	Long: `Loads the rows for one region and metric from a long-format CSV
(columns Name, Metric, Year, Value, Units), selects the best ARIMA order
and prints the forecast.

Runs that cannot produce any model (too few usable years, a cutoff before
the first year, or no fittable order at all) exit with an error. Runs whose
final forecast is not finite print a FORECAST UNUSABLE banner instead of
numbers.

Example:
  healthcast forecast --file indicators.csv --region Kenya --metric "Malaria Mortality" --cutoff 2018 --horizon 3`,
	RunE: runForecast,
}

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().StringVar(&forecastFile, "file", "", "indicator CSV file (overrides series.file)")
	forecastCmd.Flags().StringVar(&forecastRegion, "region", "", "region name to forecast (overrides series.region)")
	forecastCmd.Flags().StringVar(&forecastMetric, "metric", "", "metric name to forecast (overrides series.metric)")
	forecastCmd.Flags().IntVar(&forecastCutoff, "cutoff", pipeline.DefaultCutoff, "last training year (overrides selection.cutoff)")
	forecastCmd.Flags().IntVar(&forecastHorizon, "horizon", forecast.DefaultHorizon, "years to forecast (overrides forecast.horizon)")
	forecastCmd.Flags().StringVar(&forecastCriterion, "criterion", stats.CriterionAIC, "aic|aicc|bic when nothing is held out (overrides selection.criterion)")
	forecastCmd.Flags().BoolVar(&forecastJSON, "json", false, "print the report as JSON")
}

func runForecast(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Series.File == "" {
		return fmt.Errorf("no input file: set --file or series.file")
	}

	log := logger.NewWithWriter(cfg.Logging, cmd.ErrOrStderr())

	opts := timeseries.DefaultCSVOptions()
	opts.Region = cfg.Series.Region
	opts.Metric = cfg.Series.Metric
	extract, err := timeseries.LoadIndicatorCSV(cfg.Series.File, opts)
	if err != nil {
		var nomatch *timeseries.NoMatchError
		if errors.As(err, &nomatch) {
			writeAvailable(cmd.ErrOrStderr(), nomatch)
		}
		return fmt.Errorf("failed to load %s: %w", cfg.Series.File, err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg, cfg.Metrics.Namespace)

	p := pipeline.New(cfg.PipelineConfig(),
		pipeline.WithLogger(log),
		pipeline.WithRecorder(collector),
	)
	report, runErr := p.Run(cmd.Context(), extract.Points)

	if cfg.Metrics.PushgatewayURL != "" {
		if err := metrics.Push(cmd.Context(), cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, reg); err != nil {
			log.Warn().Err(err).Msg("metrics push failed")
		}
	}

	if runErr != nil {
		return fmt.Errorf("cannot forecast %s: %w", describeSeries(report), runErr)
	}

	if forecastJSON {
		return writeJSON(cmd.OutOrStdout(), report, extract.Units)
	}
	writeText(cmd.OutOrStdout(), report, extract.Units)
	return nil
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("file") {
		cfg.Series.File = forecastFile
	}
	if flags.Changed("region") {
		cfg.Series.Region = forecastRegion
	}
	if flags.Changed("metric") {
		cfg.Series.Metric = forecastMetric
	}
	if flags.Changed("cutoff") {
		cfg.Selection.Cutoff = forecastCutoff
	}
	if flags.Changed("horizon") {
		cfg.Forecast.Horizon = forecastHorizon
	}
	if flags.Changed("criterion") {
		cfg.Selection.Criterion = forecastCriterion
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}

// writeAvailable lists what the file does contain after a filter miss.
func writeAvailable(w io.Writer, nomatch *timeseries.NoMatchError) {
	fmt.Fprintf(w, "No rows for region %q and metric %q.\n", nomatch.Region, nomatch.Metric)
	fmt.Fprintf(w, "Available combinations (%d):\n", len(nomatch.Available))
	for i, c := range nomatch.Available {
		if i == maxListedCombinations {
			fmt.Fprintf(w, "   ... and %d more\n", len(nomatch.Available)-i)
			break
		}
		fmt.Fprintf(w, "   %s / %s\n", c.Region, c.Metric)
	}
	fmt.Fprintf(w, "Regions: %s\n", strings.Join(nomatch.Regions(), ", "))
	fmt.Fprintf(w, "Metrics: %s\n", strings.Join(nomatch.Metrics(), ", "))
}
