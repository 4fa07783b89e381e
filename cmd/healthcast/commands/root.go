package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "healthcast",
	Short: "ARIMA forecasts for yearly public-health indicators",
	Long: `healthcast forecasts a yearly indicator (for example a malaria
mortality rate) for one region.

It cleans the series, holds out the years after a cutoff, scores a fixed
catalog of ARIMA(p,d,q) models on the held-out years (or by information
criterion when nothing is held out), refits the winner on the full history
and forecasts the next few years.

Examples:
  healthcast forecast --file indicators.csv --region Kenya --metric "Malaria Mortality"
  healthcast forecast --config healthcast.yaml --json`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML); defaults and HEALTHCAST_* env when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug|info|warn|error)")
}
