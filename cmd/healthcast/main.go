// Command healthcast forecasts a yearly public-health indicator for one
// region by selecting an ARIMA model from a fixed catalog.
package main

import (
	"os"

	"github.com/sartorproj/healthcast/cmd/healthcast/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
